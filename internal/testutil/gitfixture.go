// Package testutil provides shared test fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CreateGitFixture creates a non-bare repository with one commit on branch
// "main" and returns its path for use as a clone URL. When tag is non-empty a
// lightweight tag pointing at the initial commit is created.
func CreateGitFixture(t *testing.T, tag string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("init fixture repo: %v", err)
	}

	hash := WriteCommit(t, dir, "README", "fixture\n")

	if tag != "" {
		if _, err := repo.CreateTag(tag, hash, nil); err != nil {
			t.Fatalf("create tag %s: %v", tag, err)
		}
	}
	return dir
}

// WriteCommit writes a file into the repository at dir and commits it,
// returning the commit hash.
func WriteCommit(t *testing.T, dir, name, content string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open fixture repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("fixture worktree: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "fixture", Email: "fixture@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit %s: %v", name, err)
	}
	return hash
}
