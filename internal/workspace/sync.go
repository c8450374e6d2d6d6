package workspace

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	pipeerrors "git.home.luguber.info/inful/fwbuilder/internal/errors"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
)

// Pin identifies the revision the workspace is synchronized to. Branch is
// mandatory; Tag is best-effort.
type Pin struct {
	URL    string
	Branch string
	Tag    string
}

// Workspace is the synchronized checkout.
type Workspace struct {
	Dir      string
	Revision string
}

// Syncer performs workspace synchronization via go-git.
type Syncer struct {
	shallowDepth int
	progress     io.Writer
}

// NewSyncer returns a Syncer with a shallow clone depth of 1.
func NewSyncer() *Syncer {
	return &Syncer{shallowDepth: 1, progress: os.Stdout}
}

// WithShallowDepth overrides the clone depth; 0 disables shallow cloning.
func (s *Syncer) WithShallowDepth(depth int) *Syncer {
	s.shallowDepth = depth
	return s
}

// WithProgress overrides the clone/fetch progress writer.
func (s *Syncer) WithProgress(w io.Writer) *Syncer {
	s.progress = w
	return s
}

// Sync brings dir to the pinned revision. Clone and fetch failures are fatal;
// an unresolvable tag and a failed fast-forward pull are tolerated (the
// pipeline favors building the branch head over exact pinning). Tag checkout
// is strictly the last sync step, so when both a tag and a tolerated pull
// failure occur in one run the tag wins.
func (s *Syncer) Sync(pin Pin, dir string) (*Workspace, error) {
	var repo *git.Repository
	var err error

	state := Classify(dir)
	slog.Debug("Workspace state", logfields.Path(dir), slog.String("state", state.String()))

	switch state {
	case StateForeign:
		slog.Warn("Workspace exists but is not git-tracked, replacing it", logfields.Path(dir))
		if err := os.RemoveAll(dir); err != nil {
			return nil, pipeerrors.WrapFatal(err, pipeerrors.CategoryFileSystem, "remove stale workspace")
		}
		repo, err = s.clone(pin, dir)
	case StateAbsent:
		repo, err = s.clone(pin, dir)
	case StateTracked:
		repo, err = s.update(pin, dir)
	}
	if err != nil {
		return nil, err
	}

	s.pinTag(repo, pin.Tag)

	head, err := repo.Head()
	if err != nil {
		return nil, pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, "resolve workspace head")
	}
	slog.Info("Workspace synchronized",
		logfields.Path(dir),
		logfields.Branch(pin.Branch),
		slog.String("commit", head.Hash().String()[:8]))

	return &Workspace{Dir: dir, Revision: head.Hash().String()}, nil
}

// clone performs a shallow single-branch clone, then a best-effort fetch of
// all tags. Some remotes restrict tag listing on shallow clones, so the tag
// fetch failure is tolerated.
func (s *Syncer) clone(pin Pin, dir string) (*git.Repository, error) {
	slog.Info("Cloning workspace", logfields.URL(pin.URL), logfields.Branch(pin.Branch), logfields.Path(dir))

	opts := &git.CloneOptions{
		URL:           pin.URL,
		ReferenceName: plumbing.NewBranchReferenceName(pin.Branch),
		SingleBranch:  true,
		Tags:          git.NoTags,
		Progress:      s.progress,
	}
	if s.shallowDepth > 0 {
		opts.Depth = s.shallowDepth
	}

	repo, err := git.PlainClone(dir, false, opts)
	if err != nil {
		return nil, pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, fmt.Sprintf("clone %s", pin.URL))
	}

	fetchErr := repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{"+refs/tags/*:refs/tags/*"},
		Tags:       git.NoTags,
		Progress:   s.progress,
	})
	if fetchErr != nil && !errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
		slog.Warn("Tag fetch after clone failed (tolerated)", logfields.Error(fetchErr))
	}
	return repo, nil
}

// update fetches all heads and tags, checks out the pinned branch, and
// attempts a fast-forward-only pull. A failed pull is tolerated: the branch
// may already be current, or diverged in a way the pipeline does not need to
// reconcile.
func (s *Syncer) update(pin Pin, dir string) (*git.Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, "open workspace")
	}

	fetchErr := repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs: []gitcfg.RefSpec{
			"+refs/heads/*:refs/remotes/origin/*",
			"+refs/tags/*:refs/tags/*",
		},
		Tags:     git.AllTags,
		Force:    true,
		Progress: s.progress,
	})
	if fetchErr != nil && !errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
		return nil, pipeerrors.WrapFatal(fetchErr, pipeerrors.CategoryGit, "fetch remote refs")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, "open worktree")
	}

	if err := checkoutBranch(repo, wt, pin.Branch); err != nil {
		return nil, err
	}

	pullErr := wt.Pull(&git.PullOptions{RemoteName: "origin"})
	if pullErr != nil && !errors.Is(pullErr, git.NoErrAlreadyUpToDate) {
		slog.Warn("Fast-forward pull failed (tolerated)", logfields.Branch(pin.Branch), logfields.Error(pullErr))
	}
	return repo, nil
}

// checkoutBranch ensures the local branch exists (creating it from the remote
// ref when needed) and is checked out.
func checkoutBranch(repo *git.Repository, wt *git.Worktree, branch string) error {
	localRef := plumbing.NewBranchReferenceName(branch)
	if _, err := repo.Reference(localRef, true); err == nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true}); err != nil {
			return pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, fmt.Sprintf("checkout branch %s", branch))
		}
		return nil
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, fmt.Sprintf("resolve remote branch %s", branch))
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(localRef, remoteRef.Hash())); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, fmt.Sprintf("create local branch %s", branch))
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true}); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryGit, fmt.Sprintf("checkout branch %s", branch))
	}
	return nil
}

// pinTag force-fetches the single tag ref and force-checks it out when it
// resolves locally. An unresolvable tag only logs a warning: availability
// beats exact pinning, and the caller verifies the revision when exact
// pinning is required.
func (s *Syncer) pinTag(repo *git.Repository, tag string) {
	if tag == "" {
		return
	}

	refspec := gitcfg.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", tag, tag))
	fetchErr := repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{refspec},
		Tags:       git.NoTags,
		Force:      true,
		Progress:   s.progress,
	})
	if fetchErr != nil && !errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
		slog.Warn("Tag fetch failed, trying local resolution", logfields.Tag(tag), logfields.Error(fetchErr))
	}

	ref, err := repo.Reference(plumbing.NewTagReferenceName(tag), true)
	if err != nil {
		slog.Warn("Tag not resolvable, staying on branch head", logfields.Tag(tag))
		return
	}

	// Peel annotated tags to the underlying commit.
	hash := ref.Hash()
	if tagObj, err := repo.TagObject(hash); err == nil {
		if commit, err := tagObj.Commit(); err == nil {
			hash = commit.Hash
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		slog.Warn("Tag checkout failed, staying on branch head", logfields.Tag(tag), logfields.Error(err))
		return
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		slog.Warn("Tag checkout failed, staying on branch head", logfields.Tag(tag), logfields.Error(err))
		return
	}
	slog.Info("Workspace pinned to tag", logfields.Tag(tag), slog.String("commit", hash.String()[:8]))
}
