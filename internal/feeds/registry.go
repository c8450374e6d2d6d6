// Package feeds registers external package feeds idempotently and drives the
// feed installer tool.
package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pipeerrors "git.home.luguber.info/inful/fwbuilder/internal/errors"
	"git.home.luguber.info/inful/fwbuilder/internal/executor"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

// Registry manipulates the feed manifest and invokes the feed installer.
type Registry struct {
	workspace string
	manifest  string // manifest file name, relative to the workspace
	runner    executor.CommandRunner
	tool      string // feed tool path, relative to the workspace
	console   io.Writer
}

// NewRegistry creates a Registry rooted at the workspace directory.
func NewRegistry(workspace, manifest string, runner executor.CommandRunner) *Registry {
	return &Registry{
		workspace: workspace,
		manifest:  manifest,
		runner:    runner,
		tool:      filepath.Join("scripts", "feeds"),
		console:   os.Stdout,
	}
}

// WithTool overrides the feed tool path (tests).
func (r *Registry) WithTool(tool string) *Registry {
	r.tool = tool
	return r
}

// WithConsole overrides the console writer (tests).
func (r *Registry) WithConsole(w io.Writer) *Registry {
	r.console = w
	return r
}

// ManifestPath returns the absolute path of the feed manifest.
func (r *Registry) ManifestPath() string {
	return filepath.Join(r.workspace, r.manifest)
}

// Register appends line to the manifest only when no exact, full-line match is
// already present. Pre-existing lines keep their position; registration is
// idempotent. Matching is whitespace- and case-exact.
func (r *Registry) Register(line string) error {
	path := r.ManifestPath()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryFeeds, "read feed manifest")
	}

	for _, existing := range strings.Split(string(data), "\n") {
		if existing == line {
			slog.Debug("Feed already registered", logfields.Path(path))
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryFeeds, "open feed manifest")
	}
	defer f.Close()

	payload := line + "\n"
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		payload = "\n" + payload
	}
	if _, err := f.WriteString(payload); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryFeeds, "append feed registration")
	}
	slog.Info("Feed registered", logfields.Path(path), slog.String("line", line))
	return nil
}

// InstallOptions scope a feed install invocation.
type InstallOptions struct {
	// PriorityFeed makes the installer prefer this feed's copy of any package.
	PriorityFeed string
	// Package limits installation to one package; empty installs everything.
	Package string
}

// Update refreshes feed contents for all feeds, or for the named feed only.
func (r *Registry) Update(ctx context.Context, scope string) error {
	args := []string{"update"}
	if scope == "" {
		args = append(args, "-a")
	} else {
		args = append(args, scope)
	}
	if err := r.run(ctx, args...); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryFeeds, fmt.Sprintf("feed update (scope %q)", scope))
	}
	return nil
}

// Install materializes feed packages into the workspace package tree.
func (r *Registry) Install(ctx context.Context, opts InstallOptions) error {
	args := []string{"install"}
	if opts.PriorityFeed != "" {
		args = append(args, "-p", opts.PriorityFeed)
	}
	if opts.Package != "" {
		args = append(args, opts.Package)
	} else {
		args = append(args, "-a")
	}
	if err := r.run(ctx, args...); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryFeeds, fmt.Sprintf("feed install %v", args[1:]))
	}
	return nil
}

func (r *Registry) run(ctx context.Context, args ...string) error {
	tool := r.tool
	if !filepath.IsAbs(tool) {
		// exec resolves slash-containing names against the process cwd, not
		// the command dir, so anchor the tool path to the workspace.
		tool = filepath.Join(r.workspace, tool)
	}
	slog.Debug("Invoking feed tool", logfields.Path(tool), slog.Any("args", args))
	return r.runner.Run(ctx, executor.Command{
		Dir:    r.workspace,
		Name:   tool,
		Args:   args,
		Stdout: r.console,
		Stderr: r.console,
	})
}
