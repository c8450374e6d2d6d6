// Package override deterministically replaces feed-provided components with
// vendored alternatives and force-resolves cross-feed ownership of a package
// name.
package override

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	pipeerrors "git.home.luguber.info/inful/fwbuilder/internal/errors"
	"git.home.luguber.info/inful/fwbuilder/internal/feeds"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

// Resolver applies override mappings inside one workspace. Single-writer
// model: no concurrent readers of the target paths are assumed.
type Resolver struct {
	workspace string
	registry  *feeds.Registry
}

// NewResolver creates a Resolver for the workspace, using registry for the
// refresh/reinstall steps that follow an override.
func NewResolver(workspace string, registry *feeds.Registry) *Resolver {
	return &Resolver{workspace: workspace, registry: registry}
}

// abs joins a workspace-relative path, passing absolute paths through.
func (r *Resolver) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.workspace, p)
}

// checkInsideWorkspace rejects paths that resolve to the workspace root
// itself. An empty relative path joins to exactly the root, and removing or
// relinking the root would destroy the whole checkout.
func (r *Resolver) checkInsideWorkspace(what, p string) error {
	if p == "" {
		return pipeerrors.Fatal(pipeerrors.CategoryValidation,
			fmt.Sprintf("override %s path must not be empty", what))
	}
	if filepath.Clean(r.abs(p)) == filepath.Clean(r.workspace) {
		return pipeerrors.Fatal(pipeerrors.CategoryValidation,
			fmt.Sprintf("override %s path resolves to the workspace root: %s", what, p))
	}
	return nil
}

// OverrideComponent replaces the tree at targetPath with a symbolic link to
// the absolute sourcePath, then refreshes and reinstalls the affected feed so
// dependent package definitions observe the new source. The source must
// already exist (materialized by a prior feed install); its absence is fatal.
func (r *Resolver) OverrideComponent(ctx context.Context, targetPath, sourcePath, feed string) error {
	if err := r.checkInsideWorkspace("target", targetPath); err != nil {
		return err
	}
	if err := r.checkInsideWorkspace("source", sourcePath); err != nil {
		return err
	}
	source := r.abs(sourcePath)
	target := r.abs(targetPath)

	if _, err := os.Stat(source); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryOverride,
			fmt.Sprintf("override source missing: %s", source))
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryOverride, "resolve override source")
	}

	// Already pointing at the right place: nothing to do.
	if current, err := os.Readlink(target); err == nil && current == absSource {
		slog.Debug("Override already in place", logfields.Path(target))
	} else {
		if err := os.RemoveAll(target); err != nil {
			return pipeerrors.WrapFatal(err, pipeerrors.CategoryOverride,
				fmt.Sprintf("remove existing tree at %s", target))
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return pipeerrors.WrapFatal(err, pipeerrors.CategoryOverride, "create override parent directory")
		}
		if err := os.Symlink(absSource, target); err != nil {
			return pipeerrors.WrapFatal(err, pipeerrors.CategoryOverride,
				fmt.Sprintf("link %s -> %s", target, absSource))
		}
		slog.Info("Component overridden", logfields.Path(target), slog.String("source", absSource))
	}

	if err := r.registry.Update(ctx, feed); err != nil {
		return err
	}
	return r.registry.Install(ctx, feeds.InstallOptions{PriorityFeed: feed})
}

// ForceFeedOwnership resolves a same-name package provided by two feeds. It
// removes the installed tree for pkg under every conflict location, then
// reinstalls scoped to ownerFeed, producing a deterministic last-writer-wins
// outcome. Reinstall failure is fatal: the pipeline must never proceed with
// the package absent from all feeds. Re-running the same call is a no-op with
// an identical end state.
func (r *Resolver) ForceFeedOwnership(ctx context.Context, conflictPaths []string, ownerFeed, pkg string) error {
	for _, p := range conflictPaths {
		if err := r.checkInsideWorkspace("conflict", p); err != nil {
			return err
		}
		target := r.abs(p)
		if err := os.RemoveAll(target); err != nil {
			return pipeerrors.WrapFatal(err, pipeerrors.CategoryOverride,
				fmt.Sprintf("remove conflicting tree at %s", target))
		}
		slog.Debug("Removed conflicting package tree", logfields.Path(target), logfields.Package(pkg))
	}

	if err := r.registry.Install(ctx, feeds.InstallOptions{PriorityFeed: ownerFeed, Package: pkg}); err != nil {
		return err
	}

	// Advisory only: the feed tool's exit status is the authoritative success
	// signal, a missing marker is just logged.
	marker := filepath.Join(r.workspace, "package", "feeds", ownerFeed, pkg, "Makefile")
	if _, err := os.Stat(marker); err != nil {
		slog.Warn("Owner package marker not found after install",
			logfields.Feed(ownerFeed), logfields.Package(pkg), logfields.Path(marker))
	}

	slog.Info("Feed ownership forced", logfields.Feed(ownerFeed), logfields.Package(pkg))
	return nil
}
