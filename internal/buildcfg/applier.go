// Package buildcfg materializes the pinned configuration snapshot into the
// live build configuration slot and expands it via the external build system.
package buildcfg

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pipeerrors "git.home.luguber.info/inful/fwbuilder/internal/errors"
	"git.home.luguber.info/inful/fwbuilder/internal/executor"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

// liveSlot is the live configuration file name inside the workspace.
const liveSlot = ".config"

// Applier copies the configuration snapshot into the workspace and runs the
// expansion step.
type Applier struct {
	workspace string
	runner    executor.CommandRunner
	tool      string
	console   io.Writer
}

// NewApplier creates an Applier for the workspace directory.
func NewApplier(workspace string, runner executor.CommandRunner) *Applier {
	return &Applier{workspace: workspace, runner: runner, tool: "make", console: os.Stdout}
}

// WithTool overrides the expansion tool (tests).
func (a *Applier) WithTool(tool string) *Applier {
	a.tool = tool
	return a
}

// WithConsole overrides the console writer (tests).
func (a *Applier) WithConsole(w io.Writer) *Applier {
	a.console = w
	return a
}

// LiveSlotPath returns the live configuration path inside the workspace.
func (a *Applier) LiveSlotPath() string {
	return filepath.Join(a.workspace, liveSlot)
}

// Apply copies the snapshot verbatim over the live configuration slot. The
// snapshot is the sole source of truth for this run, so any existing live
// configuration is overwritten unconditionally. A missing snapshot is fatal.
func (a *Applier) Apply(snapshotPath string) error {
	src, err := os.Open(snapshotPath)
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryConfig,
			fmt.Sprintf("open configuration snapshot %s", snapshotPath))
	}
	defer src.Close()

	dst, err := os.Create(a.LiveSlotPath())
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryConfig, "create live configuration slot")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryConfig, "copy configuration snapshot")
	}
	slog.Info("Configuration snapshot applied", logfields.Path(a.LiveSlotPath()))
	return nil
}

// ApplyOverlay copies the static rootfs overlay tree (e.g. a default
// package-mirror configuration) into the workspace files/ tree. The payload
// is opaque. A missing overlay source is tolerated.
func (a *Applier) ApplyOverlay(overlayDir string) error {
	if overlayDir == "" {
		return nil
	}
	if _, err := os.Stat(overlayDir); err != nil {
		slog.Warn("Overlay directory missing, skipping", logfields.Path(overlayDir))
		return nil
	}

	dest := filepath.Join(a.workspace, "files")
	err := filepath.WalkDir(overlayDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(overlayDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryFileSystem, "copy rootfs overlay")
	}
	slog.Info("Rootfs overlay applied", logfields.Path(dest))
	return nil
}

// Expand derives the full dependent configuration from the applied snapshot.
// Failure is fatal: a build must never proceed against an unexpanded or
// partially expanded configuration.
func (a *Applier) Expand(ctx context.Context) error {
	slog.Info("Expanding configuration", logfields.Path(a.workspace))
	err := a.runner.Run(ctx, executor.Command{
		Dir:    a.workspace,
		Name:   a.tool,
		Args:   []string{"defconfig"},
		Stdout: a.console,
		Stderr: a.console,
	})
	if err != nil {
		return pipeerrors.WrapFatal(err, pipeerrors.CategoryConfig, "expand configuration (defconfig)")
	}
	return nil
}

// PersistExpanded copies the expanded configuration to the log directory for
// later inspection. This is a diagnostic convenience; the caller treats a
// returned error as a warning.
func (a *Applier) PersistExpanded(logDir string) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("config-expanded-%s", time.Now().Format("20060102-150405"))
	return copyFile(a.LiveSlotPath(), filepath.Join(logDir, name))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
