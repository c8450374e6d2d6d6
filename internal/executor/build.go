package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

// BuildOptions parameterize one build invocation.
type BuildOptions struct {
	Jobs       int
	Verbose    bool
	ExtraFlags string
	LogPath    string
}

// BuildResult reports the outcome of a build invocation. ExitCode is the
// build command's own exit status.
type BuildResult struct {
	ExitCode int
	LogPath  string
	Duration time.Duration
}

// Failed reports whether the build command exited non-zero.
func (r *BuildResult) Failed() bool { return r.ExitCode != 0 }

// Builder invokes the external build tool inside the workspace, duplicating
// combined output to the console and a log file.
type Builder struct {
	workspace string
	runner    CommandRunner
	tool      string
	console   io.Writer
}

// NewBuilder creates a Builder for the given workspace directory.
func NewBuilder(workspace string, runner CommandRunner) *Builder {
	return &Builder{
		workspace: workspace,
		runner:    runner,
		tool:      "make",
		console:   os.Stdout,
	}
}

// WithTool overrides the build tool binary (tests).
func (b *Builder) WithTool(tool string) *Builder {
	b.tool = tool
	return b
}

// WithConsole overrides the console writer (tests).
func (b *Builder) WithConsole(w io.Writer) *Builder {
	b.console = w
	return b
}

// Run executes the build. Output is duplicated to the console and the log
// file with an in-process MultiWriter rather than a shell pipeline, so the
// recorded exit code is always the build command's own status: a failing
// build whose log write succeeds is still reported as failed.
//
// A non-zero build exit is not an error here; callers route it through
// failure triage first. The returned error covers only environment problems
// (log file unwritable, tool missing).
func (b *Builder) Run(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if err := os.MkdirAll(filepath.Dir(opts.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.Create(opts.LogPath)
	if err != nil {
		return nil, fmt.Errorf("create build log: %w", err)
	}
	defer logFile.Close()

	args := []string{fmt.Sprintf("-j%d", opts.Jobs)}
	if opts.Verbose {
		args = append(args, "V=s")
	}
	args = append(args, strings.Fields(opts.ExtraFlags)...)

	slog.Info("Starting build",
		slog.String("tool", b.tool),
		slog.Int("jobs", opts.Jobs),
		logfields.Path(opts.LogPath))

	combined := io.MultiWriter(b.console, logFile)
	start := time.Now()
	runErr := b.runner.Run(ctx, Command{
		Dir:    b.workspace,
		Name:   b.tool,
		Args:   args,
		Stdout: combined,
		Stderr: combined,
	})
	duration := time.Since(start)

	code := ExitCode(runErr)
	if runErr != nil && code < 0 {
		return nil, fmt.Errorf("build tool did not run: %w", runErr)
	}

	slog.Info("Build finished",
		logfields.ExitCode(code),
		logfields.DurationMS(float64(duration.Milliseconds())))

	return &BuildResult{ExitCode: code, LogPath: opts.LogPath, Duration: duration}, nil
}

// DiagnosticRerun rebuilds a single component at minimal parallelism with
// maximum verbosity, appending its output to the build log. It exists purely
// to enrich diagnostics after a full-build failure, so its own failure is
// tolerated; the pipeline's fatal exit stays driven by the original build.
func (b *Builder) DiagnosticRerun(ctx context.Context, target, logPath string) {
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Diagnostic rerun skipped, log not writable", logfields.Path(logPath), logfields.Error(err))
		return
	}
	defer logFile.Close()

	combined := io.MultiWriter(b.console, logFile)
	fmt.Fprintf(combined, "\n==== diagnostic rerun: %s ====\n", target)

	slog.Info("Rebuilding failed component for diagnostics", slog.String("target", target))
	err = b.runner.Run(ctx, Command{
		Dir:    b.workspace,
		Name:   b.tool,
		Args:   []string{fmt.Sprintf("package/%s/compile", target), "-j1", "V=s"},
		Stdout: combined,
		Stderr: combined,
	})
	if err != nil {
		slog.Warn("Diagnostic rerun failed (tolerated)", slog.String("target", target), logfields.Error(err))
	}
}
