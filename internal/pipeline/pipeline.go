// Package pipeline composes the upstream source tree, the external package
// feed, and the pinned configuration into one deterministic build invocation,
// then reports success artifacts or triages failure.
//
// Stages run strictly sequentially; each starts only after the previous
// stage's side effects are durable. Recovery is via idempotent re-runnability
// of the whole pipeline, not per-stage retries.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/fwbuilder/internal/artifacts"
	"git.home.luguber.info/inful/fwbuilder/internal/buildcfg"
	"git.home.luguber.info/inful/fwbuilder/internal/config"
	"git.home.luguber.info/inful/fwbuilder/internal/executor"
	"git.home.luguber.info/inful/fwbuilder/internal/feeds"
	"git.home.luguber.info/inful/fwbuilder/internal/history"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
	"git.home.luguber.info/inful/fwbuilder/internal/metrics"
	"git.home.luguber.info/inful/fwbuilder/internal/notify"
	"git.home.luguber.info/inful/fwbuilder/internal/override"
	"git.home.luguber.info/inful/fwbuilder/internal/triage"
	"git.home.luguber.info/inful/fwbuilder/internal/workspace"
)

// Report is the result of one pipeline run.
type Report struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Revision  string          `json:"revision,omitempty"`
	ExitCode  int             `json:"exit_code"`
	Stages    []StageResult   `json:"stages"`
	Artifacts []string        `json:"artifacts,omitempty"`
	Triage    *triage.Summary `json:"-"`
	LogPath   string          `json:"log_path,omitempty"`
	Success   bool            `json:"success"`
}

// Pipeline wires the stages together for one configuration.
type Pipeline struct {
	cfg      *config.Config
	runner   executor.CommandRunner
	syncer   *workspace.Syncer
	recorder metrics.Recorder
	store    *history.Store
	notifier *notify.Publisher

	// tool overrides, empty means the component default
	buildTool  string
	feedTool   string
	expandTool string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunner injects a CommandRunner (tests).
func WithRunner(r executor.CommandRunner) Option { return func(p *Pipeline) { p.runner = r } }

// WithSyncer injects a workspace Syncer.
func WithSyncer(s *workspace.Syncer) Option { return func(p *Pipeline) { p.syncer = s } }

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithHistory injects the run history store.
func WithHistory(s *history.Store) Option { return func(p *Pipeline) { p.store = s } }

// WithNotifier injects the run report publisher.
func WithNotifier(n *notify.Publisher) Option { return func(p *Pipeline) { p.notifier = n } }

// WithBuildTool overrides the build tool binary (tests).
func WithBuildTool(tool string) Option { return func(p *Pipeline) { p.buildTool = tool } }

// WithFeedTool overrides the feed tool path (tests).
func WithFeedTool(tool string) Option { return func(p *Pipeline) { p.feedTool = tool } }

// WithExpandTool overrides the config expansion tool (tests).
func WithExpandTool(tool string) Option { return func(p *Pipeline) { p.expandTool = tool } }

// New creates a Pipeline.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		runner:   executor.NewCommandRunner(),
		syncer:   workspace.NewSyncer(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type stage struct {
	name string
	fn   func(ctx context.Context) Outcome
}

// Run executes the full pipeline. The returned error is non-nil exactly when
// the run failed; the report is returned in both cases.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	cfg := p.cfg
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		ExitCode:  -1,
	}
	report.LogPath = filepath.Join(cfg.Paths.LogDir,
		fmt.Sprintf("build-%s.log", report.StartedAt.Format("20060102-150405")))

	ws := cfg.Paths.Workspace
	registry := feeds.NewRegistry(ws, cfg.Feed.Manifest, p.runner)
	if p.feedTool != "" {
		registry.WithTool(p.feedTool)
	}
	resolver := override.NewResolver(ws, registry)
	applier := buildcfg.NewApplier(ws, p.runner)
	if p.expandTool != "" {
		applier.WithTool(p.expandTool)
	}
	builder := executor.NewBuilder(ws, p.runner)
	if p.buildTool != "" {
		builder.WithTool(p.buildTool)
	}

	slog.Info("Pipeline starting", logfields.RunID(report.RunID), logfields.Path(ws))

	stages := []stage{
		{"workspace_sync", func(ctx context.Context) Outcome {
			w, err := p.syncer.Sync(workspace.Pin{
				URL:    cfg.Pin.URL,
				Branch: cfg.Pin.Branch,
				Tag:    cfg.Pin.Tag,
			}, ws)
			if err != nil {
				return FatalErr(err)
			}
			report.Revision = w.Revision
			return Ok()
		}},
		{"feed_registry", func(ctx context.Context) Outcome {
			if err := registry.Register(cfg.Feed.ManifestLine()); err != nil {
				return FatalErr(err)
			}
			if err := registry.Update(ctx, ""); err != nil {
				return FatalErr(err)
			}
			if err := registry.Install(ctx, feeds.InstallOptions{}); err != nil {
				return FatalErr(err)
			}
			return Ok()
		}},
		{"override_resolve", func(ctx context.Context) Outcome {
			ov := cfg.Override
			if err := resolver.OverrideComponent(ctx, ov.TargetPath, ov.SourcePath, ov.Feed); err != nil {
				return FatalErr(err)
			}
			if len(ov.ConflictPaths) > 0 {
				if err := resolver.ForceFeedOwnership(ctx, ov.ConflictPaths, ov.OwnerFeed, ov.Package); err != nil {
					return FatalErr(err)
				}
			}
			return Ok()
		}},
		{"config_apply", func(ctx context.Context) Outcome {
			if err := applier.Apply(cfg.Paths.ConfigSnapshot); err != nil {
				return FatalErr(err)
			}
			if err := applier.ApplyOverlay(cfg.Paths.OverlayDir); err != nil {
				return FatalErr(err)
			}
			if err := applier.Expand(ctx); err != nil {
				return FatalErr(err)
			}
			if err := applier.PersistExpanded(cfg.Paths.LogDir); err != nil {
				return Warn(fmt.Sprintf("expanded config not persisted: %v", err))
			}
			return Ok()
		}},
		{"build", func(ctx context.Context) Outcome {
			result, err := builder.Run(ctx, executor.BuildOptions{
				Jobs:       cfg.Build.Jobs,
				Verbose:    cfg.Build.Verbose,
				ExtraFlags: cfg.Build.ExtraFlags,
				LogPath:    report.LogPath,
			})
			if err != nil {
				return FatalErr(err)
			}
			report.ExitCode = result.ExitCode
			if result.Failed() {
				// Triage before the pipeline reports fatal failure, so the
				// caller always receives a bounded diagnostic.
				if cfg.Build.DiagnosticTarget != "" {
					builder.DiagnosticRerun(ctx, cfg.Build.DiagnosticTarget, report.LogPath)
				}
				report.Triage = triage.Summarize(report.LogPath)
				slog.Error("Build failed",
					logfields.ExitCode(result.ExitCode),
					slog.Int("error_lines", len(report.Triage.Matches)),
					logfields.Path(report.LogPath))
				return Fatal(fmt.Sprintf("build exited with status %d", result.ExitCode))
			}
			return Ok()
		}},
		{"artifacts", func(ctx context.Context) Outcome {
			root := cfg.Paths.OutputRoot
			if !filepath.IsAbs(root) {
				root = filepath.Join(ws, root)
			}
			report.Artifacts = artifacts.Locate(root, cfg.Paths.ArtifactDepth)
			slog.Info("Artifacts located", slog.Int("count", len(report.Artifacts)))
			return Ok()
		}},
	}

	var failedStage string
	var failure Outcome
	for _, st := range stages {
		start := time.Now()
		out := st.fn(ctx)
		elapsed := time.Since(start)

		report.Stages = append(report.Stages, StageResult{
			Stage:    st.name,
			Status:   out.Status,
			Reason:   out.Reason,
			Duration: elapsed,
		})
		p.recorder.ObserveStageDuration(st.name, elapsed)
		p.recorder.IncStageResult(st.name, resultLabel(out.Status))

		switch out.Status {
		case StatusWarn:
			slog.Warn("Stage completed with warning", logfields.Stage(st.name), slog.String("reason", out.Reason))
		case StatusFatal:
			slog.Error("Stage failed", logfields.Stage(st.name), slog.String("reason", out.Reason))
		default:
			slog.Debug("Stage completed", logfields.Stage(st.name), logfields.DurationMS(float64(elapsed.Milliseconds())))
		}

		if out.IsFatal() {
			failedStage = st.name
			failure = out
			break
		}
	}

	report.Duration = time.Since(report.StartedAt)
	report.Success = failedStage == ""

	p.finish(ctx, report)

	if !report.Success {
		return report, fmt.Errorf("pipeline failed at stage %s: %s", failedStage, failure.Reason)
	}
	slog.Info("Pipeline succeeded",
		logfields.RunID(report.RunID),
		slog.Int("artifacts", len(report.Artifacts)),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

// finish records run-level observations. History and notification are
// best-effort: their failure never changes the run result.
func (p *Pipeline) finish(ctx context.Context, report *Report) {
	outcome := metrics.OutcomeFailure
	runOutcome := "failure"
	if report.Success {
		outcome = metrics.OutcomeSuccess
		runOutcome = "success"
	}
	p.recorder.ObserveRunDuration(report.Duration)
	p.recorder.IncRunOutcome(outcome)

	if p.store != nil {
		err := p.store.Record(ctx, history.Run{
			ID:            report.RunID,
			StartedAt:     report.StartedAt,
			Duration:      report.Duration,
			Revision:      report.Revision,
			ExitCode:      report.ExitCode,
			Outcome:       runOutcome,
			ArtifactCount: len(report.Artifacts),
			LogPath:       report.LogPath,
		})
		if err != nil {
			slog.Warn("Failed to record run history", logfields.RunID(report.RunID), logfields.Error(err))
		}
	}

	if p.notifier != nil {
		if err := p.notifier.Publish(report); err != nil {
			slog.Warn("Failed to publish run report", logfields.RunID(report.RunID), logfields.Error(err))
		}
	}
}

func resultLabel(s Status) metrics.ResultLabel {
	switch s {
	case StatusWarn:
		return metrics.ResultWarn
	case StatusFatal:
		return metrics.ResultFatal
	default:
		return metrics.ResultOk
	}
}
