// Package daemon runs the build pipeline on a schedule, exposing Prometheus
// metrics and reloading the configuration file when it changes.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/fwbuilder/internal/config"
	"git.home.luguber.info/inful/fwbuilder/internal/history"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
	"git.home.luguber.info/inful/fwbuilder/internal/metrics"
	"git.home.luguber.info/inful/fwbuilder/internal/notify"
	"git.home.luguber.info/inful/fwbuilder/internal/pipeline"
)

// Daemon schedules periodic pipeline runs.
type Daemon struct {
	cfgPath  string
	cfg      atomic.Pointer[config.Config]
	sched    gocron.Scheduler
	server   *http.Server
	recorder *metrics.PrometheusRecorder
	store    *history.Store
	notifier *notify.Publisher
}

// New creates a Daemon for the given configuration. cfgPath is watched for
// changes; an updated file applies to subsequent scheduled runs.
func New(cfg *config.Config, cfgPath string) (*Daemon, error) {
	if cfg.Daemon == nil {
		return nil, fmt.Errorf("daemon section missing from configuration")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	registry := prom.NewRegistry()
	d := &Daemon{
		cfgPath:  cfgPath,
		sched:    sched,
		recorder: metrics.NewPrometheusRecorder(registry),
	}
	d.cfg.Store(cfg)

	if cfg.History != nil && cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		d.store = store
	}
	if cfg.Notify != nil && cfg.Notify.Enabled {
		notifier, err := notify.NewPublisher(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("Notifier unavailable, continuing without it", logfields.Error(err))
		} else {
			d.notifier = notifier
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	d.server = &http.Server{
		Addr:              cfg.Daemon.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d, nil
}

// Start schedules periodic runs and blocks until ctx is cancelled. Overlapping
// runs against the same workspace are never scheduled.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.cfg.Load()

	_, err := d.sched.NewJob(
		gocron.DurationJob(cfg.Daemon.Interval.Std()),
		gocron.NewTask(d.runOnce),
		gocron.WithName("pipeline-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule pipeline job: %w", err)
	}

	d.sched.Start()
	slog.Info("Daemon started",
		slog.String("interval", cfg.Daemon.Interval.Std().String()),
		slog.String("listen", cfg.Daemon.Listen))

	go d.watchConfig(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Stopping daemon")
	if err := d.sched.Shutdown(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Warn("History store close failed", logfields.Error(err))
		}
	}
	if d.notifier != nil {
		d.notifier.Close()
	}
	return d.server.Shutdown(ctx)
}

// runOnce executes a single scheduled pipeline run against the current
// configuration snapshot.
func (d *Daemon) runOnce() {
	cfg := d.cfg.Load()

	opts := []pipeline.Option{pipeline.WithRecorder(d.recorder)}
	if d.store != nil {
		opts = append(opts, pipeline.WithHistory(d.store))
	}
	if d.notifier != nil {
		opts = append(opts, pipeline.WithNotifier(d.notifier))
	}

	report, err := pipeline.New(cfg, opts...).Run(context.Background())
	if err != nil {
		slog.Error("Scheduled run failed", logfields.Error(err))
		return
	}
	slog.Info("Scheduled run succeeded",
		logfields.RunID(report.RunID),
		slog.Int("artifacts", len(report.Artifacts)))
}
