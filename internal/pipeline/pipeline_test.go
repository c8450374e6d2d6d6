package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/fwbuilder/internal/config"
	"git.home.luguber.info/inful/fwbuilder/internal/history"
	"git.home.luguber.info/inful/fwbuilder/internal/metrics"
	"git.home.luguber.info/inful/fwbuilder/internal/testutil"
	"git.home.luguber.info/inful/fwbuilder/internal/workspace"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// testFixture assembles a complete runnable pipeline environment: a local git
// remote, a configuration snapshot, and fake external tools standing in for
// make and the feed script.
type testFixture struct {
	cfg       *config.Config
	feedTool  string
	buildTool string
	expand    string
}

func newTestFixture(t *testing.T, buildBody string) *testFixture {
	t.Helper()
	base := t.TempDir()
	bin := filepath.Join(base, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))

	snapshot := filepath.Join(base, "config.seed")
	require.NoError(t, os.WriteFile(snapshot, []byte("CONFIG_TARGET_x86=y\n"), 0o644))

	overlay := filepath.Join(base, "overlay")
	require.NoError(t, os.MkdirAll(filepath.Join(overlay, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(overlay, "etc", "banner"), []byte("fw\n"), 0o644))

	// The fake feed tool mimics the update/install side effects the override
	// stage depends on: update materializes the feed checkout, install
	// materializes the owner tree under package/feeds.
	feedTool := writeScript(t, bin, "feeds", `case "$1" in
update)
  mkdir -p feeds/splitdns/splitdns
  ;;
install)
  mkdir -p package/feeds/splitdns/splitdns
  : > package/feeds/splitdns/splitdns/Makefile
  ;;
esac
exit 0
`)
	expand := writeScript(t, bin, "defconfig-make", `test -f .config || exit 1
echo "# expanded" >> .config
exit 0
`)
	buildTool := writeScript(t, bin, "build-make", buildBody)

	cfg := &config.Config{
		Pin: config.PinConfig{
			URL:    testutil.CreateGitFixture(t, ""),
			Branch: "main",
		},
		Feed: config.FeedConfig{
			Name:     "splitdns",
			URL:      "https://example.com/splitdns-feed.git",
			Method:   "src-git",
			Manifest: "feeds.conf.default",
		},
		Override: config.OverrideConfig{
			Feed:       "splitdns",
			TargetPath: "package/feeds/packages/splitdns",
			SourcePath: "feeds/splitdns/splitdns",
			Package:    "splitdns",
			OwnerFeed:  "splitdns",
			ConflictPaths: []string{
				"package/feeds/splitdns/splitdns",
			},
		},
		Build: config.BuildConfig{Jobs: 1, DiagnosticTarget: "splitdns"},
		Paths: config.PathsConfig{
			Workspace:      filepath.Join(base, "source"),
			ConfigSnapshot: snapshot,
			OverlayDir:     overlay,
			LogDir:         filepath.Join(base, "logs"),
			OutputRoot:     "bin/targets",
			ArtifactDepth:  4,
		},
	}
	return &testFixture{cfg: cfg, feedTool: feedTool, buildTool: buildTool, expand: expand}
}

func (f *testFixture) pipeline(opts ...Option) *Pipeline {
	all := append([]Option{
		WithSyncer(workspace.NewSyncer().WithShallowDepth(0).WithProgress(io.Discard)),
		WithFeedTool(f.feedTool),
		WithBuildTool(f.buildTool),
		WithExpandTool(f.expand),
	}, opts...)
	return New(f.cfg, all...)
}

func TestPipelineSuccess(t *testing.T) {
	fx := newTestFixture(t, `mkdir -p bin/targets/x86/64
echo img > bin/targets/x86/64/openwrt-x86-64-combined.img.gz
echo sums > bin/targets/x86/64/sha256sums
echo "build ok"
exit 0
`)

	report, err := fx.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Success)

	assert.Equal(t, 0, report.ExitCode)
	assert.NotEmpty(t, report.RunID)
	assert.NotEmpty(t, report.Revision)
	assert.Nil(t, report.Triage)
	assert.Len(t, report.Artifacts, 2)

	// Every stage ran, in order, and none was fatal.
	var names []string
	for _, s := range report.Stages {
		names = append(names, s.Stage)
		assert.NotEqual(t, StatusFatal, s.Status, s.Stage)
	}
	assert.Equal(t, []string{
		"workspace_sync", "feed_registry", "override_resolve",
		"config_apply", "build", "artifacts",
	}, names)

	ws := fx.cfg.Paths.Workspace

	// Feed manifest carries the registered line.
	manifest, readErr := os.ReadFile(filepath.Join(ws, "feeds.conf.default"))
	require.NoError(t, readErr)
	assert.Contains(t, string(manifest), "src-git splitdns https://example.com/splitdns-feed.git")

	// The override target is a symlink into the feed checkout.
	link, linkErr := os.Readlink(filepath.Join(ws, "package", "feeds", "packages", "splitdns"))
	require.NoError(t, linkErr)
	assert.Contains(t, link, filepath.Join("feeds", "splitdns", "splitdns"))

	// Snapshot applied, expanded, and overlay copied into files/.
	liveCfg, cfgErr := os.ReadFile(filepath.Join(ws, ".config"))
	require.NoError(t, cfgErr)
	assert.Contains(t, string(liveCfg), "CONFIG_TARGET_x86=y")
	assert.Contains(t, string(liveCfg), "# expanded")
	_, overlayErr := os.Stat(filepath.Join(ws, "files", "etc", "banner"))
	assert.NoError(t, overlayErr)

	// Build log was captured.
	logData, logErr := os.ReadFile(report.LogPath)
	require.NoError(t, logErr)
	assert.Contains(t, string(logData), "build ok")
}

func TestPipelineIsReRunnable(t *testing.T) {
	fx := newTestFixture(t, `mkdir -p bin/targets/x86/64
echo img > bin/targets/x86/64/openwrt-x86-64-combined.img.gz
exit 0
`)

	for i := 0; i < 2; i++ {
		report, err := fx.pipeline().Run(context.Background())
		require.NoError(t, err, "run %d", i)
		require.True(t, report.Success)
	}

	// Idempotent registration: the feed line appears exactly once.
	manifest, err := os.ReadFile(filepath.Join(fx.cfg.Paths.Workspace, "feeds.conf.default"))
	require.NoError(t, err)
	assert.Equal(t, "src-git splitdns https://example.com/splitdns-feed.git\n", string(manifest))
}

func TestPipelineBuildFailure(t *testing.T) {
	fx := newTestFixture(t, `if [ "$1" != "-j1" ]; then
  # diagnostic rerun
  echo "splitdns.c:1: error: detail from rerun"
  exit 2
fi
echo "CC splitdns.o"
echo "splitdns.c:42: error: expected ';'" 1>&2
echo "make: *** [splitdns.o] Error 1" 1>&2
exit 2
`)

	report, err := fx.pipeline().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline failed at stage build")
	assert.Contains(t, err.Error(), "exited with status 2")

	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Equal(t, 2, report.ExitCode)
	assert.Empty(t, report.Artifacts)

	// Triage ran before the fatal result was reported.
	require.NotNil(t, report.Triage)
	assert.False(t, report.Triage.Empty())
	joined := ""
	for _, m := range report.Triage.Matches {
		joined += m + "\n"
	}
	assert.Contains(t, joined, "expected ';'")
	assert.Contains(t, joined, "detail from rerun")

	// The build stage is the fatal one and nothing ran after it.
	last := report.Stages[len(report.Stages)-1]
	assert.Equal(t, "build", last.Stage)
	assert.Equal(t, StatusFatal, last.Status)
}

func TestPipelineRecordsHistoryAndMetrics(t *testing.T) {
	fx := newTestFixture(t, `mkdir -p bin/targets/x86/64
echo img > bin/targets/x86/64/openwrt-x86-64-combined.img.gz
exit 0
`)

	store, err := history.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	report, err := fx.pipeline(WithHistory(store), WithRecorder(recorder)).Run(context.Background())
	require.NoError(t, err)

	recent, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, report.RunID, recent[0].ID)
	assert.Equal(t, "success", recent[0].Outcome)
	assert.Equal(t, 1, recent[0].ArtifactCount)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fwbuilder_run_outcomes_total")
	assert.Contains(t, names, "fwbuilder_stage_duration_seconds")
}

func TestPipelineStopsOnFatalStage(t *testing.T) {
	fx := newTestFixture(t, "exit 0\n")
	// An unreachable snapshot makes config_apply fatal before any build runs.
	fx.cfg.Paths.ConfigSnapshot = filepath.Join(t.TempDir(), "missing.seed")

	report, err := fx.pipeline().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config_apply")

	last := report.Stages[len(report.Stages)-1]
	assert.Equal(t, "config_apply", last.Stage)
	assert.Equal(t, StatusFatal, last.Status)
	assert.Equal(t, -1, report.ExitCode, "no build ran, so no build exit status")
}
