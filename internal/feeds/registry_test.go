package feeds

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/fwbuilder/internal/executor"
)

// fakeRunner records invocations; onRun, when set, simulates tool side
// effects.
type fakeRunner struct {
	calls []executor.Command
	onRun func(executor.Command) error
}

func (f *fakeRunner) Run(_ context.Context, cmd executor.Command) error {
	f.calls = append(f.calls, cmd)
	if f.onRun != nil {
		return f.onRun(cmd)
	}
	return nil
}

const feedLine = "src-git splitdns https://example.com/splitdns-feed.git"

func newTestRegistry(t *testing.T) (*Registry, *fakeRunner, string) {
	t.Helper()
	ws := t.TempDir()
	runner := &fakeRunner{}
	reg := NewRegistry(ws, "feeds.conf.default", runner).WithConsole(io.Discard)
	return reg, runner, ws
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	preexisting := "src-git packages https://git.openwrt.org/feed/packages.git\nsrc-git luci https://git.openwrt.org/project/luci.git\n"
	require.NoError(t, os.WriteFile(reg.ManifestPath(), []byte(preexisting), 0o644))

	require.NoError(t, reg.Register(feedLine))
	require.NoError(t, reg.Register(feedLine))

	data, err := os.ReadFile(reg.ManifestPath())
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(string(data), feedLine), "line must appear exactly once")
	// Pre-existing lines keep their positions.
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "src-git packages https://git.openwrt.org/feed/packages.git", lines[0])
	assert.Equal(t, "src-git luci https://git.openwrt.org/project/luci.git", lines[1])
	assert.Equal(t, feedLine, lines[2])
}

func TestRegisterCreatesMissingManifest(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	require.NoError(t, reg.Register(feedLine))

	data, err := os.ReadFile(reg.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, feedLine+"\n", string(data))
}

func TestRegisterHandlesMissingTrailingNewline(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	require.NoError(t, os.WriteFile(reg.ManifestPath(), []byte("src-git packages https://example.com/p.git"), 0o644))

	require.NoError(t, reg.Register(feedLine))

	data, err := os.ReadFile(reg.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, "src-git packages https://example.com/p.git\n"+feedLine+"\n", string(data))
}

func TestRegisterMatchIsExact(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	// Differs only by case and trailing whitespace; both must not count as a
	// match for the canonical line.
	require.NoError(t, os.WriteFile(reg.ManifestPath(),
		[]byte("SRC-GIT splitdns https://example.com/splitdns-feed.git\n"+feedLine+" \n"), 0o644))

	require.NoError(t, reg.Register(feedLine))

	data, err := os.ReadFile(reg.ManifestPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), feedLine+"\n")
}

func TestUpdateScoping(t *testing.T) {
	reg, runner, ws := newTestRegistry(t)

	require.NoError(t, reg.Update(context.Background(), ""))
	require.NoError(t, reg.Update(context.Background(), "splitdns"))

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"update", "-a"}, runner.calls[0].Args)
	assert.Equal(t, []string{"update", "splitdns"}, runner.calls[1].Args)
	assert.Equal(t, ws, runner.calls[0].Dir)
	assert.Equal(t, filepath.Join(ws, "scripts", "feeds"), runner.calls[0].Name)
}

func TestInstallScoping(t *testing.T) {
	reg, runner, _ := newTestRegistry(t)

	require.NoError(t, reg.Install(context.Background(), InstallOptions{}))
	require.NoError(t, reg.Install(context.Background(), InstallOptions{PriorityFeed: "splitdns"}))
	require.NoError(t, reg.Install(context.Background(), InstallOptions{PriorityFeed: "splitdns", Package: "splitdns"}))

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"install", "-a"}, runner.calls[0].Args)
	assert.Equal(t, []string{"install", "-p", "splitdns", "-a"}, runner.calls[1].Args)
	assert.Equal(t, []string{"install", "-p", "splitdns", "splitdns"}, runner.calls[2].Args)
}

func TestToolFailureIsFatal(t *testing.T) {
	reg, runner, _ := newTestRegistry(t)
	runner.onRun = func(executor.Command) error { return os.ErrPermission }

	err := reg.Update(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed update")
}
