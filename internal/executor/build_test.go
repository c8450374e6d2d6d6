package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell script and returns its path.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(os.ErrPermission))

	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	err := cmd.Run()
	require.Error(t, err)
	assert.Equal(t, 7, ExitCode(err))
}

func TestBuilderReportsToolExitStatus(t *testing.T) {
	tool := writeScript(t, "make", `echo compiling widget
echo "error: boom" 1>&2
exit 3
`)
	ws := t.TempDir()
	var console bytes.Buffer
	builder := NewBuilder(ws, NewCommandRunner()).WithTool(tool).WithConsole(&console)

	logPath := filepath.Join(t.TempDir(), "logs", "build.log")
	result, err := builder.Run(context.Background(), BuildOptions{Jobs: 2, LogPath: logPath})
	require.NoError(t, err, "a failing build is a result, not an error")

	// The exit status is the tool's own, not the log writer's.
	assert.Equal(t, 3, result.ExitCode)
	assert.True(t, result.Failed())

	// Output reaches both the console and the log file.
	logData, readErr := os.ReadFile(logPath)
	require.NoError(t, readErr)
	for _, out := range []string{console.String(), string(logData)} {
		assert.Contains(t, out, "compiling widget")
		assert.Contains(t, out, "error: boom")
	}
}

func TestBuilderSuccess(t *testing.T) {
	tool := writeScript(t, "make", "echo done\nexit 0\n")
	var console bytes.Buffer
	builder := NewBuilder(t.TempDir(), NewCommandRunner()).WithTool(tool).WithConsole(&console)

	result, err := builder.Run(context.Background(), BuildOptions{
		Jobs:    4,
		LogPath: filepath.Join(t.TempDir(), "build.log"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.Failed())
}

func TestBuilderPassesFlags(t *testing.T) {
	tool := writeScript(t, "make", `echo "$@"
exit 0
`)
	var console bytes.Buffer
	builder := NewBuilder(t.TempDir(), NewCommandRunner()).WithTool(tool).WithConsole(&console)

	_, err := builder.Run(context.Background(), BuildOptions{
		Jobs:       8,
		Verbose:    true,
		ExtraFlags: "IGNORE_ERRORS=m",
		LogPath:    filepath.Join(t.TempDir(), "build.log"),
	})
	require.NoError(t, err)
	assert.Contains(t, console.String(), "-j8 V=s IGNORE_ERRORS=m")
}

func TestBuilderMissingToolIsError(t *testing.T) {
	builder := NewBuilder(t.TempDir(), NewCommandRunner()).
		WithTool(filepath.Join(t.TempDir(), "no-such-tool")).
		WithConsole(&bytes.Buffer{})

	_, err := builder.Run(context.Background(), BuildOptions{
		Jobs:    1,
		LogPath: filepath.Join(t.TempDir(), "build.log"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not run")
}

func TestDiagnosticRerunAppendsToLog(t *testing.T) {
	tool := writeScript(t, "make", `echo "diag: $@"
exit 1
`)
	var console bytes.Buffer
	builder := NewBuilder(t.TempDir(), NewCommandRunner()).WithTool(tool).WithConsole(&console)

	logPath := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(logPath, []byte("original output\n"), 0o644))

	// The rerun's own failure is tolerated; it only enriches the log.
	builder.DiagnosticRerun(context.Background(), "splitdns", logPath)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "original output")
	assert.Contains(t, string(data), "diagnostic rerun: splitdns")
	assert.Contains(t, string(data), "diag: package/splitdns/compile -j1 V=s")
}
