package triage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestSummarizePicksErrorLines(t *testing.T) {
	log := writeLog(t, []string{
		"CC foo.o",
		"make[2]: Entering directory 'package/splitdns'",
		"splitdns.c:42: error: expected ';' before 'return'",
		"make[2]: *** [Makefile:12: splitdns.o] Error 1",
		"make[1]: Leaving directory",
		"collect2: fatal: ld terminated with signal",
	})

	s := Summarize(log)
	assert.False(t, s.Empty())
	assert.Equal(t, 6, s.TotalLines)
	require.Len(t, s.Matches, 2)
	assert.Contains(t, s.Matches[0], "expected ';'")
	assert.Contains(t, s.Matches[1], "Error 1")
}

func TestSummarizeIsBounded(t *testing.T) {
	// Far more matching lines than the caps; the summary keeps only the most
	// recent ones, in order.
	var lines []string
	for i := 0; i < 1000; i++ {
		lines = append(lines, fmt.Sprintf("line %04d: error: synthetic failure", i))
	}
	log := writeLog(t, lines)

	s := Summarize(log)
	assert.Equal(t, 1000, s.TotalLines)

	require.Len(t, s.Matches, 200)
	assert.Contains(t, s.Matches[0], "line 0800")
	assert.Contains(t, s.Matches[199], "line 0999")

	require.Len(t, s.Tail, 120)
	assert.Contains(t, s.Tail[0], "line 0880")
	assert.Contains(t, s.Tail[119], "line 0999")
}

func TestSummarizeTailCoversNonMatchingLines(t *testing.T) {
	log := writeLog(t, []string{"all quiet", "nothing to see", "done"})

	s := Summarize(log)
	assert.Empty(t, s.Matches)
	require.Len(t, s.Tail, 3)
	assert.Equal(t, "done", s.Tail[2])
	assert.False(t, s.Empty(), "a non-empty tail still carries diagnostics")
}

func TestSummarizeSurvivesOversizedLines(t *testing.T) {
	// A single pathological line (one giant compiler invocation) must be
	// truncated, not abort the scan and drop the true tail.
	log := writeLog(t, []string{
		"CC " + strings.Repeat("x", 3*1024*1024),
		"splitdns.c:42: error: expected ';'",
		"make: done",
	})

	s := Summarize(log)
	assert.Equal(t, 3, s.TotalLines)

	require.Len(t, s.Tail, 3)
	assert.LessOrEqual(t, len(s.Tail[0]), 1024*1024)
	assert.Equal(t, "make: done", s.Tail[2], "tail after the oversized line must survive")

	require.Len(t, s.Matches, 1)
	assert.Contains(t, s.Matches[0], "expected ';'")
}

func TestSummarizeMissingLogIsEmpty(t *testing.T) {
	s := Summarize(filepath.Join(t.TempDir(), "missing.log"))
	assert.True(t, s.Empty())
	assert.Empty(t, s.Matches)
	assert.Empty(t, s.Tail)
}
