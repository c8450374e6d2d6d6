// Package triage extracts a bounded diagnostic summary from a build log
// without re-running the build.
package triage

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

const (
	// maxMatches bounds the pattern-match section of a summary.
	maxMatches = 200
	// tailLines is the amount of verbatim trailing context returned
	// regardless of pattern matches.
	tailLines = 120
	// maxLineBytes caps a single kept line. Build logs can carry pathological
	// lines (single compiler invocations); anything longer is truncated, never
	// allowed to abort the scan and drop the true tail.
	maxLineBytes = 1024 * 1024
)

// errorPatterns is the fixed set of error-signal patterns: explicit error
// markers, missing-file/permission errors, and build-tool failure markers.
var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\berror\b`),
	regexp.MustCompile(`(?i)\bfailed\b`),
	regexp.MustCompile(`No such file or directory`),
	regexp.MustCompile(`Permission denied`),
	regexp.MustCompile(`undefined reference`),
	regexp.MustCompile(`\*\*\*.*(Error|No rule)`),
	regexp.MustCompile(`make\[\d+\].*Error \d+`),
}

// Summary is the bounded diagnostic extracted from a build log.
type Summary struct {
	// Matches holds at most maxMatches pattern-matching lines, last ones
	// kept, in original order.
	Matches []string
	// Tail holds the last tailLines lines of the log verbatim. It covers
	// failures whose signal lines match no known pattern.
	Tail []string
	// TotalLines is the total number of log lines scanned.
	TotalLines int
}

// Empty reports whether the summary carries no diagnostic content.
func (s *Summary) Empty() bool { return len(s.Matches) == 0 && len(s.Tail) == 0 }

// Summarize scans logPath and returns the bounded summary. A missing or
// unreadable log never raises: an empty summary is an acceptable degraded
// result, logged as a warning.
func Summarize(logPath string) *Summary {
	summary := &Summary{}

	f, err := os.Open(logPath)
	if err != nil {
		slog.Warn("Build log unreadable, returning empty summary", logfields.Path(logPath), logfields.Error(err))
		return summary
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		line, readErr := readBoundedLine(reader)
		if readErr != nil && readErr != io.EOF {
			slog.Warn("Build log scan truncated", logfields.Path(logPath), logfields.Error(readErr))
			break
		}
		if readErr == io.EOF && line == "" {
			break
		}
		summary.TotalLines++

		if matchesAny(line) {
			summary.Matches = append(summary.Matches, line)
			if len(summary.Matches) > maxMatches {
				summary.Matches = summary.Matches[1:]
			}
		}

		summary.Tail = append(summary.Tail, line)
		if len(summary.Tail) > tailLines {
			summary.Tail = summary.Tail[1:]
		}

		if readErr == io.EOF {
			break
		}
	}
	return summary
}

// readBoundedLine reads one line, keeping at most maxLineBytes of it and
// draining the rest.
func readBoundedLine(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if len(chunk) > 0 && b.Len() < maxLineBytes {
			if over := b.Len() + len(chunk) - maxLineBytes; over > 0 {
				chunk = chunk[:len(chunk)-over]
			}
			b.Write(chunk)
		}
		if err != nil {
			return b.String(), err
		}
		if !isPrefix {
			return b.String(), nil
		}
	}
}

func matchesAny(line string) bool {
	for _, p := range errorPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
