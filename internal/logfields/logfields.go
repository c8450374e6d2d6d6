// Package logfields defines canonical slog field helpers so key names do not
// drift across packages.
package logfields

import "log/slog"

const (
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyBranch     = "branch"
	KeyTag        = "tag"
	KeyFeed       = "feed"
	KeyPackage    = "package"
	KeyRunID      = "run_id"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Tag(t string) slog.Attr          { return slog.String(KeyTag, t) }
func Feed(f string) slog.Attr         { return slog.String(KeyFeed, f) }
func Package(p string) slog.Attr      { return slog.String(KeyPackage, p) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func ExitCode(c int) slog.Attr        { return slog.Int(KeyExitCode, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
