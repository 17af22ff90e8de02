// Package logging builds the structured logger shared across the ingestion
// service and wraps it with a unicode-safety fallback: document titles and
// other scraped text can carry bytes that are technically valid UTF-8 but
// render as control characters or otherwise break naive terminal/log
// pipelines. Safe() degrades those values to a short fixed form instead of
// letting a single bad title take down a log line.
package logging

import (
	"log/slog"
	"os"
	"unicode/utf8"
)

// Options controls how the root logger is constructed.
type Options struct {
	Level  slog.Level
	JSON   bool
	Output *os.File
}

// New builds the process-wide *slog.Logger. Text output is used for local
// development; JSON output is intended for production log aggregation.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler)
}

// Safe renders a string for safe inclusion in a log line. ASCII strings are
// returned unchanged. Any string containing a non-ASCII byte is replaced
// with a short descriptive placeholder rather than raising or truncating
// silently: "[invalid-utf8 title]" when it is not valid UTF-8, otherwise
// "[non-ascii title, N chars]" with N its rune count.
func Safe(s string) string {
	if s == "" {
		return s
	}
	if isASCII(s) {
		return s
	}
	if !utf8.ValidString(s) {
		return "[invalid-utf8 title]"
	}
	return "[non-ascii title, " + itoa(utf8.RuneCountInString(s)) + " chars]"
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
