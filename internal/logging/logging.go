package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/geonas-tools/nascat/internal/ui"
)

// Logger is a tiny opt-in logger used across internal packages.
// When Writer is nil, logging is disabled.
//
// The output format is:
//
//	<ColoredPrefix> root=<datasetRoot> <formattedMessage>\n
//
// where <datasetRoot> is trimmed and defaults to "(unknown)".
type Logger struct {
	Writer io.Writer

	PrefixText  string
	PrefixColor string

	// OmitRoot controls whether the dataset-root field is written.
	// When false (default), output includes: "root=<path>".
	OmitRoot bool
}

func (l *Logger) SetWriter(w io.Writer) { l.Writer = w }

func (l *Logger) Enabled() bool { return l != nil && l.Writer != nil }

func (l *Logger) Logf(root string, format string, args ...any) {
	if l == nil || l.Writer == nil {
		return
	}
	prefix := l.PrefixText
	if prefix == "" {
		prefix = "Log:"
	}
	if l.PrefixColor != "" {
		prefix = ui.Color(prefix, l.PrefixColor)
	}
	msg := fmt.Sprintf(format, args...)
	if l.OmitRoot {
		fmt.Fprintf(l.Writer, "%s %s\n", prefix, msg)
		return
	}

	r := strings.TrimSpace(root)
	if r == "" {
		r = "(unknown)"
	}
	fmt.Fprintf(l.Writer, "%s root=%s %s\n", prefix, r, msg)
}
