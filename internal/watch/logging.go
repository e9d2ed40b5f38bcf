package watch

import (
	"io"

	"github.com/geonas-tools/nascat/internal/logging"
	"github.com/geonas-tools/nascat/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Watch:", PrefixColor: ui.FgMagenta}

// SetLogger sets an optional destination for watch logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(root string, format string, args ...any) {
	logger.Logf(root, format, args...)
}
