// FILE: logtrace/src/internal/format/raw.go
package format

import (
	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
)

// Outputs the message as-is with a newline
type RawFormatter struct {
	addFields bool
	logger    *log.Logger
}

func NewRawFormatter(opts *config.RawFormatterOptions, logger *log.Logger) (*RawFormatter, error) {
	f := &RawFormatter{logger: logger}
	if opts != nil {
		f.addFields = opts.AddFields
	}
	return f, nil
}

func (f *RawFormatter) Format(entry core.LogEntry) ([]byte, error) {
	out := make([]byte, 0, len(entry.Message)+len(entry.Fields)+2)
	out = append(out, entry.Message...)
	if f.addFields && len(entry.Fields) > 0 {
		out = append(out, ' ')
		out = append(out, entry.Fields...)
	}
	return append(out, '\n'), nil
}

func (f *RawFormatter) Name() string {
	return "raw"
}
