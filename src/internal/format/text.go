// FILE: logtrace/src/internal/format/text.go
package format

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/mattn/go-isatty"
)

const colorReset = "\x1b[0m"

var levelColors = map[string]string{
	"debug":  "\x1b[90m",
	"info":   "\x1b[36m",
	"notice": "\x1b[32m",
	"warn":   "\x1b[33m",
	"error":  "\x1b[31m",
	"fault":  "\x1b[1;31m",
}

// Produces human-readable text using templates
type TextFormatter struct {
	config   *config.TextFormatterOptions
	template *template.Template
	colorize bool
	logger   *log.Logger
}

// Creates a new text formatter; nil options use the default template
func NewTextFormatter(opts *config.TextFormatterOptions, logger *log.Logger) (*TextFormatter, error) {
	cfg := config.TextFormatterOptions{}
	if opts != nil {
		cfg = *opts
	}
	if cfg.Template == "" {
		cfg.Template = config.DefaultTextTemplate
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = config.DefaultTimestampFormat
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}

	f := &TextFormatter{
		config: &cfg,
		logger: logger,
	}

	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.config.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("entry").Funcs(funcMap).Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Format renders the entry through the template
func (f *TextFormatter) Format(entry core.LogEntry) ([]byte, error) {
	data := map[string]any{
		"Timestamp": entry.Time,
		"Level":     entry.Level,
		"Source":    entry.Source,
		"Message":   entry.Message,
	}

	if entry.Level == "" {
		data["Level"] = "INFO"
	}

	if len(entry.Fields) > 0 {
		data["Fields"] = string(entry.Fields)
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		buf.Reset()
		fmt.Fprintf(&buf, "[%s] [%s] %s - %s",
			entry.Time.Format(f.config.TimestampFormat),
			strings.ToUpper(entry.Level),
			entry.Source,
			entry.Message)
	}

	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	if f.colorize {
		if code, ok := levelColors[strings.ToLower(entry.Level)]; ok {
			colored := make([]byte, 0, len(result)+len(code)+len(colorReset)+1)
			colored = append(colored, code...)
			colored = append(colored, result...)
			colored = append(colored, colorReset...)
			result = colored
		}
	}

	return append(result, '\n'), nil
}

// Returns the formatter name
func (f *TextFormatter) Name() string {
	return "txt"
}

// ForOutput adapts a formatter to the file it will be written to. Text formatters colour
// levels in "always" mode, or in "auto" mode when out is a terminal. Other formatters are
// returned unchanged.
func ForOutput(fm Formatter, out *os.File) Formatter {
	tf, ok := fm.(*TextFormatter)
	if !ok {
		return fm
	}

	switch tf.config.Color {
	case "always":
	case "auto":
		if out == nil || !isTerminal(out.Fd()) {
			return fm
		}
	default:
		return fm
	}

	colored := *tf
	colored.colorize = true
	return &colored
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
