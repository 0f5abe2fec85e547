// FILE: logtrace/src/internal/format/json.go
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/valyala/fastjson"
)

// JSONFormatter writes one JSON object per line. The timestamp, level, source
// and message keys come first; a message that is itself a JSON object is
// merged in place of the message key, and structured fields fill the rest.
type JSONFormatter struct {
	timeKey   string
	levelKey  string
	sourceKey string
	msgKey    string
	fieldsKey string
	pretty    bool

	logger  *log.Logger
	arenas  fastjson.ArenaPool
	parsers fastjson.ParserPool
}

func NewJSONFormatter(opts *config.JSONFormatterOptions, logger *log.Logger) (*JSONFormatter, error) {
	f := &JSONFormatter{
		timeKey:   "timestamp",
		levelKey:  "level",
		sourceKey: "source",
		msgKey:    "message",
		logger:    logger,
	}
	if opts == nil {
		return f, nil
	}

	f.pretty = opts.Pretty
	f.fieldsKey = opts.FieldsKey
	for dst, v := range map[*string]string{
		&f.timeKey:   opts.TimestampField,
		&f.levelKey:  opts.LevelField,
		&f.sourceKey: opts.SourceField,
		&f.msgKey:    opts.MessageField,
	} {
		if v != "" {
			*dst = v
		}
	}
	return f, nil
}

func (f *JSONFormatter) Format(entry core.LogEntry) ([]byte, error) {
	a := f.arenas.Get()
	defer f.arenas.Put(a)

	// Parsed values are referenced by out until it is marshalled
	msgParser := f.parsers.Get()
	defer f.parsers.Put(msgParser)
	fieldParser := f.parsers.Get()
	defer f.parsers.Put(fieldParser)

	out := a.NewObject()
	out.Set(f.timeKey, a.NewString(entry.Time.Format(time.RFC3339Nano)))
	out.Set(f.levelKey, a.NewString(entry.Level))
	out.Set(f.sourceKey, a.NewString(entry.Source))

	if msg := parseObject(msgParser, []byte(entry.Message)); msg != nil {
		msg.GetObject().Visit(func(k []byte, v *fastjson.Value) {
			key := string(k)
			switch key {
			case f.timeKey:
				f.logger.Debug("msg", "Ignoring timestamp embedded in JSON message",
					"component", "json_formatter",
					"embedded", v.String())
			case f.levelKey, f.sourceKey:
			default:
				out.Set(key, v)
			}
		})
	} else {
		out.Set(f.msgKey, a.NewString(entry.Message))
	}

	if fields := parseObject(fieldParser, entry.Fields); fields != nil {
		if f.fieldsKey != "" {
			if out.Get(f.fieldsKey) == nil {
				out.Set(f.fieldsKey, fields)
			}
		} else {
			fields.GetObject().Visit(func(k []byte, v *fastjson.Value) {
				if key := string(k); out.Get(key) == nil {
					out.Set(key, v)
				}
			})
		}
	}

	line := out.MarshalTo(nil)
	if f.pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, line, "", "  "); err != nil {
			return nil, fmt.Errorf("failed to indent JSON: %w", err)
		}
		line = buf.Bytes()
	}
	return append(line, '\n'), nil
}

func (f *JSONFormatter) Name() string {
	return "json"
}

// parseObject returns data parsed as a JSON object, or nil if it is anything else.
func parseObject(p *fastjson.Parser, data []byte) *fastjson.Value {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	v, err := p.ParseBytes(data)
	if err != nil || v.Type() != fastjson.TypeObject {
		return nil
	}
	return v
}
