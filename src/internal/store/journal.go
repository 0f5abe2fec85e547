// FILE: logtrace/src/internal/store/journal.go
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"logtrace/src/internal/core"

	"github.com/valyala/fastjson"
)

// Journal scopes
const (
	ScopeProcess = "process"
	ScopeSystem  = "system"
)

// JournalOptions configures the journald provider.
type JournalOptions struct {
	// Path to the journalctl binary; resolved through PATH when relative
	Path string
	// ScopeProcess restricts to this process's entries, ScopeSystem reads the whole boot
	Scope string
	// Journal fields backing the subsystem and category filters
	SubsystemField string
	CategoryField  string
	// PID used by ScopeProcess; defaults to os.Getpid()
	PID int
}

// DefaultJournalOptions returns options reading the current process's entries.
func DefaultJournalOptions() JournalOptions {
	return JournalOptions{
		Path:           "journalctl",
		Scope:          ScopeProcess,
		SubsystemField: "SYSLOG_IDENTIFIER",
		CategoryField:  "CATEGORY",
	}
}

// JournalProvider reads systemd-journald through journalctl's JSON export.
type JournalProvider struct {
	opts    JournalOptions
	binary  string
	boot    time.Time
	uptime  func() (time.Duration, error)
	parsers fastjson.ParserPool
}

// NewJournalProvider locates journalctl and pins the boot clock.
func NewJournalProvider(opts JournalOptions) (*JournalProvider, error) {
	defaults := DefaultJournalOptions()
	if opts.Path == "" {
		opts.Path = defaults.Path
	}
	if opts.Scope == "" {
		opts.Scope = defaults.Scope
	}
	if opts.SubsystemField == "" {
		opts.SubsystemField = defaults.SubsystemField
	}
	if opts.CategoryField == "" {
		opts.CategoryField = defaults.CategoryField
	}
	if opts.Scope == ScopeProcess && opts.PID == 0 {
		opts.PID = os.Getpid()
	}
	if opts.Scope != ScopeProcess && opts.Scope != ScopeSystem {
		return nil, fmt.Errorf("unknown journal scope: %s", opts.Scope)
	}

	binary, err := exec.LookPath(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedPlatform, err)
	}

	up, err := bootUptime()
	if err != nil {
		return nil, fmt.Errorf("%w: read boot clock: %v", core.ErrStoreUnavailable, err)
	}

	return &JournalProvider{
		opts:   opts,
		binary: binary,
		boot:   time.Now().Add(-up),
		uptime: bootUptime,
	}, nil
}

func (j *JournalProvider) BootTime() time.Time {
	return j.boot
}

func (j *JournalProvider) NowUptime() float64 {
	up, err := j.uptime()
	if err != nil {
		// Clock was readable at construction; fall back to wall time
		return time.Since(j.boot).Seconds()
	}
	return up.Seconds()
}

// Fetch runs one journalctl query starting at since.
func (j *JournalProvider) Fetch(ctx context.Context, since float64, pred Predicate) ([]core.Record, error) {
	cmd := exec.CommandContext(ctx, j.binary, j.args(since, pred)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if isPermissionError(msg) {
			return nil, fmt.Errorf("%w: %s", core.ErrPermissionDenied, msg)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return nil, fmt.Errorf("journalctl exited with %d: %s", exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("journalctl: %w", err)
	}

	if stdout.Len() == 0 && isPermissionError(stderr.String()) {
		return nil, fmt.Errorf("%w: %s", core.ErrPermissionDenied, strings.TrimSpace(stderr.String()))
	}

	return j.parse(stdout.Bytes(), since, pred)
}

// args builds the journalctl command line. --since is second-granular so
// parse drops the sub-second overlap.
func (j *JournalProvider) args(since float64, pred Predicate) []string {
	wall := j.boot.Add(time.Duration(since * float64(time.Second)))
	args := []string{
		"--output=json",
		"--no-pager",
		"--boot",
		"--since=@" + strconv.FormatInt(wall.Unix(), 10),
	}
	if j.opts.Scope == ScopeProcess {
		args = append(args, "_PID="+strconv.Itoa(j.opts.PID))
	}
	if pred.Subsystem != "" {
		args = append(args, j.opts.SubsystemField+"="+pred.Subsystem)
	}
	if pred.Category != "" {
		args = append(args, j.opts.CategoryField+"="+pred.Category)
	}
	return args
}

func (j *JournalProvider) parse(data []byte, since float64, pred Predicate) ([]core.Record, error) {
	p := j.parsers.Get()
	defer j.parsers.Put(p)

	var records []core.Record
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		v, err := p.ParseBytes(line)
		if err != nil {
			return nil, fmt.Errorf("parse journal entry: %w", err)
		}

		rec, ok := j.toRecord(v)
		if !ok {
			continue
		}
		if rec.Timestamp.Sub(j.boot).Seconds() < since {
			continue
		}
		if !pred.Matches(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (j *JournalProvider) toRecord(v *fastjson.Value) (core.Record, bool) {
	usec, err := strconv.ParseInt(fieldString(v, "__REALTIME_TIMESTAMP"), 10, 64)
	if err != nil {
		return core.Record{}, false
	}

	rec := core.Record{
		Timestamp: time.UnixMicro(usec),
		Level:     priorityLevel(fieldString(v, "PRIORITY")),
		Subsystem: fieldString(v, j.opts.SubsystemField),
		Category:  fieldString(v, j.opts.CategoryField),
		Process:   fieldString(v, "_COMM"),
		Message:   fieldString(v, "MESSAGE"),
	}

	if pid, err := strconv.Atoi(fieldString(v, "_PID")); err == nil {
		rec.PID = &pid
	}
	if tid, err := strconv.ParseUint(fieldString(v, "TID"), 10, 64); err == nil {
		rec.ThreadID = &tid
	}
	if activity, err := strconv.ParseUint(fieldString(v, "ACTIVITY_ID"), 10, 64); err == nil {
		rec.ActivityID = &activity
	}

	if name := fieldString(v, "SIGNPOST_NAME"); name != "" {
		rec.Level = core.LevelInfo
		rec.Message = "signpost " + name
		rec.Raw = map[string]string{core.SignpostNameField: name}
	}

	return rec, true
}

// fieldString reads a journal field. Binary values are exported as byte
// arrays and repeated fields as string arrays; the first string wins.
func fieldString(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil {
		return ""
	}

	switch f.Type() {
	case fastjson.TypeString:
		return string(f.GetStringBytes())
	case fastjson.TypeArray:
		items := f.GetArray()
		if len(items) == 0 {
			return ""
		}
		if items[0].Type() == fastjson.TypeString {
			return string(items[0].GetStringBytes())
		}
		buf := make([]byte, 0, len(items))
		for _, item := range items {
			buf = append(buf, byte(item.GetUint()))
		}
		return string(buf)
	case fastjson.TypeNumber:
		return f.String()
	default:
		return ""
	}
}

// priorityLevel maps syslog priorities (0 emerg .. 7 debug) onto levels.
func priorityLevel(priority string) core.Level {
	p, err := strconv.Atoi(priority)
	if err != nil {
		return core.LevelInfo
	}
	switch {
	case p >= 7:
		return core.LevelDebug
	case p == 6:
		return core.LevelInfo
	case p == 5:
		return core.LevelNotice
	case p >= 3:
		return core.LevelError
	default:
		return core.LevelFault
	}
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "insufficient permissions") ||
		strings.Contains(lower, "permission denied")
}
