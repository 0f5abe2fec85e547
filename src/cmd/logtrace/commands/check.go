// FILE: logtrace/src/cmd/logtrace/commands/check.go
package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"logtrace/src/internal/core"
	"logtrace/src/internal/store"
	"logtrace/src/internal/version"
)

// CheckCommand reports whether this host can be traced: journald reachability,
// boot clock, and a sample read over a short window.
type CheckCommand struct {
	output io.Writer

	openStore func(store.JournalOptions) (store.Provider, error)
}

func NewCheckCommand() *CheckCommand {
	return &CheckCommand{
		output: os.Stdout,
		openStore: func(opts store.JournalOptions) (store.Provider, error) {
			return store.NewJournalProvider(opts)
		},
	}
}

func (c *CheckCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("check", flag.ContinueOnError)
	cmd.SetOutput(c.output)
	cmd.Usage = func() { fmt.Fprint(c.output, c.Help()) }

	defaults := store.DefaultJournalOptions()
	var (
		journalctl = cmd.String("journalctl", defaults.Path, "journalctl binary")
		scope      = cmd.String("scope", store.ScopeSystem, "process or system")
		subsystem  = cmd.String("subsystem", "", "Only count entries of this subsystem")
		window     = cmd.Duration("window", 5*time.Minute, "How far back to sample")
		timeout    = cmd.Duration("timeout", 10*time.Second, "Sample read timeout")
	)

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s): %s", strings.Join(cmd.Args(), " "))
	}

	build := "release"
	if version.IsDebugBuild() {
		build = "debug"
	}
	fmt.Fprintf(c.output, "build:      %s (%s)\n", version.Short(), build)
	if build == "release" {
		fmt.Fprintln(c.output, "            pipelines need trace.enabled_in_release = true")
	}

	opts := defaults
	opts.Path = *journalctl
	opts.Scope = *scope
	provider, err := c.openStore(opts)
	if err != nil {
		fmt.Fprintf(c.output, "journal:    unavailable (%s)\n", explainStoreError(err))
		return err
	}
	fmt.Fprintf(c.output, "journal:    %s, scope %s\n", opts.Path, opts.Scope)
	fmt.Fprintf(c.output, "boot time:  %s\n", provider.BootTime().Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	since := max(0, provider.NowUptime()-window.Seconds())
	records, err := provider.Fetch(ctx, since, store.Predicate{Subsystem: *subsystem})
	if err != nil {
		fmt.Fprintf(c.output, "sample:     failed (%s)\n", explainStoreError(err))
		return err
	}

	var perLevel [core.LevelFault + 1]int
	for _, r := range records {
		if r.Level.Valid() {
			perLevel[r.Level]++
		}
	}
	fmt.Fprintf(c.output, "sample:     %d entries in the last %s\n", len(records), *window)
	for lvl := core.LevelDebug; lvl <= core.LevelFault; lvl++ {
		if perLevel[lvl] > 0 {
			fmt.Fprintf(c.output, "  %-8s %d\n", lvl, perLevel[lvl])
		}
	}
	return nil
}

func explainStoreError(err error) string {
	switch {
	case errors.Is(err, core.ErrUnsupportedPlatform):
		return "journalctl not found or platform unsupported"
	case errors.Is(err, core.ErrPermissionDenied):
		return "permission denied, try the systemd-journal group"
	case errors.Is(err, core.ErrStoreUnavailable):
		return "boot clock unreadable"
	default:
		return err.Error()
	}
}

func (c *CheckCommand) Description() string {
	return "Check that the system journal can be traced"
}

func (c *CheckCommand) Help() string {
	return `Check Command - Verify journald access on this host

Usage:
  logtrace check [options]

Options:
  --journalctl <path>    journalctl binary (default: journalctl)
  --scope <scope>        process or system (default: system)
  --subsystem <name>     Only count entries of this subsystem
  --window <duration>    How far back to sample (default: 5m)
  --timeout <duration>   Sample read timeout (default: 10s)

Exits non-zero when the journal cannot be opened or read.
`
}
