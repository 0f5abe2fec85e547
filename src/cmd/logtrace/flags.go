// FILE: logtrace/src/cmd/logtrace/flags.go
package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// FlagConfig holds the convenience flags handled before configuration loading
type FlagConfig struct {
	ConfigFile            string
	Quiet                 bool
	ShowVersion           bool
	LogLevel              string
	LogOutput             string
	LogConsole            string
	LogDir                string
	DisableStatusReporter bool
}

// ParseFlags separates convenience flags from dotted configuration overrides
// (--pipelines.0.trace.subsystem=sshd) and returns the argument list for the
// config loader, with the convenience flags translated to their config keys.
func ParseFlags(args []string, errOut io.Writer) (*FlagConfig, []string, error) {
	fc := &FlagConfig{}

	fs := flag.NewFlagSet("logtrace", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&fc.ConfigFile, "config", "", "Config file path")
	fs.StringVar(&fc.ConfigFile, "c", "", "Config file path (shorthand)")
	fs.BoolVar(&fc.Quiet, "quiet", false, "Suppress all console output")
	fs.BoolVar(&fc.Quiet, "q", false, "Suppress all console output (shorthand)")
	fs.BoolVar(&fc.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&fc.ShowVersion, "v", false, "Show version information (shorthand)")
	fs.StringVar(&fc.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&fc.LogOutput, "log-output", "", "Log output: file, stdout, stderr, split, all, none")
	fs.StringVar(&fc.LogConsole, "log-console", "", "Console target: stdout, stderr, split")
	fs.StringVar(&fc.LogDir, "log-dir", "", "Log directory (when using file output)")
	fs.BoolVar(&fc.DisableStatusReporter, "disable-status-reporter", false, "Disable the periodic status reporter")

	var flagArgs, configArgs []string
	for _, arg := range args {
		if isConfigOverride(arg) {
			configArgs = append(configArgs, arg)
			continue
		}
		flagArgs = append(flagArgs, arg)
	}

	if err := fs.Parse(flagArgs); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected argument(s): %s", strings.Join(fs.Args(), " "))
	}

	if err := fc.validate(); err != nil {
		return nil, nil, err
	}

	return fc, append(configArgs, fc.configArgs()...), nil
}

// isConfigOverride reports whether arg addresses a nested config key
func isConfigOverride(arg string) bool {
	if !strings.HasPrefix(arg, "--") {
		return false
	}
	key, _, _ := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
	return strings.Contains(key, ".")
}

func (fc *FlagConfig) validate() error {
	if fc.LogOutput != "" {
		validOutputs := map[string]bool{
			"file": true, "stdout": true, "stderr": true,
			"split": true, "all": true, "none": true,
		}
		if !validOutputs[fc.LogOutput] {
			return fmt.Errorf("invalid log-output: %s (valid: file, stdout, stderr, split, all, none)", fc.LogOutput)
		}
	}

	if fc.LogLevel != "" {
		if _, err := parseLogLevel(fc.LogLevel); err != nil {
			return fmt.Errorf("invalid log-level: %s (valid: debug, info, warn, error)", fc.LogLevel)
		}
	}

	if fc.LogConsole != "" {
		validTargets := map[string]bool{
			"stdout": true, "stderr": true, "split": true,
		}
		if !validTargets[fc.LogConsole] {
			return fmt.Errorf("invalid log-console: %s (valid: stdout, stderr, split)", fc.LogConsole)
		}
	}

	return nil
}

// configArgs converts set flags into config loader arguments
func (fc *FlagConfig) configArgs() []string {
	var args []string
	if fc.Quiet {
		args = append(args, "--quiet=true")
	}
	if fc.DisableStatusReporter {
		args = append(args, "--status_reporter=false")
	}
	if fc.LogLevel != "" {
		args = append(args, "--logging.level="+strings.ToLower(fc.LogLevel))
	}
	if fc.LogOutput != "" {
		args = append(args, "--logging.output="+fc.LogOutput)
	}
	if fc.LogConsole != "" {
		args = append(args, "--logging.console.target="+fc.LogConsole)
	}
	if fc.LogDir != "" {
		args = append(args, "--logging.file.directory="+fc.LogDir)
	}
	return args
}
