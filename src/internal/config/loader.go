// FILE: logtrace/src/internal/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

const envPrefix = "LOGTRACE_"

func defaults() *Config {
	return &Config{
		StatusReporter: true,
		Logging:        DefaultLogConfig(),
		Pipelines: []PipelineConfig{
			{
				Name:  "default",
				Trace: DefaultTraceConfig(),
				Format: &FormatConfig{
					Type: "txt",
				},
				Sinks: []SinkConfig{
					{
						Type: "console",
						Console: &ConsoleSinkOptions{
							Target:     "stdout",
							BufferSize: 1000,
						},
					},
				},
			},
		},
	}
}

// Load builds the configuration from defaults, the config file, LOGTRACE_*
// environment variables and CLI arguments, in increasing precedence.
func Load(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix(envPrefix).
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		// A missing config file is fine, defaults apply
		if !errors.Is(err, os.ErrNotExist) && !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if cfg == nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan("", finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}
	finalConfig.ConfigFile = configPath

	return finalConfig, validateConfig(finalConfig)
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = envPrefix + env
	return env
}

// GetConfigPath resolves the config file from LOGTRACE_CONFIG_FILE and
// LOGTRACE_CONFIG_DIR, falling back to the user config directory.
func GetConfigPath() string {
	if configFile := os.Getenv("LOGTRACE_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGTRACE_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGTRACE_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logtrace.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logtrace.toml")
	}

	return "logtrace.toml"
}
