// FILE: logtrace/src/cmd/logtrace/bootstrap.go
package main

import (
	"context"
	"fmt"
	"strings"

	"logtrace/src/internal/config"
	"logtrace/src/internal/service"
	"logtrace/src/internal/version"

	"github.com/lixenwraith/log"
)

// bootstrapService creates the service and starts every configured pipeline.
// Pipelines that fail are logged and skipped; at least one must start.
func bootstrapService(ctx context.Context, cfg *config.Config, opts ...service.Option) (*service.Service, error) {
	svc := service.NewService(ctx, logger, opts...)

	successCount := 0
	for i := range cfg.Pipelines {
		pipelineCfg := &cfg.Pipelines[i]
		logger.Info("msg", "Initializing pipeline",
			"component", "main",
			"pipeline", pipelineCfg.Name)

		if err := svc.NewPipeline(pipelineCfg); err != nil {
			logger.Error("msg", "Failed to create pipeline",
				"component", "main",
				"pipeline", pipelineCfg.Name,
				"error", err)
			continue
		}

		successCount++
		displayPipelineEndpoints(pipelineCfg)
	}

	if successCount == 0 {
		svc.Shutdown()
		return nil, fmt.Errorf("no pipelines successfully started (attempted %d)", len(cfg.Pipelines))
	}

	logger.Info("msg", "LogTrace started",
		"component", "main",
		"version", version.Short(),
		"pipelines", successCount)

	return svc, nil
}

// initializeLogger builds the service logger from the logging section
func initializeLogger(cfg *config.Config) error {
	logCfg, err := loggerConfig(cfg)
	if err != nil {
		return err
	}

	logger = log.NewLogger()
	if err := logger.ApplyConfig(logCfg); err != nil {
		return fmt.Errorf("failed to apply logger config: %w", err)
	}
	return logger.Start()
}

// loggerConfig maps the logging section onto the logger's own config
func loggerConfig(cfg *config.Config) (*log.Config, error) {
	logCfg := log.DefaultConfig()

	// Quiet mode silences everything, including errors
	if cfg.Quiet {
		logCfg.EnableConsole = false
		logCfg.EnableFile = false
		logCfg.Level = 255
		return logCfg, nil
	}

	lc := cfg.Logging
	if lc == nil {
		lc = config.DefaultLogConfig()
	}

	level, err := parseLogLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logCfg.Level = level

	switch lc.Output {
	case "none", "stdout", "stderr", "split", "file", "all":
	default:
		return nil, fmt.Errorf("invalid log output mode: %s", lc.Output)
	}

	target := lc.ConsoleTarget()
	logCfg.EnableConsole = target != ""
	if logCfg.EnableConsole {
		logCfg.ConsoleTarget = target
	}
	logCfg.EnableFile = lc.WritesFile()
	if logCfg.EnableFile && lc.File != nil {
		logCfg.Directory = lc.File.Directory
		logCfg.Name = lc.File.Name
		logCfg.MaxSizeKB = lc.File.MaxSizeMB * 1000
		logCfg.MaxTotalSizeKB = lc.File.MaxTotalSizeMB * 1000
		if lc.File.RetentionHours > 0 {
			logCfg.RetentionPeriodHrs = lc.File.RetentionHours
		}
	}

	if lc.Console != nil && lc.Console.Format != "" {
		logCfg.Format = lc.Console.Format
	}

	return logCfg, nil
}

func parseLogLevel(level string) (int64, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
