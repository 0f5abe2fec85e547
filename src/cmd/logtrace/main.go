// FILE: logtrace/src/cmd/logtrace/main.go
package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"logtrace/src/cmd/logtrace/commands"
	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/version"

	"github.com/lixenwraith/log"
)

var (
	logger         *log.Logger
	loggerShutdown sync.Once
)

func main() {
	// Subcommands run before any config is loaded
	router := commands.NewCommandRouter()
	handled, err := router.Route(os.Args)
	if err != nil {
		FatalError(1, "Error: %v\n", err)
	}
	if handled {
		os.Exit(0)
	}

	flagCfg, configArgs, err := ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		FatalError(1, "Error: %v\n", err)
	}

	setQuiet(flagCfg.Quiet)

	if flagCfg.ShowVersion {
		Print("%s\n", version.String())
		os.Exit(0)
	}

	if flagCfg.ConfigFile != "" {
		os.Setenv("LOGTRACE_CONFIG_FILE", flagCfg.ConfigFile)
	}

	cfg, err := config.Load(configArgs)
	if err != nil {
		FatalError(1, "Failed to load config: %v\n", err)
	}
	setQuiet(cfg.Quiet)

	if err := initializeLogger(cfg); err != nil {
		FatalError(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	logger.Info("msg", "LogTrace starting",
		"component", "main",
		"version", version.String(),
		"config_file", cfg.ConfigFile,
		"log_output", cfg.Logging.Output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := bootstrapService(ctx, cfg)
	if err != nil {
		logger.Error("msg", "Failed to bootstrap service",
			"component", "main",
			"error", err)
		switch {
		case errors.Is(err, core.ErrUnsupportedPlatform), errors.Is(err, core.ErrDisabledInBuild):
			Error("Log tracing unavailable: %v\n", err)
		default:
			Error("Failed to start: %v\n", err)
		}
		shutdownLogger()
		os.Exit(1)
	}

	if cfg.StatusReporter {
		go statusReporter(ctx, svc)
	}

	sigHandler := NewSignalHandler(logger, func() { reportStatus(svc) })
	defer sigHandler.Stop()

	sig := sigHandler.Handle(ctx)
	logger.Info("msg", "Shutdown signal received, starting graceful shutdown",
		"component", "main",
		"signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		svc.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("msg", "Shutdown complete", "component", "main")
	case <-shutdownCtx.Done():
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit", "component", "main")
		shutdownLogger()
		os.Exit(1)
	}
}

func shutdownLogger() {
	if logger == nil {
		return
	}
	loggerShutdown.Do(func() {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			Error("Logger shutdown error: %v\n", err)
		}
	})
}
