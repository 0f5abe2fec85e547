// FILE: logtrace/src/cmd/logtrace/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// SignalHandler waits for termination signals. SIGUSR1 logs a status report.
type SignalHandler struct {
	logger  *log.Logger
	sigChan chan os.Signal
	report  func()
}

func NewSignalHandler(logger *log.Logger, report func()) *SignalHandler {
	sh := &SignalHandler{
		logger:  logger,
		sigChan: make(chan os.Signal, 1),
		report:  report,
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGUSR1,
	)

	return sh
}

// Handle blocks until a termination signal arrives or ctx ends
func (sh *SignalHandler) Handle(ctx context.Context) os.Signal {
	for {
		select {
		case sig := <-sh.sigChan:
			if sig == syscall.SIGUSR1 {
				sh.logger.Info("msg", "Status report requested",
					"component", "main",
					"signal", sig)
				if sh.report != nil {
					sh.report()
				}
				continue
			}
			return sig
		case <-ctx.Done():
			return nil
		}
	}
}

func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
