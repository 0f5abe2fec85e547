// FILE: logtrace/src/cmd/logtrace/output.go
package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// userOutput carries startup banners and fatal messages that must reach the
// terminal before (or instead of) the structured logger.
type userOutput struct {
	quiet  atomic.Bool
	stdout io.Writer
	stderr io.Writer
}

var ui = &userOutput{stdout: os.Stdout, stderr: os.Stderr}

func (u *userOutput) write(w io.Writer, format string, args ...any) {
	if u.quiet.Load() {
		return
	}
	fmt.Fprintf(w, format, args...)
}

func setQuiet(quiet bool) {
	ui.quiet.Store(quiet)
}

func Print(format string, args ...any) {
	ui.write(ui.stdout, format, args...)
}

func Error(format string, args ...any) {
	ui.write(ui.stderr, format, args...)
}

// FatalError exits with code even in quiet mode, where the message is suppressed.
func FatalError(code int, format string, args ...any) {
	Error(format, args...)
	os.Exit(code)
}
