// Package logging wraps the process-wide logger. Output always goes to
// stderr: stdout belongs to command output and the MCP transport.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// L is the package-level logger. Commands configure it once at startup and
// everything else uses the helpers below.
var L = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: false,
})

// SetVerbose lifts the log level to debug.
func SetVerbose(verbose bool) {
	if verbose {
		L.SetLevel(log.DebugLevel)
	} else {
		L.SetLevel(log.InfoLevel)
	}
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...any) {
	L.Debugf(format, v...)
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...any) {
	L.Infof(format, v...)
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...any) {
	L.Warnf(format, v...)
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...any) {
	L.Errorf(format, v...)
}
