// Package monitoring carries the diagnostic log sink shared by the
// acquisition packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf;
// SetLogger can redirect it to a capture buffer in tests or mute it entirely.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
