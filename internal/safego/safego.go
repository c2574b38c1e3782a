// Package safego launches fire-and-forget goroutines with panic recovery.
// The API layer uses it for work that happens after the response is decided,
// such as handing committed audit records to the configured shippers: a
// panic there must not take down the server or vanish without a log line.
package safego

import "log/slog"

// Go runs fn in a new goroutine, recovering and logging any panic.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
