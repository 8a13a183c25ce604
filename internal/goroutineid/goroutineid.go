// Package goroutineid exposes the current goroutine's id. It exists so the
// engine runtime can detect whether it is already executing on the event
// loop goroutine and must not block waiting for it.
package goroutineid

import "github.com/petermattis/goid"

// Get returns the current goroutine ID.
func Get() int64 {
	return goid.Get()
}
