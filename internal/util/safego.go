// safego.go — Panic-recovering goroutine launcher.
package util

import (
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// SafeGo launches fn in a goroutine with deferred panic recovery.
// On panic: logs stack trace via the structured logger. Does NOT
// os.Exit — background panics should be survivable so the daemon
// stays up.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("panic in background goroutine")
			}
		}()
		fn()
	}()
}
