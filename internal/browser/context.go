// internal/browser/context.go
package browser

import "context"

// CombineContext derives a context from the session context (which carries
// the chromedp target) that is also cancelled when the caller's op context
// ends. Values and deadline come from session.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)
	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
