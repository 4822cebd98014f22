// Package dispatch routes a webhook delivery to the plugin named in the URL.
//
// Route(name, body) walks Received → HandlerResolved → Validated →
// Dispatched and returns the HTTP outcome at once:
//
//	404  name unknown to the registry (checked before the body)
//	403  name registered but not enabled
//	400  body fails alert.Parse
//	200  handler scheduled on its own goroutine
//
// The handler's result never reaches the HTTP caller. It is reported to the
// Recorder together with the rejected/dispatched records of every request.
// Drain(ctx) stops intake and waits for running handlers until ctx ends.
package dispatch
