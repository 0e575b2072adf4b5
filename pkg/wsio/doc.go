// Package wsio provides hook-driven WebSocket sessions with serialized I/O.
//
// A Session owns one WebSocket connection and a single-goroutine strand that
// runs all protocol hooks. Outbound messages go through a FIFO write queue
// with at most one write in flight; inbound messages are delivered to the
// hooks in arrival order. Run, Send and Close are safe to call from any
// goroutine: each posts an operation to the strand and returns immediately.
//
// Protocol layers plug in through the Hooks interface:
//
//	type ttsHooks struct{ c *Client }
//
//	func (h ttsHooks) OnHandshake(header http.Header) bool { ... }
//	func (h ttsHooks) OnOpen(resp *http.Response)          { ... }
//	func (h ttsHooks) OnMessage(data []byte)               { ... }
//	func (h ttsHooks) OnClose()                            { ... }
//	func (h ttsHooks) OnError(err error)                   { ... }
//
//	sess := wsio.NewSession("wss://example.com/ws", nil, ttsHooks{c})
//	sess.Run()
//
// Hooks never run concurrently with each other, so a protocol state machine
// built on top of a Session needs no locking as long as its state is touched
// only from hooks and from functions passed to Post.
//
// Outgoing sessions keep the connection alive with periodic pings and a read
// idle deadline; accepted sessions (see Accept) only answer pings.
package wsio
