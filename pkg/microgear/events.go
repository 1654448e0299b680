package microgear

// Event names emitted on a client's event surface. All asynchronous
// failures surface as named events, never as panics or values thrown from
// another goroutine.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	// EventClosed mirrors EventDisconnected under the legacy name older
	// applications listen for.
	EventClosed   = "closed"
	EventMessage  = "message"
	EventPresent  = "present"
	EventAbsent   = "absent"
	EventInfo     = "info"
	EventError    = "error"
	EventRejected = "rejected"
)
