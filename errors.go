package signalr

import "fmt"

// ConfigurationError reports an operation attempted in a state that does not
// permit it, or with arguments that can be rejected without touching the
// network. It is always delivered synchronously to the caller.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// NegotiationError reports a failure of the negotiate HTTP exchange: a
// non-200 status, an error field in the response, a redirect loop, a missing
// WebSockets transport, or a legacy ASP.NET server.
type NegotiationError struct {
	Message string
}

func (e *NegotiationError) Error() string { return e.Message }

// TransportError wraps anything the WebSocket layer surfaces while starting,
// sending, receiving or stopping.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandshakeError reports a failed hub handshake: an error reply, a malformed
// payload, a timeout, or a hub message arriving before the handshake ack.
type HandshakeError struct {
	Message string
}

func (e *HandshakeError) Error() string { return e.Message }

// ProtocolError reports a codec failure or the receipt of a message the
// server must not send. It closes the connection.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

// HubError carries the error field of a completion message, i.e. a failure
// raised by the hub method on the server. It is delivered only to the
// invoker's callback and does not close the connection.
type HubError struct {
	Message string
}

func (e *HubError) Error() string { return e.Message }

// StoppedError completes a pending invocation whose connection stopped before
// the result arrived.
type StoppedError struct {
	Message string
}

func (e *StoppedError) Error() string { return e.Message }

// CanceledError reports a start attempt aborted by a concurrent stop.
type CanceledError struct {
	Message string
}

func (e *CanceledError) Error() string {
	if e.Message == "" {
		return "canceled"
	}
	return e.Message
}

// ValueTypeError reports an accessor used on the wrong Value variant.
type ValueTypeError struct {
	Actual   ValueType
	Expected ValueType
}

func (e *ValueTypeError) Error() string {
	return fmt.Sprintf("object is a %s expected it to be a %s", e.Actual, e.Expected)
}
