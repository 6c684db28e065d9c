// Package signalr implements a client for the ASP.NET Core SignalR hub
// protocol over WebSockets. The client negotiates a connection over HTTP,
// performs the hub handshake, and then carries typed remote method calls,
// fire-and-forget notifications and server push events over a single
// persistent WebSocket.
//
// The v3 line of this package speaks the ASP.NET Core hub protocol (JSON and
// MessagePack); the classic ASP.NET protocol of v2 is gone.
package signalr

import "time"

// recordSeparator terminates every JSON hub frame and the handshake frames.
const recordSeparator = 0x1e

const maxNegotiateRedirects = 100

// transportConnectTimeout bounds how long a transport may take to open the
// WebSocket before the start attempt is failed.
const transportConnectTimeout = 5 * time.Second

// TransferFormat selects how hub frames travel over the WebSocket.
type TransferFormat int

const (
	// TransferFormatText is used by the JSON hub protocol.
	TransferFormatText TransferFormat = iota
	// TransferFormatBinary is used by the MessagePack hub protocol.
	TransferFormatBinary
)

// ConnectionState describes where a connection is in its lifecycle.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Disconnected:
		return "disconnected"
	}
	return "(unknown)"
}
