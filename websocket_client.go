package signalr

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketClient is the WebSocket capability the transport wraps. None of
// the methods may block the caller; every callback fires exactly once per
// call. Receive delivers exactly one frame (or one error) per invocation.
type WebsocketClient interface {
	Start(url string, format TransferFormat, callback func(error))
	Stop(callback func(error))
	Send(payload []byte, format TransferFormat, callback func(error))
	Receive(callback func([]byte, error))
}

// WebsocketFactory produces the WebsocketClient used for a start attempt.
// The config carries the HTTP headers to present during the upgrade.
type WebsocketFactory func(config ClientConfig) WebsocketClient

// NewDefaultWebsocketClient returns a WebsocketClient backed by
// gorilla/websocket. The configured HTTP headers are sent with the upgrade
// request.
func NewDefaultWebsocketClient(config ClientConfig) WebsocketClient {
	headers := http.Header{}
	for k, v := range config.HTTPHeaders() {
		headers.Set(k, v)
	}
	return &defaultWebsocketClient{headers: headers, dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}}
}

type defaultWebsocketClient struct {
	headers http.Header
	dialer  *websocket.Dialer

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (c *defaultWebsocketClient) Start(url string, format TransferFormat, callback func(error)) {
	go func() {
		conn, _, err := c.dialer.Dial(url, c.headers)
		if err != nil {
			callback(&TransportError{Message: "websocket dial failed", Err: err})
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		callback(nil)
	}()
}

func (c *defaultWebsocketClient) Stop(callback func(error)) {
	go func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn == nil {
			callback(nil)
			return
		}

		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()

		callback(conn.Close())
	}()
}

func (c *defaultWebsocketClient) Send(payload []byte, format TransferFormat, callback func(error)) {
	go func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			callback(&TransportError{Message: "websocket is not connected"})
			return
		}

		messageType := websocket.TextMessage
		if format == TransferFormatBinary {
			messageType = websocket.BinaryMessage
		}

		c.writeMu.Lock()
		err := conn.WriteMessage(messageType, payload)
		c.writeMu.Unlock()
		if err != nil {
			callback(&TransportError{Message: "websocket write failed", Err: err})
			return
		}
		callback(nil)
	}()
}

func (c *defaultWebsocketClient) Receive(callback func([]byte, error)) {
	go func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			callback(nil, &TransportError{Message: "websocket is not connected"})
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			callback(nil, &TransportError{Message: "websocket read failed", Err: err})
			return
		}
		callback(data, nil)
	}()
}
