package signalr

import "time"

const (
	defaultHandshakeTimeout  = 15 * time.Second
	defaultServerTimeout     = 30 * time.Second
	defaultKeepaliveInterval = 15 * time.Second
)

// ClientConfig carries the tunable knobs of a connection: the HTTP headers
// merged into every request, the scheduler that runs callbacks, and the
// handshake, server-timeout and keep-alive intervals.
type ClientConfig struct {
	httpHeaders       map[string]string
	scheduler         Scheduler
	handshakeTimeout  time.Duration
	serverTimeout     time.Duration
	keepaliveInterval time.Duration
}

// NewClientConfig returns a config with the protocol defaults: 15s handshake
// timeout, 30s server timeout, 15s keep-alive interval.
func NewClientConfig() ClientConfig {
	return ClientConfig{
		httpHeaders:       map[string]string{},
		handshakeTimeout:  defaultHandshakeTimeout,
		serverTimeout:     defaultServerTimeout,
		keepaliveInterval: defaultKeepaliveInterval,
	}
}

// HTTPHeaders returns the header map sent with every HTTP and WebSocket
// request. The map is live; mutating it changes the config.
func (c *ClientConfig) HTTPHeaders() map[string]string {
	if c.httpHeaders == nil {
		c.httpHeaders = map[string]string{}
	}
	return c.httpHeaders
}

// SetHTTPHeaders replaces the header map.
func (c *ClientConfig) SetHTTPHeaders(headers map[string]string) {
	c.httpHeaders = headers
}

// Scheduler returns the configured scheduler, or nil when the default should
// be used.
func (c *ClientConfig) Scheduler() Scheduler { return c.scheduler }

// SetScheduler replaces the scheduler that runs all callbacks.
func (c *ClientConfig) SetScheduler(s Scheduler) { c.scheduler = s }

// HandshakeTimeout returns how long the client waits for the server's
// handshake response.
func (c *ClientConfig) HandshakeTimeout() time.Duration { return c.handshakeTimeout }

// SetHandshakeTimeout rejects non-positive durations.
func (c *ClientConfig) SetHandshakeTimeout(d time.Duration) error {
	if d <= 0 {
		return &ConfigurationError{Message: "handshake timeout must be greater than zero"}
	}
	c.handshakeTimeout = d
	return nil
}

// ServerTimeout returns how long the client tolerates silence from the
// server before stopping the connection.
func (c *ClientConfig) ServerTimeout() time.Duration { return c.serverTimeout }

// SetServerTimeout rejects non-positive durations.
func (c *ClientConfig) SetServerTimeout(d time.Duration) error {
	if d <= 0 {
		return &ConfigurationError{Message: "server timeout must be greater than zero"}
	}
	c.serverTimeout = d
	return nil
}

// KeepaliveInterval returns the interval between client pings.
func (c *ClientConfig) KeepaliveInterval() time.Duration { return c.keepaliveInterval }

// SetKeepaliveInterval rejects non-positive durations.
func (c *ClientConfig) SetKeepaliveInterval(d time.Duration) error {
	if d <= 0 {
		return &ConfigurationError{Message: "keepalive interval must be greater than zero"}
	}
	c.keepaliveInterval = d
	return nil
}

// clone returns a copy whose header map is not shared with the receiver.
func (c ClientConfig) clone() ClientConfig {
	headers := make(map[string]string, len(c.httpHeaders))
	for k, v := range c.httpHeaders {
		headers[k] = v
	}
	c.httpHeaders = headers
	return c
}
