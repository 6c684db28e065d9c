package signalr

import "time"

// ClientBuilder assembles a Client. The zero configuration gives the JSON
// hub protocol, the gorilla/websocket transport, the net/http negotiate
// client, an owned default scheduler and no logging.
type ClientBuilder struct {
	url             string
	protocol        HubProtocol
	logWriter       LogWriter
	traceLevel      TraceLevel
	httpClient      HTTPClient
	wsFactory       WebsocketFactory
	scheduler       Scheduler
	skipNegotiation bool
	config          ClientConfig
}

// NewClientBuilder starts a builder for the hub at url.
func NewClientBuilder(url string) *ClientBuilder {
	return &ClientBuilder{url: url, config: NewClientConfig()}
}

// WithLogging routes client traces at or above level to writer.
func (b *ClientBuilder) WithLogging(writer LogWriter, level TraceLevel) *ClientBuilder {
	b.logWriter = writer
	b.traceLevel = level
	return b
}

// WithMessagePack selects the MessagePack hub protocol instead of JSON.
func (b *ClientBuilder) WithMessagePack() *ClientBuilder {
	b.protocol = NewMessagePackHubProtocol()
	return b
}

// WithHubProtocol selects a custom hub protocol codec.
func (b *ClientBuilder) WithHubProtocol(protocol HubProtocol) *ClientBuilder {
	b.protocol = protocol
	return b
}

// WithHTTPClient replaces the HTTP capability used for negotiate.
func (b *ClientBuilder) WithHTTPClient(client HTTPClient) *ClientBuilder {
	b.httpClient = client
	return b
}

// WithWebsocketFactory replaces the WebSocket capability.
func (b *ClientBuilder) WithWebsocketFactory(factory WebsocketFactory) *ClientBuilder {
	b.wsFactory = factory
	return b
}

// WithScheduler replaces the scheduler that runs timers and callbacks. The
// caller owns its lifetime.
func (b *ClientBuilder) WithScheduler(scheduler Scheduler) *ClientBuilder {
	b.scheduler = scheduler
	return b
}

// SkipNegotiation connects the WebSocket directly to the configured URL
// without the negotiate POST. The connection id stays empty.
func (b *ClientBuilder) SkipNegotiation() *ClientBuilder {
	b.skipNegotiation = true
	return b
}

// WithHTTPHeaders merges headers into every HTTP and WebSocket request.
func (b *ClientBuilder) WithHTTPHeaders(headers map[string]string) *ClientBuilder {
	for k, v := range headers {
		b.config.HTTPHeaders()[k] = v
	}
	return b
}

// WithHandshakeTimeout bounds the wait for the server's handshake response.
func (b *ClientBuilder) WithHandshakeTimeout(d time.Duration) *ClientBuilder {
	b.config.SetHandshakeTimeout(d)
	return b
}

// WithServerTimeout bounds the tolerated server silence before the
// connection is stopped.
func (b *ClientBuilder) WithServerTimeout(d time.Duration) *ClientBuilder {
	b.config.SetServerTimeout(d)
	return b
}

// WithKeepAliveInterval sets the client ping cadence.
func (b *ClientBuilder) WithKeepAliveInterval(d time.Duration) *ClientBuilder {
	b.config.SetKeepaliveInterval(d)
	return b
}

// Build creates the Client.
func (b *ClientBuilder) Build() (*Client, error) {
	if b.url == "" {
		return nil, &ConfigurationError{Message: "url must not be empty"}
	}

	protocol := b.protocol
	if protocol == nil {
		protocol = NewJSONHubProtocol()
	}

	var owned *defaultScheduler
	scheduler := b.scheduler
	if scheduler == nil {
		owned = newDefaultScheduler()
		scheduler = owned
	}

	config := b.config.clone()
	config.SetScheduler(scheduler)

	log := logger{writer: b.logWriter, minLevel: b.traceLevel}

	client, err := newClient(b.url, protocol, log, scheduler, b.httpClient, b.wsFactory, b.skipNegotiation, config)
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, err
	}
	client.ownedScheduler = owned
	return client, nil
}
