package signalr

import (
	"sync"
	"sync/atomic"
	"time"
)

// startSettleTimeout bounds how long stop waits for an in-flight start to
// settle before logging and re-checking.
const startSettleTimeout = 60 * time.Second

// connection owns the state machine, the negotiate/redirect sequence, the
// transport lifecycle and the forwarding of raw frames up to the hub layer.
type connection struct {
	baseURL string
	// baseQuery is the query string of the base URL, re-applied to negotiate
	// redirect targets.
	baseQuery       string
	skipNegotiation bool
	httpClient      HTTPClient
	wsFactory       WebsocketFactory
	logger          logger
	scheduler       Scheduler

	state atomic.Int32

	// stopMu serializes start/stop/stop_connection transitions.
	stopMu sync.Mutex

	config          ClientConfig
	messageReceived func([]byte)
	disconnected    func(error)

	connectionID    string
	connectionToken string
	transport       *webSocketTransport

	// disconnectCts is the cancellation source of the current start attempt;
	// a new one is created for every start.
	disconnectCts *cancellationTokenSource
	// startCompleted is signaled once the current start attempt has settled,
	// successfully or not.
	startCompleted *completionEvent

	// stopError carries the reason a stop was requested so the disconnected
	// callback can report it when the transport closes cleanly.
	stopErrMu sync.Mutex
	stopError error
}

func newConnection(url string, logger logger, scheduler Scheduler, httpClient HTTPClient,
	wsFactory WebsocketFactory, skipNegotiation bool) *connection {
	if httpClient == nil {
		httpClient = NewDefaultHTTPClient()
	}
	if wsFactory == nil {
		wsFactory = NewDefaultWebsocketClient
	}
	c := &connection{
		baseURL:         url,
		baseQuery:       extractQuery(url),
		skipNegotiation: skipNegotiation,
		httpClient:      httpClient,
		wsFactory:       wsFactory,
		logger:          logger,
		scheduler:       scheduler,
		config:          NewClientConfig(),
		messageReceived: func([]byte) {},
		disconnected:    func(error) {},
		startCompleted:  newCompletionEvent(),
	}
	c.startCompleted.complete(nil)
	return c
}

func (c *connection) getState() ConnectionState {
	return ConnectionState(c.state.Load())
}

// getConnectionID returns the id negotiate assigned, or "" while connecting.
func (c *connection) getConnectionID() string {
	if c.getState() == Connecting {
		return ""
	}
	return c.connectionID
}

func (c *connection) changeState(from, to ConnectionState) bool {
	if c.state.CompareAndSwap(int32(from), int32(to)) {
		c.logger.log(TraceDebug, from.String()+" -> "+to.String())
		return true
	}
	return false
}

func (c *connection) setState(to ConnectionState) ConnectionState {
	from := ConnectionState(c.state.Swap(int32(to)))
	if from != to {
		c.logger.log(TraceDebug, from.String()+" -> "+to.String())
	}
	return from
}

func (c *connection) start(callback func(error)) {
	c.stopMu.Lock()
	if !c.changeState(Disconnected, Connecting) {
		c.stopMu.Unlock()
		callback(&ConfigurationError{Message: "cannot start a connection that is not in the disconnected state"})
		return
	}
	c.disconnectCts = newCancellationTokenSource()
	c.startCompleted = newCompletionEvent()
	c.connectionID = ""
	c.connectionToken = ""
	c.setStopError(nil)
	c.stopMu.Unlock()

	c.startNegotiate(c.baseURL, 0, callback)
}

func (c *connection) startNegotiate(url string, redirectCount int, callback func(error)) {
	if redirectCount >= maxNegotiateRedirects {
		c.completeStartFailure(&NegotiationError{Message: "Negotiate redirection limit exceeded."}, callback)
		return
	}

	token := c.disconnectCts

	started := func(transport *webSocketTransport, err error) {
		if err == nil && token.isCanceled() {
			err = &CanceledError{Message: "starting the connection has been canceled."}
		}
		if err != nil {
			if token.isCanceled() {
				c.logger.log(TraceInfo, "starting the connection has been canceled.")
			} else {
				c.logger.log(TraceError, "connection could not be started due to: "+err.Error())
			}
			if transport != nil {
				// The transport won the race against the cancellation and is
				// already running; take it down.
				transport.stop(func(error) {})
			}
			// No stop lock here: a concurrent stop holds it while waiting on
			// the start-completed event this path signals.
			c.transport = nil
			c.setState(Disconnected)
			c.startCompleted.complete(err)
			callback(err)
			return
		}

		c.transport = transport
		if !c.changeState(Connecting, Connected) {
			c.logger.log(TraceError,
				"internal error - transition from an unexpected state. expected state: connecting, actual state: "+c.getState().String())
		}
		c.startCompleted.complete(nil)
		callback(nil)
	}

	if c.skipNegotiation {
		c.startTransport(url, started)
		return
	}

	sendNegotiate(token.token(), c.httpClient, url, c.config, func(response negotiationResponse, err error) {
		if err != nil {
			c.logger.log(TraceError, "connection could not be started due to: "+err.Error())
			c.completeStartFailure(err, callback)
			return
		}

		if response.Error != "" {
			c.completeStartFailure(&NegotiationError{Message: response.Error}, callback)
			return
		}

		if response.URL != "" {
			if response.AccessToken != "" {
				c.config.HTTPHeaders()["Authorization"] = "Bearer " + response.AccessToken
			}
			// Redirect targets inherit the query string of the original base
			// URL.
			redirectURL, err := mergeQueryString(response.URL, c.baseQuery)
			if err != nil {
				c.completeStartFailure(err, callback)
				return
			}
			c.startNegotiate(redirectURL, redirectCount+1, callback)
			return
		}

		c.connectionID = response.ConnectionID
		c.connectionToken = response.ConnectionToken

		if !response.supportsWebsockets() {
			c.completeStartFailure(&NegotiationError{
				Message: "The server does not support WebSockets which is currently the only transport supported by this client."}, callback)
			return
		}

		if token.isCanceled() {
			c.completeStartFailure(&CanceledError{}, callback)
			return
		}

		c.startTransport(url, started)
	})
}

func (c *connection) completeStartFailure(err error, callback func(error)) {
	c.setState(Disconnected)
	c.startCompleted.complete(err)
	callback(err)
}

// startTransport opens the WebSocket and arms a watchdog so that the start
// callback runs exactly once across the transport result, the watchdog and
// cancellation.
func (c *connection) startTransport(url string, started func(*webSocketTransport, error)) {
	disconnectCts := c.disconnectCts

	var doneMu sync.Mutex
	requestDone := false
	tryFinish := func() bool {
		doneMu.Lock()
		defer doneMu.Unlock()
		if requestDone {
			return false
		}
		requestDone = true
		return true
	}

	transport := newWebSocketTransport(c.wsFactory(c.config), c.logger)

	transport.setOnClose(func(err error) {
		// The close callback can only fire once start on the transport has
		// returned; waiting for the event avoids racing a state that has not
		// left connecting yet.
		c.startCompleted.wait(-1)
		c.stopConnection(err)
	})

	transport.setOnReceive(func(data []byte) {
		if disconnectCts.isCanceled() {
			c.logger.log(TraceInfo, "ignoring stray message received after connection was restarted. message: "+string(data))
			return
		}
		c.processResponse(data)
	})

	go func() {
		canceled := disconnectCts.wait(transportConnectTimeout)
		if !tryFinish() {
			return
		}
		if canceled {
			// started() maps the cancellation onto a canceled error.
			started(nil, nil)
		} else {
			started(nil, &TransportError{Message: "transport timed out when trying to connect"})
		}
	}()

	connectURL, err := buildConnectURL(url, c.connectionToken)
	if err != nil {
		if tryFinish() {
			started(nil, err)
		}
		return
	}

	transport.start(connectURL, TransferFormatText, func(err error) {
		if !tryFinish() {
			return
		}
		if err != nil {
			c.logger.log(TraceError, "transport could not connect due to: "+err.Error())
			started(nil, err)
			return
		}
		started(transport, nil)
	})
}

func (c *connection) processResponse(data []byte) {
	if c.logger.isEnabled(TraceVerbose) {
		c.logger.log(TraceVerbose, "processing message: "+string(data))
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.log(TraceError, "message_received callback threw an exception")
		}
	}()
	c.messageReceived(data)
}

func (c *connection) send(data []byte, format TransferFormat, callback func(error)) {
	transport := c.transport

	state := c.getState()
	if state != Connected || transport == nil {
		callback(&ConfigurationError{
			Message: "cannot send data when the connection is not in the connected state. current connection state: " + state.String()})
		return
	}

	if c.logger.isEnabled(TraceVerbose) {
		c.logger.log(TraceVerbose, "sending data: "+string(data))
	}

	transport.send(data, format, func(err error) {
		if err != nil {
			c.logger.log(TraceError, "error sending data: "+err.Error())
		}
		callback(err)
	})
}

// stop shuts the connection down. reason, when non-nil, is reported to the
// disconnected callback instead of a clean close.
func (c *connection) stop(callback func(error), reason error) {
	c.logger.log(TraceInfo, "stopping connection")
	if reason != nil {
		c.setStopError(reason)
	}
	c.shutdown(callback)
}

func (c *connection) shutdown(callback func(error)) {
	var transport *webSocketTransport
	{
		c.stopMu.Lock()

		state := c.getState()
		if state == Disconnected {
			c.stopMu.Unlock()
			callback(nil)
			return
		}
		if state == Disconnecting {
			// A canceled result tells the caller not to touch the transport;
			// the concurrent stop owns it.
			c.stopMu.Unlock()
			callback(&CanceledError{})
			return
		}

		c.disconnectCts.cancel()

		for {
			if _, ok := c.startCompleted.wait(startSettleTimeout); ok {
				break
			}
			c.logger.log(TraceError,
				"internal error - stopping the connection is still waiting for the start operation to finish which should have already finished or timed out")
		}

		// A canceled start has already transitioned to disconnected and
		// nulled the transport out.
		if c.getState() == Disconnected {
			c.stopMu.Unlock()
			callback(nil)
			return
		}

		c.changeState(Connected, Disconnecting)
		transport = c.transport
		c.stopMu.Unlock()
	}

	transport.stop(callback)
}

// stopConnection is the single place the connection transitions into
// disconnected after having been connected. It fires the disconnected
// callback with the error that terminated the connection, if any.
func (c *connection) stopConnection(err error) {
	{
		c.stopMu.Lock()
		if c.getState() == Disconnected {
			c.stopMu.Unlock()
			c.logger.log(TraceInfo, "Stopping was ignored because the connection is already in the disconnected state.")
			return
		}
		c.setState(Disconnected)
		c.transport = nil
		c.stopMu.Unlock()
	}

	if err == nil {
		err = c.takeStopError()
	}

	if err != nil {
		c.logger.log(TraceError, "Connection closed with error: "+err.Error())
	} else {
		c.logger.log(TraceInfo, "Connection closed.")
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.log(TraceError, "disconnected callback threw an exception")
		}
	}()
	c.disconnected(err)
}

func (c *connection) setStopError(err error) {
	c.stopErrMu.Lock()
	c.stopError = err
	c.stopErrMu.Unlock()
}

func (c *connection) takeStopError() error {
	c.stopErrMu.Lock()
	defer c.stopErrMu.Unlock()
	err := c.stopError
	c.stopError = nil
	return err
}

func (c *connection) setMessageReceived(callback func([]byte)) error {
	if err := c.ensureDisconnected("cannot set the callback when the connection is not in the disconnected state. "); err != nil {
		return err
	}
	c.messageReceived = callback
	return nil
}

func (c *connection) setDisconnected(callback func(error)) error {
	if err := c.ensureDisconnected("cannot set the disconnected callback when the connection is not in the disconnected state. "); err != nil {
		return err
	}
	c.disconnected = callback
	return nil
}

func (c *connection) setClientConfig(config ClientConfig) error {
	if err := c.ensureDisconnected("cannot set client config when the connection is not in the disconnected state. "); err != nil {
		return err
	}
	c.config = config
	return nil
}

func (c *connection) ensureDisconnected(message string) error {
	if state := c.getState(); state != Disconnected {
		return &ConfigurationError{Message: message + "current connection state: " + state.String()}
	}
	return nil
}
