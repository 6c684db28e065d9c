package signalr

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Client is a connection to a SignalR hub. It layers the hub semantics —
// handshake, invocation correlation, event dispatch and keep-alive — on top
// of the byte-level connection.
//
// The API is callback based and none of the methods block: results are
// delivered later, from a scheduler worker or an internal goroutine. Use
// NewClientBuilder to construct a Client.
type Client struct {
	conn      *connection
	protocol  HubProtocol
	logger    logger
	scheduler Scheduler
	config    ClientConfig

	// ownedScheduler is closed by Close when the builder created the default
	// scheduler for this client.
	ownedScheduler *defaultScheduler

	callbacks *callbackManager

	subsMu        sync.Mutex
	subscriptions map[string]func([]Value)

	userDisconnected func(error)

	handshakeMu       sync.Mutex
	handshakeReceived bool
	handshakeTask     *completionEvent
	disconnectCts     *cancellationTokenSource

	cachedPing []byte

	// Keep-alive deadlines as unix-nano timestamps.
	nextSendPing      atomic.Int64
	nextServerTimeout atomic.Int64

	stopCallbackMu sync.Mutex
	stopCallbacks  []func(error)
}

func newClient(url string, protocol HubProtocol, logger logger, scheduler Scheduler,
	httpClient HTTPClient, wsFactory WebsocketFactory, skipNegotiation bool, config ClientConfig) (*Client, error) {
	c := &Client{
		conn:             newConnection(url, logger, scheduler, httpClient, wsFactory, skipNegotiation),
		protocol:         protocol,
		logger:           logger,
		scheduler:        scheduler,
		config:           config,
		callbacks:        newCallbackManager(),
		subscriptions:    make(map[string]func([]Value)),
		userDisconnected: func(error) {},
		handshakeTask:    newCompletionEvent(),
		disconnectCts:    newCancellationTokenSource(),
	}
	c.handshakeTask.complete(nil)
	c.disconnectCts.cancel()

	ping, err := protocol.WriteMessage(&PingMessage{})
	if err != nil {
		return nil, err
	}
	c.cachedPing = ping

	if err := c.conn.setMessageReceived(c.processMessage); err != nil {
		return nil, err
	}
	if err := c.conn.setDisconnected(c.handleDisconnected); err != nil {
		return nil, err
	}
	return c, nil
}

// State reports the connection state.
func (c *Client) State() ConnectionState { return c.conn.getState() }

// ConnectionID returns the id negotiate assigned, or "" before the first
// successful negotiate and while connecting.
func (c *Client) ConnectionID() string { return c.conn.getConnectionID() }

// On registers handler for invocations of the named hub method. Target
// matching is case-insensitive. Registration is only permitted while the
// connection is disconnected, and only one handler may exist per target.
func (c *Client) On(eventName string, handler func(arguments []Value)) error {
	if eventName == "" {
		return &ConfigurationError{Message: "event_name cannot be empty"}
	}
	if c.conn.getState() != Disconnected {
		return &ConfigurationError{Message: "can't register a handler if the connection is not in a disconnected state"}
	}

	key := foldTarget(eventName)
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if _, ok := c.subscriptions[key]; ok {
		return &ConfigurationError{Message: "an action for this event has already been registered. event name: " + eventName}
	}
	c.subscriptions[key] = handler
	return nil
}

// Remove drops the handler registered for the named hub method, if any.
func (c *Client) Remove(eventName string) {
	key := foldTarget(eventName)
	c.subsMu.Lock()
	delete(c.subscriptions, key)
	c.subsMu.Unlock()
}

// SetDisconnected registers the callback that fires exactly once per
// successful start/stop cycle, with nil for a clean stop or the error that
// terminated the connection.
func (c *Client) SetDisconnected(callback func(error)) error {
	if c.conn.getState() != Disconnected {
		return &ConfigurationError{Message: "cannot set the disconnected callback when the connection is not in the disconnected state. current connection state: " + c.conn.getState().String()}
	}
	if callback == nil {
		callback = func(error) {}
	}
	c.userDisconnected = callback
	return nil
}

// Start connects, performs the hub handshake and arms the keep-alive. The
// callback fires once with the outcome.
func (c *Client) Start(callback func(error)) {
	if callback == nil {
		callback = func(error) {}
	}
	if c.conn.getState() != Disconnected {
		callback(&ConfigurationError{Message: "the connection can only be started if it is in the disconnected state"})
		return
	}

	c.conn.setClientConfig(c.config)

	c.handshakeMu.Lock()
	c.handshakeTask = newCompletionEvent()
	c.disconnectCts = newCancellationTokenSource()
	c.handshakeReceived = false
	handshakeTask := c.handshakeTask
	disconnectCts := c.disconnectCts
	c.handshakeMu.Unlock()

	c.conn.start(func(startErr error) {
		if startErr != nil {
			// The connection never reached connected; there is nothing to
			// stop and the disconnected callback must not fire.
			callback(startErr)
			return
		}

		var once sync.Once
		finish := func(err error) {
			once.Do(func() {
				if err != nil {
					c.conn.stop(func(error) { callback(err) }, err)
					return
				}
				c.startKeepalive()
				callback(nil)
			})
		}
		handshakeTask.onComplete(finish)

		disconnectCts.register(func() {
			handshakeTask.complete(&CanceledError{Message: "the connection was stopped before the handshake could complete."})
		})

		handshakeTimeout := c.config.HandshakeTimeout()
		runTimer(c.scheduler, func(elapsed time.Duration) bool {
			if handshakeTask.isSet() {
				return true
			}
			if elapsed < handshakeTimeout {
				return false
			}
			handshakeTask.complete(&HandshakeError{Message: "timed out waiting for the server to respond to the handshake message."})
			return true
		})

		c.conn.send(writeHandshake(c.protocol), c.protocol.TransferFormat(), func(err error) {
			if err != nil {
				handshakeTask.complete(err)
			}
		})
	})
}

// Stop shuts the connection down. Concurrent stops coalesce: every caller's
// callback fires with the outcome of the one underlying stop.
func (c *Client) Stop(callback func(error)) {
	if callback == nil {
		callback = func(error) {}
	}
	if c.conn.getState() == Disconnected {
		c.logger.log(TraceDebug, "stop ignored because the connection is already disconnected.")
		callback(nil)
		return
	}

	c.stopCallbackMu.Lock()
	c.stopCallbacks = append(c.stopCallbacks, callback)
	if len(c.stopCallbacks) > 1 {
		c.stopCallbackMu.Unlock()
		c.logger.log(TraceInfo, "Stop is already in progress, waiting for it to finish.")
		return
	}
	c.stopCallbackMu.Unlock()

	c.conn.stop(func(err error) {
		c.stopCallbackMu.Lock()
		callbacks := c.stopCallbacks
		c.stopCallbacks = nil
		c.stopCallbackMu.Unlock()

		for _, cb := range callbacks {
			cb(err)
		}
	}, nil)
}

// Close stops the connection if needed and releases the client's owned
// resources. The client must not be used afterwards.
func (c *Client) Close() {
	done := make(chan struct{})
	c.Stop(func(error) { close(done) })
	<-done
	if c.ownedScheduler != nil {
		c.ownedScheduler.Close()
	}
}

// Invoke calls the named hub method and delivers the server's completion to
// the callback: the result value, or a HubError when the hub raised one.
// args must be an array Value.
func (c *Client) Invoke(target string, args Value, callback func(result Value, err error)) {
	if callback == nil {
		callback = func(Value, error) {}
	}
	if !args.IsArray() {
		callback(Null(), &ConfigurationError{Message: "arguments should be an array"})
		return
	}
	arguments, _ := args.AsArray()

	id := c.callbacks.register(func(err error, result Value) {
		if err != nil {
			callback(Null(), err)
			return
		}
		callback(result, nil)
	})

	c.invokeHubMethod(target, arguments, id,
		nil,
		func(err error) { callback(Null(), err) })
}

// Send calls the named hub method without expecting a response; the callback
// fires when the transport send completes. args must be an array Value.
func (c *Client) Send(target string, args Value, callback func(error)) {
	if callback == nil {
		callback = func(error) {}
	}
	if !args.IsArray() {
		callback(&ConfigurationError{Message: "arguments should be an array"})
		return
	}
	arguments, _ := args.AsArray()

	c.invokeHubMethod(target, arguments, "",
		func() { callback(nil) },
		callback)
}

// invokeHubMethod writes an invocation frame. The pending-invocation entry
// for id is registered by the caller before this runs, so a completion
// racing the send result always observes it; a failed send removes it again.
func (c *Client) invokeHubMethod(target string, arguments []Value, id string,
	setCompletion func(), setError func(error)) {
	message := &InvocationMessage{InvocationID: id, Target: target, Arguments: arguments}
	payload, err := c.protocol.WriteMessage(message)
	if err != nil {
		c.callbacks.remove(id)
		if c.logger.isEnabled(TraceWarning) {
			c.logger.log(TraceWarning, "failed to send invocation: "+err.Error())
		}
		setError(err)
		return
	}

	c.conn.send(payload, c.protocol.TransferFormat(), func(err error) {
		if err != nil {
			c.callbacks.remove(id)
			setError(err)
			return
		}
		if id == "" {
			setCompletion()
		}
	})

	c.resetSendPing()
}

func (c *Client) processMessage(data []byte) {
	c.handshakeMu.Lock()
	received := c.handshakeReceived
	c.handshakeMu.Unlock()

	if !received {
		remaining, handled := c.processHandshakeResponse(data)
		if !handled || len(remaining) == 0 {
			return
		}
		data = remaining
	}

	c.resetServerTimeout()

	if err := c.dispatch(data); err != nil {
		if c.logger.isEnabled(TraceError) {
			c.logger.log(TraceError, "error occurred when parsing response: "+err.Error()+". response: "+string(data))
		}
		c.conn.stop(func(error) {}, err)
	}
}

// processHandshakeResponse consumes the first frame of the payload as the
// handshake reply. It reports whether dispatch may continue with the
// remaining bytes.
func (c *Client) processHandshakeResponse(data []byte) ([]byte, bool) {
	remaining, response, err := parseHandshake(data)
	if err != nil {
		c.handshakeTask.complete(err)
		return nil, false
	}

	obj, err := response.AsMap()
	if err != nil {
		c.handshakeTask.complete(&HandshakeError{Message: "handshake response was not an object"})
		return nil, false
	}

	if errValue, ok := obj["error"]; ok {
		message, _ := errValue.AsString()
		if c.logger.isEnabled(TraceError) {
			c.logger.log(TraceError, "handshake error: "+message)
		}
		c.handshakeTask.complete(&HandshakeError{Message: "Received an error during handshake: " + message})
		return nil, false
	}
	if _, ok := obj["type"]; ok {
		c.handshakeTask.complete(&HandshakeError{Message: "Received unexpected message while waiting for the handshake response."})
		return nil, false
	}

	c.handshakeMu.Lock()
	c.handshakeReceived = true
	c.handshakeMu.Unlock()
	c.handshakeTask.complete(nil)
	return remaining, true
}

func (c *Client) dispatch(data []byte) error {
	messages, err := c.protocol.ParseMessages(data)
	if err != nil {
		return err
	}

	for _, message := range messages {
		if message == nil {
			return &ProtocolError{Message: "null message received"}
		}

		switch m := message.(type) {
		case *InvocationMessage:
			c.dispatchInvocation(m)
		case *CompletionMessage:
			c.dispatchCompletion(m)
		case *PingMessage:
			if c.logger.isEnabled(TraceDebug) {
				c.logger.log(TraceDebug, "ping message received.")
			}
		case *StreamItemMessage:
			// Streaming hub methods are not supported; items are accepted so
			// the server-timeout clock still resets.
		case *CloseMessage:
			// The server is about to drop the transport; the close callback
			// will take the connection down.
		case *StreamInvocationMessage:
			return &ProtocolError{Message: "Received unexpected message type 'StreamInvocation'"}
		case *CancelInvocationMessage:
			return &ProtocolError{Message: "Received unexpected message type 'CancelInvocation'."}
		default:
			return &ProtocolError{Message: fmt.Sprintf("unknown message type '%d' received", message.Type())}
		}
	}
	return nil
}

func (c *Client) dispatchInvocation(m *InvocationMessage) {
	c.subsMu.Lock()
	handler, ok := c.subscriptions[foldTarget(m.Target)]
	c.subsMu.Unlock()

	if !ok {
		c.logger.log(TraceInfo, "handler not found")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.log(TraceError, fmt.Sprintf("handler for event %q threw an exception: %v", m.Target, r))
		}
	}()
	handler(m.Arguments)
}

func (c *Client) dispatchCompletion(m *CompletionMessage) {
	var err error
	if m.Error != "" {
		err = &HubError{Message: m.Error}
	}
	if !c.callbacks.invoke(m.InvocationID, err, m.Result, true) {
		if c.logger.isEnabled(TraceInfo) {
			c.logger.log(TraceInfo, "no callback found for id: "+m.InvocationID)
		}
	}
}

// handleDisconnected is the connection layer's disconnected callback: it
// settles a handshake that was still in flight, fails every pending
// invocation, and only then runs the user's callback.
func (c *Client) handleDisconnected(err error) {
	c.handshakeTask.complete(&HandshakeError{Message: "connection closed while handshake was in progress."})
	c.disconnectCts.cancel()
	c.callbacks.clear(&StoppedError{Message: "connection was stopped before invocation result was received"})
	c.userDisconnected(err)
}

func (c *Client) resetSendPing() {
	c.nextSendPing.Store(time.Now().Add(c.config.KeepaliveInterval()).UnixNano())
}

func (c *Client) resetServerTimeout() {
	c.nextServerTimeout.Store(time.Now().Add(c.config.ServerTimeout()).UnixNano())
}

// startKeepalive arms the single periodic timer that sends pings and
// enforces the server timeout while the connection is connected.
func (c *Client) startKeepalive() {
	if c.logger.isEnabled(TraceDebug) {
		c.logger.log(TraceDebug, "starting keep alive timer.")
	}

	c.resetSendPing()
	c.resetServerTimeout()

	runTimer(c.scheduler, func(time.Duration) bool {
		if c.conn.getState() != Connected {
			return true
		}

		now := time.Now().UnixNano()

		if now > c.nextServerTimeout.Load() {
			message := fmt.Sprintf("server timeout (%d ms) elapsed without receiving a message from the server.",
				c.config.ServerTimeout().Milliseconds())
			if c.logger.isEnabled(TraceWarning) {
				c.logger.log(TraceWarning, message)
			}
			c.conn.stop(func(error) {}, &TransportError{Message: message})
			return true
		}

		if now > c.nextSendPing.Load() {
			if c.logger.isEnabled(TraceDebug) {
				c.logger.log(TraceDebug, "sending ping to server.")
			}
			c.sendPing()
		}
		return false
	})
}

func (c *Client) sendPing() {
	c.conn.send(c.cachedPing, c.protocol.TransferFormat(), func(err error) {
		if err != nil {
			if c.logger.isEnabled(TraceWarning) {
				c.logger.log(TraceWarning, "failed to send ping: "+err.Error())
			}
			return
		}
		c.resetSendPing()
	})
}

// foldTarget folds a hub method name for case-insensitive lookup. ASCII-only
// folding matches the server's comparison for method names.
func foldTarget(target string) string {
	return strings.ToUpper(target)
}
