package signalr

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// webSocketTransport wraps a WebsocketClient with a single-reader receive
// pump, an at-most-once close notification, and idempotent start/stop. The
// pump re-arms the capability's Receive after every frame and exits when the
// transport is told to stop or the underlying receive errors; stop waits for
// the in-flight receive to drain. Stray frames delivered after stop are
// discarded without invoking the installed callbacks.
type webSocketTransport struct {
	client WebsocketClient
	logger logger

	onReceive func([]byte)
	onClose   func(error)
	closeOnce sync.Once

	mu       sync.Mutex
	started  bool
	stopping *cancellationTokenSource
	pump     *errgroup.Group
}

func newWebSocketTransport(client WebsocketClient, logger logger) *webSocketTransport {
	return &webSocketTransport{client: client, logger: logger}
}

func (t *webSocketTransport) setOnReceive(callback func([]byte)) { t.onReceive = callback }

func (t *webSocketTransport) setOnClose(callback func(error)) { t.onClose = callback }

func (t *webSocketTransport) start(url string, format TransferFormat, callback func(error)) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		callback(&TransportError{Message: "transport already connected"})
		return
	}
	t.started = true
	t.stopping = newCancellationTokenSource()
	t.mu.Unlock()

	t.client.Start(url, format, func(err error) {
		if err != nil {
			t.mu.Lock()
			t.started = false
			t.mu.Unlock()
			callback(err)
			return
		}

		t.mu.Lock()
		group := &errgroup.Group{}
		t.pump = group
		stopping := t.stopping
		t.mu.Unlock()

		group.Go(func() error { return t.receiveLoop(stopping) })
		callback(nil)
	})
}

type receivedFrame struct {
	data []byte
	err  error
}

func (t *webSocketTransport) receiveLoop(stopping *cancellationTokenSource) error {
	for {
		frames := make(chan receivedFrame, 1)
		t.client.Receive(func(data []byte, err error) {
			frames <- receivedFrame{data: data, err: err}
		})

		select {
		case <-stopping.done:
			return nil
		case frame := <-frames:
			if stopping.isCanceled() {
				return nil
			}
			if frame.err != nil {
				t.fireClose(frame.err)
				return frame.err
			}
			if t.onReceive != nil {
				t.onReceive(frame.data)
			}
		}
	}
}

func (t *webSocketTransport) fireClose(err error) {
	t.closeOnce.Do(func() {
		if t.onClose != nil {
			t.onClose(err)
		}
	})
}

func (t *webSocketTransport) send(payload []byte, format TransferFormat, callback func(error)) {
	t.client.Send(payload, format, callback)
}

// stop is a no-op when the transport was never started or already stopped.
func (t *webSocketTransport) stop(callback func(error)) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		callback(nil)
		return
	}
	t.started = false
	stopping := t.stopping
	pump := t.pump
	t.pump = nil
	t.mu.Unlock()

	stopping.cancel()

	t.client.Stop(func(err error) {
		// Draining must not run on the pump goroutine itself; stop can be
		// reached from a dispatched message.
		go func() {
			if pump != nil {
				if waitErr := pump.Wait(); waitErr != nil {
					t.logger.log(TraceDebug, "receive loop exited with error: "+waitErr.Error())
				}
			}
			t.fireClose(nil)
			callback(err)
		}()
	})
}
