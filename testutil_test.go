package signalr

import (
	"context"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

// fakeHTTPClient scripts negotiate responses and records every request.
type fakeHTTPClient struct {
	mu       sync.Mutex
	requests []capturedRequest
	handler  func(url string, request HTTPRequest) (HTTPResponse, error)
}

type capturedRequest struct {
	URL     string
	Request HTTPRequest
}

func newFakeHTTPClient(handler func(url string, request HTTPRequest) (HTTPResponse, error)) *fakeHTTPClient {
	return &fakeHTTPClient{handler: handler}
}

func (c *fakeHTTPClient) Send(_ context.Context, url string, request HTTPRequest, callback func(HTTPResponse, error)) {
	headers := make(map[string]string, len(request.Headers))
	for k, v := range request.Headers {
		headers[k] = v
	}
	captured := request
	captured.Headers = headers

	c.mu.Lock()
	c.requests = append(c.requests, capturedRequest{URL: url, Request: captured})
	c.mu.Unlock()

	response, err := c.handler(url, request)
	callback(response, err)
}

func (c *fakeHTTPClient) captured() []capturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// defaultNegotiateBody is the canonical happy-path negotiate response.
const defaultNegotiateBody = `{"connectionId":"X","availableTransports":[{"transport":"WebSockets","transferFormats":["Text","Binary"]}]}`

func negotiateOK(body string) func(string, HTTPRequest) (HTTPResponse, error) {
	return func(string, HTTPRequest) (HTTPResponse, error) {
		return HTTPResponse{StatusCode: 200, Body: body}, nil
	}
}

// fakeWebsocketClient scripts the WebSocket capability: tests push frames in
// through serverSend/serverError and observe client writes on sent.
type fakeWebsocketClient struct {
	mu       sync.Mutex
	startURL string
	startErr error
	sendErr  error
	stopped  chan struct{}
	stopOnce sync.Once

	frames chan receivedFrame
	sent   chan []byte
}

func newFakeWebsocketClient() *fakeWebsocketClient {
	return &fakeWebsocketClient{
		stopped: make(chan struct{}),
		frames:  make(chan receivedFrame, 64),
		sent:    make(chan []byte, 64),
	}
}

func (c *fakeWebsocketClient) Start(url string, _ TransferFormat, callback func(error)) {
	c.mu.Lock()
	c.startURL = url
	err := c.startErr
	c.mu.Unlock()
	callback(err)
}

func (c *fakeWebsocketClient) Stop(callback func(error)) {
	c.stopOnce.Do(func() { close(c.stopped) })
	callback(nil)
}

func (c *fakeWebsocketClient) Send(payload []byte, _ TransferFormat, callback func(error)) {
	c.mu.Lock()
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		callback(err)
		return
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	c.sent <- data
	callback(nil)
}

func (c *fakeWebsocketClient) Receive(callback func([]byte, error)) {
	go func() {
		select {
		case frame := <-c.frames:
			callback(frame.data, frame.err)
		case <-c.stopped:
		}
	}()
}

func (c *fakeWebsocketClient) serverSend(data string) {
	c.frames <- receivedFrame{data: []byte(data)}
}

func (c *fakeWebsocketClient) serverError(err error) {
	c.frames <- receivedFrame{err: err}
}

func (c *fakeWebsocketClient) dialedURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startURL
}

func (c *fakeWebsocketClient) setSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *fakeWebsocketClient) waitSent(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-c.sent:
		return data
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a frame to be sent")
		return nil
	}
}

// testClient wires a Client to the fakes with tight timers suitable for
// tests.
type testClient struct {
	client *Client
	http   *fakeHTTPClient
	ws     *fakeWebsocketClient
}

func newTestClient(t *testing.T, configure func(*ClientBuilder)) *testClient {
	t.Helper()

	httpClient := newFakeHTTPClient(negotiateOK(defaultNegotiateBody))
	ws := newFakeWebsocketClient()

	builder := NewClientBuilder("http://h/").
		WithHTTPClient(httpClient).
		WithWebsocketFactory(func(ClientConfig) WebsocketClient { return ws })
	if configure != nil {
		configure(builder)
	}

	client, err := builder.Build()
	if err != nil {
		t.Fatalf("building client: %v", err)
	}
	t.Cleanup(client.Close)

	return &testClient{client: client, http: httpClient, ws: ws}
}

// start runs the whole start sequence: negotiate, connect, handshake
// request, scripted handshake ack.
func (tc *testClient) start(t *testing.T) {
	t.Helper()

	started := make(chan error, 1)
	tc.client.Start(func(err error) { started <- err })

	handshake := tc.ws.waitSent(t)
	if string(handshake) != `{"protocol":"json","version":1}`+"\x1e" {
		t.Fatalf("unexpected handshake frame: %q", handshake)
	}
	tc.ws.serverSend("{}\x1e")

	waitErr(t, started, "start")
}

func waitErr(t *testing.T, ch <-chan error, op string) {
	t.Helper()
	select {
	case err := <-ch:
		if err != nil {
			t.Fatalf("%s failed: %v", op, err)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", op)
	}
}

func waitFor(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a callback")
		return nil
	}
}
