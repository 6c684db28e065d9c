package signalr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePackProtocolIdentity(t *testing.T) {
	p := NewMessagePackHubProtocol()
	assert.Equal(t, "messagepack", p.Name())
	assert.Equal(t, 1, p.Version())
	assert.Equal(t, TransferFormatBinary, p.TransferFormat())
}

func TestMessagePackRoundTrip(t *testing.T) {
	p := NewMessagePackHubProtocol()

	messages := []HubMessage{
		&InvocationMessage{InvocationID: "1", Target: "Echo", Arguments: []Value{String("hi"), Float64(3)}},
		&InvocationMessage{Target: "Notify", Arguments: []Value{Bool(true), Null()}},
		&CompletionMessage{InvocationID: "2", Error: "boom"},
		&CompletionMessage{InvocationID: "3", Result: Float64(1.5), HasResult: true},
		&CompletionMessage{InvocationID: "4"},
		&PingMessage{},
	}
	for _, message := range messages {
		data, err := p.WriteMessage(message)
		require.NoError(t, err)

		parsed, err := p.ParseMessages(data)
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, message, parsed[0])
	}
}

func TestMessagePackNestedValues(t *testing.T) {
	p := NewMessagePackHubProtocol()

	original := &InvocationMessage{
		Target: "m",
		Arguments: []Value{
			Map(map[string]Value{
				"list": Array(Float64(1), String("x")),
				"flag": Bool(false),
			}),
		},
	}
	data, err := p.WriteMessage(original)
	require.NoError(t, err)

	parsed, err := p.ParseMessages(data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)

	invocation := parsed[0].(*InvocationMessage)
	require.Len(t, invocation.Arguments, 1)
	assert.True(t, original.Arguments[0].Equal(invocation.Arguments[0]))
}

func TestMessagePackBinaryValue(t *testing.T) {
	p := NewMessagePackHubProtocol()

	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	data, err := p.WriteMessage(&InvocationMessage{Target: "blob", Arguments: []Value{Binary(payload)}})
	require.NoError(t, err)

	parsed, err := p.ParseMessages(data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)

	invocation := parsed[0].(*InvocationMessage)
	require.Len(t, invocation.Arguments, 1)
	bin, err := invocation.Arguments[0].AsBinary()
	require.NoError(t, err)
	assert.Equal(t, payload, bin)
}

func TestMessagePackConcatenatedFrames(t *testing.T) {
	p := NewMessagePackHubProtocol()

	first, err := p.WriteMessage(&PingMessage{})
	require.NoError(t, err)
	second, err := p.WriteMessage(&InvocationMessage{Target: "a", Arguments: []Value{}})
	require.NoError(t, err)

	messages, err := p.ParseMessages(append(first, second...))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.IsType(t, &PingMessage{}, messages[0])
	assert.IsType(t, &InvocationMessage{}, messages[1])
}

func TestMessagePackPartialFrameFails(t *testing.T) {
	p := NewMessagePackHubProtocol()

	frame, err := p.WriteMessage(&PingMessage{})
	require.NoError(t, err)

	_, err = p.ParseMessages(frame[:len(frame)-1])
	require.ErrorContains(t, err, "partial messages are not supported.")
}

func TestMessagePackIntegersCollapseToFloat64(t *testing.T) {
	p := NewMessagePackHubProtocol()

	data, err := p.WriteMessage(&InvocationMessage{Target: "n", Arguments: []Value{Float64(42), Float64(-7)}})
	require.NoError(t, err)

	parsed, err := p.ParseMessages(data)
	require.NoError(t, err)
	invocation := parsed[0].(*InvocationMessage)

	f, err := invocation.Arguments[0].AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)
	f, err = invocation.Arguments[1].AsFloat64()
	require.NoError(t, err)
	assert.Equal(t, -7.0, f)
}
