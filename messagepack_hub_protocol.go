package signalr

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Completion frames carry a result kind after the invocation id.
const (
	completionResultError = 1
	completionResultVoid  = 2
	completionResultValue = 3
)

// MessagePackHubProtocol is the optional binary protocol: every frame is a
// VarInt length prefix followed by a MessagePack array whose first element
// is the numeric message type.
type MessagePackHubProtocol struct{}

// NewMessagePackHubProtocol returns the MessagePack hub protocol codec.
func NewMessagePackHubProtocol() *MessagePackHubProtocol { return &MessagePackHubProtocol{} }

func (*MessagePackHubProtocol) Name() string { return "messagepack" }

func (*MessagePackHubProtocol) Version() int { return 1 }

func (*MessagePackHubProtocol) TransferFormat() TransferFormat { return TransferFormatBinary }

func (p *MessagePackHubProtocol) WriteMessage(message HubMessage) ([]byte, error) {
	var body bytes.Buffer
	enc := msgpack.NewEncoder(&body)

	switch m := message.(type) {
	case *InvocationMessage:
		if err := enc.EncodeArrayLen(6); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(int64(MessageInvocation)); err != nil {
			return nil, err
		}
		// Headers are unused but the slot is mandatory.
		if err := enc.EncodeMapLen(0); err != nil {
			return nil, err
		}
		if m.InvocationID == "" {
			if err := enc.EncodeNil(); err != nil {
				return nil, err
			}
		} else if err := enc.EncodeString(m.InvocationID); err != nil {
			return nil, err
		}
		if err := enc.EncodeString(m.Target); err != nil {
			return nil, err
		}
		if err := enc.EncodeArrayLen(len(m.Arguments)); err != nil {
			return nil, err
		}
		for _, arg := range m.Arguments {
			if err := packValue(enc, arg); err != nil {
				return nil, err
			}
		}
		if err := enc.EncodeArrayLen(len(m.StreamIDs)); err != nil {
			return nil, err
		}
		for _, id := range m.StreamIDs {
			if err := enc.EncodeString(id); err != nil {
				return nil, err
			}
		}

	case *CompletionMessage:
		resultKind := completionResultVoid
		if m.Error != "" {
			resultKind = completionResultError
		} else if m.HasResult {
			resultKind = completionResultValue
		}
		arrayLen := 4
		if resultKind != completionResultVoid {
			arrayLen = 5
		}
		if err := enc.EncodeArrayLen(arrayLen); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(int64(MessageCompletion)); err != nil {
			return nil, err
		}
		if err := enc.EncodeMapLen(0); err != nil {
			return nil, err
		}
		if err := enc.EncodeString(m.InvocationID); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(int64(resultKind)); err != nil {
			return nil, err
		}
		switch resultKind {
		case completionResultError:
			if err := enc.EncodeString(m.Error); err != nil {
				return nil, err
			}
		case completionResultValue:
			if err := packValue(enc, m.Result); err != nil {
				return nil, err
			}
		}

	case *PingMessage:
		if err := enc.EncodeArrayLen(1); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(int64(MessagePing)); err != nil {
			return nil, err
		}

	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("cannot write message of type %d", message.Type())}
	}

	framed, err := appendLengthPrefix(nil, body.Len())
	if err != nil {
		return nil, err
	}
	return append(framed, body.Bytes()...), nil
}

// packValue writes a Value using the same integral-float rule as the JSON
// codec: whole numbers go out as int64/uint64 so the server sees integers
// where it expects them.
func packValue(enc *msgpack.Encoder, v Value) error {
	switch v.Type() {
	case BoolType:
		b, _ := v.AsBool()
		return enc.EncodeBool(b)
	case Float64Type:
		f, _ := v.AsFloat64()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			if f < 0 {
				if f >= math.MinInt64 {
					return enc.EncodeInt(int64(f))
				}
			} else if f < math.MaxUint64 {
				return enc.EncodeUint(uint64(f))
			}
		}
		return enc.EncodeFloat64(f)
	case StringType:
		s, _ := v.AsString()
		return enc.EncodeString(s)
	case ArrayType:
		items, _ := v.AsArray()
		if err := enc.EncodeArrayLen(len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if err := packValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	case MapType:
		entries, _ := v.AsMap()
		if err := enc.EncodeMapLen(len(entries)); err != nil {
			return err
		}
		for k, item := range entries {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := packValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	case BinaryType:
		data, _ := v.AsBinary()
		return enc.EncodeBytes(data)
	default:
		return enc.EncodeNil()
	}
}

func (p *MessagePackHubProtocol) ParseMessages(data []byte) ([]HubMessage, error) {
	var messages []HubMessage
	for {
		prefixLen, messageLen, ok, err := parseLengthPrefix(data)
		if err != nil {
			return nil, err
		}
		if !ok {
			return messages, nil
		}
		body := data[prefixLen : prefixLen+messageLen]
		data = data[prefixLen+messageLen:]

		message, err := p.parseMessage(body)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
}

func (p *MessagePackHubProtocol) parseMessage(body []byte) (HubMessage, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(body))

	elements, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, &ProtocolError{Message: "Message was not an 'array' type"}
	}
	if elements <= 0 {
		return nil, &ProtocolError{Message: "Message was an empty array"}
	}

	typeTag, err := dec.DecodeInt64()
	if err != nil {
		return nil, &ProtocolError{Message: "reading 'type' as int failed"}
	}

	switch MessageType(typeTag) {
	case MessageInvocation:
		if elements < 5 {
			return nil, &ProtocolError{Message: "invocation message has too few properties"}
		}
		if err := dec.Skip(); err != nil { // headers
			return nil, &ProtocolError{Message: "reading message headers failed"}
		}
		invocationID, err := decodeOptionalString(dec)
		if err != nil {
			return nil, &ProtocolError{Message: "reading 'invocationId' as string failed"}
		}
		target, err := dec.DecodeString()
		if err != nil {
			return nil, &ProtocolError{Message: "reading 'target' as string failed"}
		}
		argsValue, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arguments, err := argsValue.AsArray()
		if err != nil {
			return nil, &ProtocolError{Message: "reading 'arguments' as array failed"}
		}
		return &InvocationMessage{InvocationID: invocationID, Target: target, Arguments: arguments}, nil

	case MessageCompletion:
		if elements < 4 {
			return nil, &ProtocolError{Message: "completion message has too few properties"}
		}
		if err := dec.Skip(); err != nil { // headers
			return nil, &ProtocolError{Message: "reading message headers failed"}
		}
		invocationID, err := dec.DecodeString()
		if err != nil {
			return nil, &ProtocolError{Message: "reading 'invocationId' as string failed"}
		}
		resultKind, err := dec.DecodeInt64()
		if err != nil {
			return nil, &ProtocolError{Message: "reading 'result_kind' as int failed"}
		}
		if elements < 5 && resultKind != completionResultVoid {
			return nil, &ProtocolError{Message: "completion message has too few properties"}
		}
		message := &CompletionMessage{InvocationID: invocationID}
		switch resultKind {
		case completionResultError:
			if message.Error, err = dec.DecodeString(); err != nil {
				return nil, &ProtocolError{Message: "reading 'error' as string failed"}
			}
		case completionResultValue:
			if message.Result, err = decodeValue(dec); err != nil {
				return nil, err
			}
			message.HasResult = true
		}
		return message, nil

	case MessageStreamItem:
		message := &StreamItemMessage{}
		if elements >= 4 {
			if err := dec.Skip(); err != nil {
				return nil, &ProtocolError{Message: "reading message headers failed"}
			}
			if message.InvocationID, err = dec.DecodeString(); err != nil {
				return nil, &ProtocolError{Message: "reading 'invocationId' as string failed"}
			}
			if message.Item, err = decodeValue(dec); err != nil {
				return nil, err
			}
		}
		return message, nil

	case MessagePing:
		return &PingMessage{}, nil

	case MessageClose:
		message := &CloseMessage{}
		if elements >= 2 {
			if err := dec.Skip(); err != nil {
				return nil, &ProtocolError{Message: "reading message headers failed"}
			}
		}
		if elements >= 3 {
			if message.Error, err = decodeOptionalString(dec); err != nil {
				return nil, &ProtocolError{Message: "reading 'error' as string failed"}
			}
		}
		return message, nil

	case MessageStreamInvocation:
		return &StreamInvocationMessage{}, nil

	case MessageCancelInvocation:
		return &CancelInvocationMessage{}, nil
	}

	return nil, nil
}

func decodeOptionalString(dec *msgpack.Decoder) (string, error) {
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return "", err
	}
	switch s := raw.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return "", &ProtocolError{Message: "expected a string or nil"}
}

// decodeValue reads one MessagePack object into a Value. Integers collapse
// onto float64 like every other numeric type.
func decodeValue(dec *msgpack.Decoder) (Value, error) {
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return Null(), &ProtocolError{Message: "reading messagepack value failed: " + err.Error()}
	}
	v, err := valueFromInterface(raw)
	if err != nil {
		return Null(), &ProtocolError{Message: err.Error()}
	}
	return v, nil
}
