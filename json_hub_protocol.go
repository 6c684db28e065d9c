package signalr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONHubProtocol is the mandatory text protocol: each frame is a JSON
// object terminated by the 0x1E record separator. Multiple frames may arrive
// concatenated in a single WebSocket message.
type JSONHubProtocol struct{}

// NewJSONHubProtocol returns the JSON hub protocol codec.
func NewJSONHubProtocol() *JSONHubProtocol { return &JSONHubProtocol{} }

func (*JSONHubProtocol) Name() string { return "json" }

func (*JSONHubProtocol) Version() int { return 1 }

func (*JSONHubProtocol) TransferFormat() TransferFormat { return TransferFormatText }

func (p *JSONHubProtocol) WriteMessage(message HubMessage) ([]byte, error) {
	var payload interface{}
	switch m := message.(type) {
	case *InvocationMessage:
		payload = struct {
			Arguments    []Value  `json:"arguments"`
			InvocationID string   `json:"invocationId,omitempty"`
			StreamIDs    []string `json:"streamIds,omitempty"`
			Target       string   `json:"target"`
			Type         int      `json:"type"`
		}{m.Arguments, m.InvocationID, m.StreamIDs, m.Target, int(MessageInvocation)}
	case *CompletionMessage:
		switch {
		case m.Error != "":
			payload = struct {
				Error        string `json:"error"`
				InvocationID string `json:"invocationId"`
				Type         int    `json:"type"`
			}{m.Error, m.InvocationID, int(MessageCompletion)}
		case m.HasResult:
			payload = struct {
				InvocationID string `json:"invocationId"`
				Result       Value  `json:"result"`
				Type         int    `json:"type"`
			}{m.InvocationID, m.Result, int(MessageCompletion)}
		default:
			payload = struct {
				InvocationID string `json:"invocationId"`
				Type         int    `json:"type"`
			}{m.InvocationID, int(MessageCompletion)}
		}
	case *PingMessage:
		payload = struct {
			Type int `json:"type"`
		}{int(MessagePing)}
	case *CloseMessage:
		payload = struct {
			AllowReconnect bool   `json:"allowReconnect,omitempty"`
			Error          string `json:"error,omitempty"`
			Type           int    `json:"type"`
		}{m.AllowReconnect, m.Error, int(MessageClose)}
	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("cannot write message of type %d", message.Type())}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(data, recordSeparator), nil
}

// ParseMessages splits the payload on record separators and decodes each
// complete frame. A trailing slice with no separator is dropped.
func (p *JSONHubProtocol) ParseMessages(data []byte) ([]HubMessage, error) {
	var messages []HubMessage
	for {
		pos := bytes.IndexByte(data, recordSeparator)
		if pos < 0 {
			return messages, nil
		}
		message, err := p.parseMessage(data[:pos])
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
		data = data[pos+1:]
	}
}

func (p *JSONHubProtocol) parseMessage(frame []byte) (HubMessage, error) {
	var root Value
	if err := root.UnmarshalJSON(frame); err != nil {
		return nil, &ProtocolError{Message: err.Error()}
	}
	obj, err := root.AsMap()
	if err != nil {
		return nil, &ProtocolError{Message: "Message was not a 'map' type"}
	}

	typeValue, ok := obj["type"]
	if !ok {
		return nil, &ProtocolError{Message: "Field 'type' not found"}
	}
	typeTag, err := typeValue.AsFloat64()
	if err != nil {
		return nil, &ProtocolError{Message: "Expected 'type' to be a 'float64'"}
	}

	switch MessageType(typeTag) {
	case MessageInvocation:
		target, ok := obj["target"]
		if !ok {
			return nil, &ProtocolError{Message: "Field 'target' not found for 'invocation' message"}
		}
		targetName, err := target.AsString()
		if err != nil {
			return nil, &ProtocolError{Message: "Expected 'target' to be a 'string'"}
		}
		args, ok := obj["arguments"]
		if !ok {
			return nil, &ProtocolError{Message: "Field 'arguments' not found for 'invocation' message"}
		}
		arguments, err := args.AsArray()
		if err != nil {
			return nil, &ProtocolError{Message: "Expected 'arguments' to be an 'array'"}
		}
		message := &InvocationMessage{Target: targetName, Arguments: arguments}
		if id, ok := obj["invocationId"]; ok && !id.IsNull() {
			if message.InvocationID, err = id.AsString(); err != nil {
				return nil, &ProtocolError{Message: "Expected 'invocationId' to be a 'string'"}
			}
		}
		if ids, ok := obj["streamIds"]; ok {
			items, err := ids.AsArray()
			if err != nil {
				return nil, &ProtocolError{Message: "Expected 'streamIds' to be an 'array'"}
			}
			for _, item := range items {
				id, err := item.AsString()
				if err != nil {
					return nil, &ProtocolError{Message: "Expected 'streamIds' entries to be a 'string'"}
				}
				message.StreamIDs = append(message.StreamIDs, id)
			}
		}
		return message, nil

	case MessageStreamItem:
		message := &StreamItemMessage{Item: obj["item"]}
		if id, ok := obj["invocationId"]; ok {
			if message.InvocationID, err = id.AsString(); err != nil {
				return nil, &ProtocolError{Message: "Expected 'invocationId' to be a 'string'"}
			}
		}
		return message, nil

	case MessageCompletion:
		id, ok := obj["invocationId"]
		if !ok {
			return nil, &ProtocolError{Message: "Field 'invocationId' not found for 'completion' message"}
		}
		invocationID, err := id.AsString()
		if err != nil {
			return nil, &ProtocolError{Message: "Expected 'invocationId' to be a 'string'"}
		}
		errValue, hasError := obj["error"]
		result, hasResult := obj["result"]
		if hasError && hasResult {
			return nil, &ProtocolError{Message: "The 'error' and 'result' properties are mutually exclusive."}
		}
		message := &CompletionMessage{InvocationID: invocationID}
		if hasError {
			if message.Error, err = errValue.AsString(); err != nil {
				return nil, &ProtocolError{Message: "Expected 'error' to be a 'string'"}
			}
		}
		if hasResult {
			message.Result = result
			message.HasResult = true
		}
		return message, nil

	case MessageStreamInvocation:
		message := &StreamInvocationMessage{}
		if id, ok := obj["invocationId"]; ok {
			message.InvocationID, _ = id.AsString()
		}
		if target, ok := obj["target"]; ok {
			message.Target, _ = target.AsString()
		}
		return message, nil

	case MessageCancelInvocation:
		message := &CancelInvocationMessage{}
		if id, ok := obj["invocationId"]; ok {
			message.InvocationID, _ = id.AsString()
		}
		return message, nil

	case MessagePing:
		return &PingMessage{}, nil

	case MessageClose:
		message := &CloseMessage{}
		if errValue, ok := obj["error"]; ok {
			if message.Error, err = errValue.AsString(); err != nil {
				return nil, &ProtocolError{Message: "Expected 'error' to be a 'string'"}
			}
		}
		if allow, ok := obj["allowReconnect"]; ok {
			if message.AllowReconnect, err = allow.AsBool(); err != nil {
				return nil, &ProtocolError{Message: "Expected 'allowReconnect' to be a 'boolean'"}
			}
		}
		return message, nil
	}

	// Unknown tags surface as nil entries so the dispatcher can close the
	// connection the way the other client implementations do.
	return nil, nil
}
