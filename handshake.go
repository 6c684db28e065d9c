package signalr

import (
	"bytes"
	"fmt"
)

// writeHandshake renders the handshake request frame: a JSON object naming
// the hub protocol, terminated by the record separator. The handshake is
// JSON for every protocol, including MessagePack.
func writeHandshake(protocol HubProtocol) []byte {
	frame := fmt.Sprintf(`{"protocol":%q,"version":%d}`, protocol.Name(), protocol.Version())
	return append([]byte(frame), recordSeparator)
}

// parseHandshake extracts the first record-separator-terminated JSON object
// from data and returns whatever follows it; hub frames may share the
// payload with the handshake response.
func parseHandshake(data []byte) (remaining []byte, response Value, err error) {
	pos := bytes.IndexByte(data, recordSeparator)
	if pos < 0 {
		return nil, Null(), &HandshakeError{Message: "incomplete message received"}
	}
	if err := response.UnmarshalJSON(data[:pos]); err != nil {
		return nil, Null(), &HandshakeError{Message: err.Error()}
	}
	return data[pos+1:], response, nil
}
