package signalr

// Binary hub frames carry a VarInt length prefix: 7 bits of length per byte,
// least significant bits first, the high bit marking a continuation. Five
// bytes encode at most 2^31-1, the largest message either side accepts.

const maxLengthPrefixBytes = 5

// appendLengthPrefix appends the VarInt encoding of length to dst.
func appendLengthPrefix(dst []byte, length int) ([]byte, error) {
	n := 0
	remaining := uint64(length)
	for {
		b := byte(remaining & 0x7f)
		remaining >>= 7
		if remaining > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		n++
		if remaining == 0 || n == maxLengthPrefixBytes {
			break
		}
	}
	if n == maxLengthPrefixBytes && dst[len(dst)-1] > 0x07 {
		return nil, &ProtocolError{Message: "messages over 2GB are not supported."}
	}
	return dst, nil
}

// parseLengthPrefix reads the VarInt prefix at the start of data. ok is
// false when data is empty; a complete prefix with a short body and a prefix
// that is itself truncated both fail with the partial-message error.
func parseLengthPrefix(data []byte) (prefixLen int, messageLen int, ok bool, err error) {
	if len(data) == 0 {
		return 0, 0, false, nil
	}

	available := len(data)
	if available > maxLengthPrefixBytes {
		available = maxLengthPrefixBytes
	}

	var length uint64
	n := 0
	var b byte
	for {
		b = data[n]
		length |= uint64(b&0x7f) << (n * 7)
		n++
		if n >= available || b&0x80 == 0 {
			break
		}
	}

	if b&0x80 != 0 && n < maxLengthPrefixBytes {
		return 0, 0, false, &ProtocolError{Message: "partial messages are not supported."}
	}
	if b&0x80 != 0 || (n == maxLengthPrefixBytes && b > 7) {
		return 0, 0, false, &ProtocolError{Message: "messages over 2GB are not supported."}
	}
	if uint64(len(data)) < length+uint64(n) {
		return 0, 0, false, &ProtocolError{Message: "partial messages are not supported."}
	}

	return n, int(length), true, nil
}
