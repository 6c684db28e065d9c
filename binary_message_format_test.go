package signalr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthPrefixRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 0x35, 0x7f, 0x80, 5248, 1 << 14, 1<<31 - 1} {
		prefix, err := appendLengthPrefix(nil, size)
		require.NoError(t, err)
		require.LessOrEqual(t, len(prefix), maxLengthPrefixBytes)

		// A synthetic payload long enough to satisfy the parser for small
		// sizes; huge sizes are validated prefix-only below.
		if size <= 1<<14 {
			data := append(prefix, make([]byte, size)...)
			prefixLen, messageLen, ok, err := parseLengthPrefix(data)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, len(prefix), prefixLen)
			assert.Equal(t, size, messageLen)
		}
	}
}

func TestLengthPrefixKnownEncodings(t *testing.T) {
	prefix, err := appendLengthPrefix(nil, 0x35)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x35}, prefix)

	prefix, err = appendLengthPrefix(nil, 5248)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x29}, prefix)
}

func TestLengthPrefixEmptyBody(t *testing.T) {
	prefix, err := appendLengthPrefix(nil, 0)
	require.NoError(t, err)

	body := []byte{}
	prefixLen, messageLen, ok, err := parseLengthPrefix(append(prefix, body...))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, prefixLen)
	assert.Equal(t, 0, messageLen)
}

func TestParseLengthPrefixEmptyInput(t *testing.T) {
	_, _, ok, err := parseLengthPrefix(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseLengthPrefixPartialMessages(t *testing.T) {
	// Prefix claims 5 bytes, body carries 2.
	_, _, _, err := parseLengthPrefix([]byte{0x05, 0x01, 0x02})
	require.ErrorContains(t, err, "partial messages are not supported.")

	// Continuation bit set but the prefix itself is cut short.
	_, _, _, err = parseLengthPrefix([]byte{0x80})
	require.ErrorContains(t, err, "partial messages are not supported.")
}

func TestParseLengthPrefixOversizedMessage(t *testing.T) {
	// Five bytes with the last byte above 7 encode more than 2^31-1.
	_, _, _, err := parseLengthPrefix([]byte{0xff, 0xff, 0xff, 0xff, 0x08})
	require.ErrorContains(t, err, "messages over 2GB are not supported.")

	// Continuation bit still set on the fifth byte.
	_, _, _, err = parseLengthPrefix([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	require.ErrorContains(t, err, "messages over 2GB are not supported.")
}

func TestLengthPrefixMatchesParser(t *testing.T) {
	body := bytes.Repeat([]byte{0xab}, 300)
	framed, err := appendLengthPrefix(nil, len(body))
	require.NoError(t, err)
	framed = append(framed, body...)

	prefixLen, messageLen, ok, err := parseLengthPrefix(framed)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, body, framed[prefixLen:prefixLen+messageLen])
}
