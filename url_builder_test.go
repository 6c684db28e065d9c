package signalr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNegotiateURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://h/", "http://h/negotiate?negotiateVersion=1"},
		{"http://h", "http://h/negotiate?negotiateVersion=1"},
		{"https://h/hub", "https://h/hub/negotiate?negotiateVersion=1"},
		{"http://h/hub?tenant=a", "http://h/hub/negotiate?tenant=a&negotiateVersion=1"},
	}
	for _, c := range cases {
		got, err := buildNegotiateURL(c.base)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "base %s", c.base)
	}
}

func TestBuildConnectURL(t *testing.T) {
	cases := []struct {
		base  string
		token string
		want  string
	}{
		{"http://h/", "X", "ws://h/?id=X"},
		{"https://h/hub", "Y", "wss://h/hub?id=Y"},
		{"http://h/hub?tenant=a", "Z", "ws://h/hub?tenant=a&id=Z"},
		{"http://h/", "", "ws://h/"},
	}
	for _, c := range cases {
		got, err := buildConnectURL(c.base, c.token)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "base %s", c.base)
	}
}

func TestBuildConnectURLEscapesToken(t *testing.T) {
	got, err := buildConnectURL("http://h/", "a b+c")
	require.NoError(t, err)
	assert.Equal(t, "ws://h/?id=a+b%2Bc", got)
}
