package signalr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackManagerIDsAreSequentialStrings(t *testing.T) {
	m := newCallbackManager()

	assert.Equal(t, "0", m.register(func(error, Value) {}))
	assert.Equal(t, "1", m.register(func(error, Value) {}))
	assert.Equal(t, "2", m.register(func(error, Value) {}))
}

func TestCallbackManagerInvoke(t *testing.T) {
	m := newCallbackManager()

	var gotErr error
	var gotValue Value
	id := m.register(func(err error, value Value) {
		gotErr = err
		gotValue = value
	})

	require.True(t, m.invoke(id, nil, String("ok"), true))
	assert.NoError(t, gotErr)
	s, err := gotValue.AsString()
	require.NoError(t, err)
	assert.Equal(t, "ok", s)

	// Removed on invoke; a second delivery finds nothing.
	assert.False(t, m.invoke(id, nil, Null(), true))
}

func TestCallbackManagerInvokeKeep(t *testing.T) {
	m := newCallbackManager()

	calls := 0
	id := m.register(func(error, Value) { calls++ })

	require.True(t, m.invoke(id, nil, Null(), false))
	require.True(t, m.invoke(id, nil, Null(), true))
	assert.Equal(t, 2, calls)
}

func TestCallbackManagerRemoveIsIdempotent(t *testing.T) {
	m := newCallbackManager()

	id := m.register(func(error, Value) {})
	assert.True(t, m.remove(id))
	assert.False(t, m.remove(id))
	assert.False(t, m.remove("no-such-id"))
}

func TestCallbackManagerClearCompletesEveryEntryOnce(t *testing.T) {
	m := newCallbackManager()

	clearErr := errors.New("stopped")
	calls := map[string]int{}
	for i := 0; i < 3; i++ {
		var id string
		id = m.register(func(err error, _ Value) {
			assert.Equal(t, clearErr, err)
			calls[id]++
		})
	}

	m.clear(clearErr)
	require.Len(t, calls, 3)
	for id, n := range calls {
		assert.Equal(t, 1, n, "callback %s", id)
	}

	// A second clear finds an empty table.
	m.clear(clearErr)
	for _, n := range calls {
		assert.Equal(t, 1, n)
	}
}
