package signalr

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// callbackManager is the pending-invocation table. Ids are monotonically
// increasing integers rendered as decimal strings; an entry lives from the
// moment the invocation is enqueued until the matching completion arrives,
// the connection stops, or the table is cleared.
type callbackManager struct {
	id        atomic.Uint64
	mu        sync.Mutex
	callbacks map[string]func(err error, result Value)
}

func newCallbackManager() *callbackManager {
	return &callbackManager{callbacks: make(map[string]func(error, Value))}
}

// register stores the callback and returns its invocation id.
func (m *callbackManager) register(callback func(err error, result Value)) string {
	id := strconv.FormatUint(m.id.Add(1)-1, 10)

	m.mu.Lock()
	m.callbacks[id] = callback
	m.mu.Unlock()

	return id
}

// invoke runs the callback registered under id, removing it first when
// remove is set. It reports whether a callback was found.
func (m *callbackManager) invoke(id string, err error, result Value, remove bool) bool {
	m.mu.Lock()
	callback, ok := m.callbacks[id]
	if ok && remove {
		delete(m.callbacks, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	callback(err, result)
	return true
}

// remove drops the entry for id, reporting whether one existed. Removal is
// idempotent.
func (m *callbackManager) remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.callbacks[id]; !ok {
		return false
	}
	delete(m.callbacks, id)
	return true
}

// clear completes every outstanding callback exactly once with err and
// empties the table.
func (m *callbackManager) clear(err error) {
	m.mu.Lock()
	callbacks := m.callbacks
	m.callbacks = make(map[string]func(error, Value))
	m.mu.Unlock()

	for _, callback := range callbacks {
		callback(err, Null())
	}
}
