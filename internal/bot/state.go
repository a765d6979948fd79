package bot

import "sync"

// chatState tracks where a chat is in a multi-message conversation.
type chatState int

const (
	stateNone chatState = iota
	// stateAwaitingQuery means /info was issued and the next plain message
	// is treated as a session search query.
	stateAwaitingQuery
)

// stateManager holds per-chat conversation state. All access is through
// the methods; the zero value is not usable, use newStateManager.
type stateManager struct {
	mu     sync.RWMutex
	states map[int64]chatState
}

func newStateManager() *stateManager {
	return &stateManager{states: make(map[int64]chatState)}
}

func (m *stateManager) get(chatID int64) chatState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[chatID]
}

func (m *stateManager) set(chatID int64, st chatState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == stateNone {
		delete(m.states, chatID)
		return
	}
	m.states[chatID] = st
}

func (m *stateManager) clear(chatID int64) { m.set(chatID, stateNone) }
