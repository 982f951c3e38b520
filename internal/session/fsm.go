// Package session tracks per-user input modes for the conversational
// front-end: when the UI prompts for a search query, custom freeze days, or a
// city name, the next free-form input belongs to that prompt.
package session

import "sync"

// Mode is a user's current input-wait state.
type Mode int

const (
	Idle Mode = iota
	AwaitingSearchQuery
	AwaitingCustomDays
	AwaitingCity
)

func (m Mode) String() string {
	switch m {
	case AwaitingSearchQuery:
		return "awaiting-search-query"
	case AwaitingCustomDays:
		return "awaiting-custom-days"
	case AwaitingCity:
		return "awaiting-city"
	default:
		return "idle"
	}
}

// FSM holds the input mode per user. Transitions: Idle → Awaiting-X via
// Await; Awaiting-X → Idle via Resolve or Cancel. Any unrelated command
// while awaiting cancels the wait; the input is never swallowed.
type FSM struct {
	mu    sync.Mutex
	modes map[int64]Mode
}

func New() *FSM {
	return &FSM{modes: make(map[int64]Mode)}
}

// Mode returns the user's current mode.
func (f *FSM) Mode(userID int64) Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modes[userID]
}

// Await moves the user into the given wait mode. Entering a new wait while
// one is pending replaces it.
func (f *FSM) Await(userID int64, m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m == Idle {
		delete(f.modes, userID)
		return
	}
	f.modes[userID] = m
}

// Resolve returns the user's wait mode and clears it. Idle means there was
// nothing pending and the input should be treated as a normal capture.
func (f *FSM) Resolve(userID int64) Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.modes[userID]
	delete(f.modes, userID)
	return m
}

// Cancel clears any pending wait.
func (f *FSM) Cancel(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.modes, userID)
}
