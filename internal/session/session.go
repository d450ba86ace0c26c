// Package session tracks the ephemeral per-user conversation state: which
// menu mode is active and which single-shot input, if any, the next text
// message is expected to answer. State is not persisted and is lost on
// restart.
package session

import (
	"sync"
	"time"
)

// Mode is the top-level UI context a user is in.
type Mode int

const (
	ModeMain Mode = iota
	ModeListManage
	ModeItemManage
	ModeShopping
)

// Awaiting is a single-shot expectation for the user's next text input. At
// most one can be pending; entering any mode clears it.
type Awaiting int

const (
	AwaitNone Awaiting = iota
	AwaitItemText
	AwaitListName
	AwaitListSwitch
	AwaitListDelete
	AwaitMarkDone
	AwaitRemove
)

// Session is one user's conversational state. ReturnTo records the mode a
// resolved or cancelled prompt hands control back to; it only matters for
// prompts issued from inside the management modes.
type Session struct {
	Mode     Mode
	Awaiting Awaiting
	ReturnTo Mode
}

type entry struct {
	session Session
	seen    time.Time
}

// Manager holds sessions keyed by user id. Entries idle longer than the
// TTL are evicted during normal access, so the map stays bounded over the
// process lifetime.
type Manager struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[int64]*entry
	lastSweep time.Time
}

func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:       ttl,
		entries:   make(map[int64]*entry),
		lastSweep: time.Now(),
	}
}

// Get returns the user's session, zero-valued (main menu, nothing awaited)
// when none exists.
func (m *Manager) Get(userID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	if e, ok := m.entries[userID]; ok {
		e.seen = time.Now()
		return e.session
	}
	return Session{}
}

// Set stores the user's session and refreshes its expiry.
func (m *Manager) Set(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	m.entries[userID] = &entry{session: s, seen: time.Now()}
}

// Reset drops the user back to the main menu with nothing awaited.
func (m *Manager) Reset(userID int64) {
	m.Set(userID, Session{})
}

// sweepLocked evicts expired entries at most once per quarter TTL.
func (m *Manager) sweepLocked() {
	if m.ttl <= 0 {
		return
	}
	now := time.Now()
	if now.Sub(m.lastSweep) < m.ttl/4 {
		return
	}
	m.lastSweep = now
	for id, e := range m.entries {
		if now.Sub(e.seen) > m.ttl {
			delete(m.entries, id)
		}
	}
}
