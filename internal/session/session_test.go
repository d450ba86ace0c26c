package session

import (
	"testing"
	"time"
)

func TestGetDefaultsToMainMenu(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Get(1)
	if s.Mode != ModeMain || s.Awaiting != AwaitNone {
		t.Fatalf("fresh session = %+v", s)
	}
}

func TestSetAndGet(t *testing.T) {
	m := NewManager(time.Minute)
	m.Set(1, Session{Mode: ModeItemManage, Awaiting: AwaitItemText, ReturnTo: ModeItemManage})

	s := m.Get(1)
	if s.Mode != ModeItemManage || s.Awaiting != AwaitItemText || s.ReturnTo != ModeItemManage {
		t.Fatalf("got %+v", s)
	}

	// Other users are unaffected.
	if other := m.Get(2); other != (Session{}) {
		t.Fatalf("other user session = %+v", other)
	}
}

func TestReset(t *testing.T) {
	m := NewManager(time.Minute)
	m.Set(1, Session{Mode: ModeShopping})
	m.Reset(1)
	if s := m.Get(1); s != (Session{}) {
		t.Fatalf("after reset = %+v", s)
	}
}

func TestExpiry(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	m.Set(1, Session{Mode: ModeShopping})

	time.Sleep(20 * time.Millisecond)
	// Force a sweep window.
	m.lastSweep = time.Now().Add(-time.Minute)

	if s := m.Get(1); s != (Session{}) {
		t.Fatalf("expired session survived: %+v", s)
	}
	if len(m.entries) != 0 {
		t.Fatalf("expired entry not evicted, %d left", len(m.entries))
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	m := NewManager(0)
	m.Set(1, Session{Mode: ModeShopping})
	m.lastSweep = time.Now().Add(-time.Hour)

	if s := m.Get(1); s.Mode != ModeShopping {
		t.Fatalf("session expired with zero ttl: %+v", s)
	}
}
