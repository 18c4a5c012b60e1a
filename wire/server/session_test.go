package server

import (
	"errors"
	"sync"
	"testing"
)

// TestSessionCeiling checks that the connection limit is enforced exactly
// and frees up on unregister
func TestSessionCeiling(t *testing.T) {
	m := NewSessionManager(2)

	first, err := m.Register("10.0.0.1:1111")
	if err != nil {
		t.Fatalf("First register failed: %v", err)
	}
	if _, err := m.Register("10.0.0.2:2222"); err != nil {
		t.Fatalf("Second register failed: %v", err)
	}

	if _, err := m.Register("10.0.0.3:3333"); !errors.Is(err, ErrServerFull) {
		t.Fatalf("Third register returned %v, expected ErrServerFull", err)
	}
	if m.Len() != 2 {
		t.Errorf("Registry holds %d sessions, expected 2", m.Len())
	}

	// Releasing one slot admits the next connection
	m.Unregister(first.ID)
	if _, err := m.Register("10.0.0.3:3333"); err != nil {
		t.Errorf("Register after unregister failed: %v", err)
	}
}

// TestSessionCeilingConcurrent checks that the ceiling is never exceeded
// under concurrent accepts
func TestSessionCeilingConcurrent(t *testing.T) {
	const limit = 16
	const attempts = 100

	m := NewSessionManager(limit)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Register("10.0.0.1:1"); err == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	if count != limit {
		t.Errorf("Admitted %d connections, expected exactly %d", count, limit)
	}
	if m.Len() != limit {
		t.Errorf("Registry holds %d sessions, expected %d", m.Len(), limit)
	}
}

// TestUnlimitedSessions checks that a zero ceiling means no limit
func TestUnlimitedSessions(t *testing.T) {
	m := NewSessionManager(0)
	for i := 0; i < 50; i++ {
		if _, err := m.Register("10.0.0.1:1"); err != nil {
			t.Fatalf("Register %d failed: %v", i, err)
		}
	}
}

// TestSnapshot checks the diagnostic view of the registry
func TestSnapshot(t *testing.T) {
	m := NewSessionManager(0)

	a, _ := m.Register("10.0.0.1:1111")
	b, _ := m.Register("10.0.0.2:2222")

	snapshot := m.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot holds %d entries, expected 2", len(snapshot))
	}
	seen := map[string]bool{}
	for _, info := range snapshot {
		seen[info.RemoteAddr] = true
		if info.Established.IsZero() {
			t.Errorf("Session %s has no established time", info.ID)
		}
	}
	if !seen["10.0.0.1:1111"] || !seen["10.0.0.2:2222"] {
		t.Errorf("Snapshot is missing sessions: %v", seen)
	}

	// Double unregister must not corrupt the count
	m.Unregister(a.ID)
	m.Unregister(a.ID)
	if m.Len() != 1 {
		t.Errorf("Registry holds %d sessions after unregister, expected 1", m.Len())
	}
	m.Unregister(b.ID)
	if m.Len() != 0 {
		t.Errorf("Registry holds %d sessions, expected 0", m.Len())
	}
}
