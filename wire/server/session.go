package server

import (
	"errors"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrServerFull is returned by Register when the connection ceiling is
// reached. The caller sends one error response and closes the socket; the
// connection never enters the state machine.
var ErrServerFull = errors.New("server: connection limit reached")

// Connection-level counters. The diagnostics collaborator scrapes these
// along with registry snapshots; this package never pushes anywhere.
var (
	connectionsAccepted = metrics.GetOrCreateCounter("r2db2_connections_accepted_total")
	connectionsRejected = metrics.GetOrCreateCounter("r2db2_connections_rejected_total")
	connectionsActive   = metrics.GetOrCreateCounter("r2db2_connections_active")
)

// SessionInfo is the read-only view of one live connection exposed to
// diagnostics
type SessionInfo struct {
	ID          uuid.UUID
	RemoteAddr  string
	Established time.Time
}

// SessionManager tracks the set of live connections and enforces the
// configured ceiling. It is the only process-wide mutable state in the wire
// engine; everything else is owned by exactly one goroutine.
type SessionManager struct {
	max      int64
	active   *xsync.Counter
	sessions *xsync.MapOf[uuid.UUID, SessionInfo]
}

// NewSessionManager creates a session registry with the given connection
// ceiling (0 = unlimited)
func NewSessionManager(maxConnections int) *SessionManager {
	return &SessionManager{
		max:      int64(maxConnections),
		active:   xsync.NewCounter(),
		sessions: xsync.NewMapOf[uuid.UUID, SessionInfo](),
	}
}

// Register admits a new connection, assigning its identifier. It fails with
// ErrServerFull once the ceiling is reached; the counter is reserved before
// the registry insert so the ceiling is never exceeded under concurrent
// accepts.
func (m *SessionManager) Register(remoteAddr string) (SessionInfo, error) {
	m.active.Inc()
	if m.max > 0 && m.active.Value() > m.max {
		m.active.Dec()
		connectionsRejected.Inc()
		return SessionInfo{}, ErrServerFull
	}

	info := SessionInfo{
		ID:          uuid.New(),
		RemoteAddr:  remoteAddr,
		Established: time.Now(),
	}
	m.sessions.Store(info.ID, info)

	connectionsAccepted.Inc()
	connectionsActive.Inc()
	return info, nil
}

// Unregister removes a terminated connection from the registry. Safe to
// call exactly once per registered connection.
func (m *SessionManager) Unregister(id uuid.UUID) {
	if _, ok := m.sessions.LoadAndDelete(id); ok {
		m.active.Dec()
		connectionsActive.Dec()
	}
}

// Len returns the number of live connections
func (m *SessionManager) Len() int {
	return m.sessions.Size()
}

// Snapshot returns a point-in-time view of the live connections. It never
// blocks connection-serving goroutines; entries are copied out of the
// concurrent registry.
func (m *SessionManager) Snapshot() []SessionInfo {
	out := make([]SessionInfo, 0, m.sessions.Size())
	m.sessions.Range(func(_ uuid.UUID, info SessionInfo) bool {
		out = append(out, info)
		return true
	})
	return out
}
