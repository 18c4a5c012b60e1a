// Package server implements the wire protocol server: the accept loop, the
// per-connection state machine and the session registry.
//
// The package focuses on:
//   - Driving each connection through its lifecycle (startup, optional
//     authentication, compression negotiation, query exchange, termination)
//   - Streaming query results row by row with socket backpressure as the
//     only flow control
//   - Enforcing the connection ceiling before a socket ever enters the
//     state machine
//
// Key Components:
//   - Server: listener setup (tcp/unix, optional TLS) and the accept loop
//   - connection: single-goroutine protocol state machine per socket
//   - SessionManager: concurrent registry of live connections with a
//     configurable ceiling and diagnostic snapshots
//   - PayloadHistogram: frame size distribution for diagnostics
//
// Query execution, credential storage and token validation are injected
// collaborators; this package never interprets SQL or stores credentials.
package server
