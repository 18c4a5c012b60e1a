// Package transport provides the stream transports the protocol engine runs
// on: TCP and unix domain sockets, selected by endpoint syntax, plus socket
// tuning and TLS configuration helpers. The protocol layers above are
// transport-agnostic; they only ever see a net.Conn.
package transport
