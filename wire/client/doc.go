// Package client implements the wire protocol client side: dialing
// (tcp/unix, optional TLS), the startup handshake with credential challenges
// and compression negotiation, and the query/row-stream exchange.
//
// A Client wraps exactly one connection and is owned by one goroutine; open
// multiple clients for concurrent queries.
package client
