// Package wire implements the database server's client/server protocol: a
// tagged, length-prefixed frame codec plus the connection machinery that
// speaks it. It is the boundary between the network and the query engine.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by the server and
//     client sides.
//
//   - proto: The frame codec — message variants, encoding and the streaming
//     decoder with frame-level error classification.
//
//   - compress: Compression codec negotiation and streaming lz4 wrapping of
//     an established connection.
//
//   - auth: The authentication strategies (password, token, certificate)
//     and their external collaborator contracts.
//
//   - engine: The query engine boundary — the row stream contract the
//     server pulls results through, plus a trivial echo engine.
//
//   - transport: Stream transport selection (TCP, unix sockets), socket
//     tuning and TLS material loading.
//
//   - server: The accept loop, per-connection protocol state machine and
//     session registry.
//
//   - client: The client side of the protocol for tooling and tests.
package wire
