// Package compress implements the optional transport compression layer of
// the wire protocol. Compression sits below framing: once a codec is
// negotiated during the handshake, every byte between the socket and the
// frame codec — headers included — flows through the codec's streaming
// (de)compressor.
//
// Negotiation happens exactly once per connection: the client declares the
// codecs it supports in its startup message, the server picks one member of
// that set (or "none") and reports the choice in ReadyForQuery. The
// handshake itself is never compressed; the negotiated codec takes effect
// for every byte after ReadyForQuery.
package compress
