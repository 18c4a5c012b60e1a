// Package proto implements the frame codec for the r2db2 wire protocol.
//
// Every message on the wire is one frame:
//
//	+---------------+-------------------+----------------------------------+
//	| Tag (1 byte)  | Length (4 bytes)  | Payload (variable)               |
//	+---------------+-------------------+----------------------------------+
//
// The length is big-endian and includes the 5-byte header, so for every
// frame length == 5 + len(payload). The ceiling for one frame is 2^31-1
// bytes. Strings inside payloads are length-prefixed (uint32, big-endian)
// UTF-8; there are no null terminators anywhere in the protocol.
//
// Message kinds and their direction:
//
//	| Tag |        Name            | Data Flow         |
//	| --- | ---------------------- | ----------------- |
//	|  S  | Startup                | Client -> Server  |
//	|  A  | AuthenticationRequest  | Server -> Client  |
//	|  p  | AuthenticationResponse | Client -> Server  |
//	|  Q  | Query                  | Client -> Server  |
//	|  D  | DataRow                | Server -> Client  |
//	|  C  | CommandComplete        | Server -> Client  |
//	|  E  | ErrorResponse          | Server -> Client  |
//	|  R  | ReadyForQuery          | Server -> Client  |
//	|  X  | Termination            | Client -> Server  |
//
// The codec has no knowledge of connection state: Encode turns any Message
// into a frame and Decoder turns a byte stream back into messages,
// tolerating arbitrary read fragmentation. Sequencing rules live in the
// server and client packages.
package proto
