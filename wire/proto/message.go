package proto

// --------------------------------------------------------------------------
// Protocol constants
// --------------------------------------------------------------------------

const (
	// ProtocolVersion is carried in the first payload byte of every startup
	// message. The server rejects clients speaking a different version.
	ProtocolVersion byte = 1

	// HeaderLength is the fixed frame header size: 1 tag byte plus a 4 byte
	// big-endian total length (header included).
	HeaderLength = 5

	// MaxMessageLength is the protocol ceiling for one frame, header
	// included. Encoding a message past it is a fatal encode error.
	MaxMessageLength = 1<<31 - 1

	// MaxStartupCodecs is the most codecs one startup message can declare;
	// the list length is carried in a single byte.
	MaxStartupCodecs = 255
)

// --------------------------------------------------------------------------
// Message kinds (wire tags)
// --------------------------------------------------------------------------

// Kind is the 1-byte tag identifying a protocol message on the wire
type Kind byte

const (
	KindStartup         Kind = 'S' // client -> server, opens the handshake
	KindAuthRequest     Kind = 'A' // server -> client, credential challenge
	KindAuthResponse    Kind = 'p' // client -> server, credential bytes
	KindQuery           Kind = 'Q' // client -> server, SQL text
	KindDataRow         Kind = 'D' // server -> client, one result row
	KindCommandComplete Kind = 'C' // server -> client, terminal status tag
	KindError           Kind = 'E' // server -> client, error message
	KindReadyForQuery   Kind = 'R' // server -> client, handshake complete
	KindTermination     Kind = 'X' // client -> server, closes the connection
)

// String returns the name of a message kind
func (k Kind) String() string {
	switch k {
	case KindStartup:
		return "Startup"
	case KindAuthRequest:
		return "AuthenticationRequest"
	case KindAuthResponse:
		return "AuthenticationResponse"
	case KindQuery:
		return "Query"
	case KindDataRow:
		return "DataRow"
	case KindCommandComplete:
		return "CommandComplete"
	case KindError:
		return "ErrorResponse"
	case KindReadyForQuery:
		return "ReadyForQuery"
	case KindTermination:
		return "Termination"
	default:
		return "Unknown"
	}
}

func validKind(b byte) bool {
	switch Kind(b) {
	case KindStartup, KindAuthRequest, KindAuthResponse, KindQuery,
		KindDataRow, KindCommandComplete, KindError, KindReadyForQuery,
		KindTermination:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Handshake enums
// --------------------------------------------------------------------------

// Mode is the connection mode a client requests in its startup message.
// The server's configuration is authoritative; this is a request only.
type Mode byte

const (
	ModeUnauthenticated Mode = 0
	ModeAuthenticated   Mode = 1
)

// String returns the name of a mode
func (m Mode) String() string {
	switch m {
	case ModeUnauthenticated:
		return "unauthenticated"
	case ModeAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthMethod is the method byte carried in an AuthenticationRequest
type AuthMethod byte

const (
	AuthNone        AuthMethod = 0
	AuthPassword    AuthMethod = 1
	AuthToken       AuthMethod = 2
	AuthCertificate AuthMethod = 3
)

// String returns the name of an authentication method
func (m AuthMethod) String() string {
	switch m {
	case AuthNone:
		return "none"
	case AuthPassword:
		return "password"
	case AuthToken:
		return "token"
	case AuthCertificate:
		return "certificate"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Message variants
// --------------------------------------------------------------------------

// Message is the closed set of protocol messages. The unexported marshal
// method keeps the variant set fixed to the kinds the protocol defines, so
// codec switches stay exhaustive.
type Message interface {
	// Kind returns the wire tag of the message
	Kind() Kind

	// appendPayload appends the tag-specific payload bytes to buf
	appendPayload(buf []byte) []byte
}

// Startup is the first message on every connection. It carries the protocol
// version, the requested connection mode, the username, an optional password
// and the compression codecs the client supports.
//
// The password field exists so clients can hand their credential to the
// server in one round trip; the server still always challenges via
// AuthenticationRequest, and clients answer with the same credential.
type Startup struct {
	Version  byte
	Mode     Mode
	Username string
	Password string
	Codecs   []string
}

// AuthRequest asks the client to provide credentials for the given method
type AuthRequest struct {
	Method AuthMethod
}

// AuthResponse carries the raw credential bytes for the requested method:
// the password for AuthPassword, the token for AuthToken, and an empty
// payload for AuthCertificate (identity is established by the TLS layer).
type AuthResponse struct {
	Credentials []byte
}

// Query carries one SQL statement to execute
type Query struct {
	SQL string
}

// DataRow carries one result row. Column values are opaque byte payloads at
// this layer; value encoding is the query engine's business.
type DataRow struct {
	Columns [][]byte
}

// CommandComplete terminates a result stream with a status tag such as
// "SELECT 3"
type CommandComplete struct {
	Tag string
}

// ErrorResponse reports an error to the client
type ErrorResponse struct {
	Message string
}

// ReadyForQuery completes the handshake. It echoes the negotiated
// compression codec and whether the connection is authenticated; every byte
// after this message flows through the negotiated codec.
type ReadyForQuery struct {
	Codec         string
	Authenticated bool
}

// Termination closes the connection. It has no payload.
type Termination struct{}

func (Startup) Kind() Kind         { return KindStartup }
func (AuthRequest) Kind() Kind     { return KindAuthRequest }
func (AuthResponse) Kind() Kind    { return KindAuthResponse }
func (Query) Kind() Kind           { return KindQuery }
func (DataRow) Kind() Kind         { return KindDataRow }
func (CommandComplete) Kind() Kind { return KindCommandComplete }
func (ErrorResponse) Kind() Kind   { return KindError }
func (ReadyForQuery) Kind() Kind   { return KindReadyForQuery }
func (Termination) Kind() Kind     { return KindTermination }

func (m Startup) appendPayload(buf []byte) []byte {
	buf = append(buf, m.Version, byte(m.Mode))
	buf = appendString(buf, m.Username)
	buf = appendString(buf, m.Password)
	buf = append(buf, byte(len(m.Codecs)))
	for _, c := range m.Codecs {
		buf = appendString(buf, c)
	}
	return buf
}

func (m AuthRequest) appendPayload(buf []byte) []byte {
	return append(buf, byte(m.Method))
}

func (m AuthResponse) appendPayload(buf []byte) []byte {
	return appendBytes(buf, m.Credentials)
}

func (m Query) appendPayload(buf []byte) []byte {
	return appendString(buf, m.SQL)
}

func (m DataRow) appendPayload(buf []byte) []byte {
	buf = appendUint32(buf, uint32(len(m.Columns)))
	for _, col := range m.Columns {
		buf = appendBytes(buf, col)
	}
	return buf
}

func (m CommandComplete) appendPayload(buf []byte) []byte {
	return appendString(buf, m.Tag)
}

func (m ErrorResponse) appendPayload(buf []byte) []byte {
	return appendString(buf, m.Message)
}

func (m ReadyForQuery) appendPayload(buf []byte) []byte {
	buf = appendString(buf, m.Codec)
	if m.Authenticated {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func (Termination) appendPayload(buf []byte) []byte {
	return buf
}
