package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport configuration
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by all stream transports
type SocketConf struct {
	// WriteBufferSize is the socket write buffer size in bytes (0 = OS default)
	WriteBufferSize int
	// ReadBufferSize is the socket read buffer size in bytes (0 = OS default)
	ReadBufferSize int
}

// TCPConf holds TCP-specific socket settings (ignored for unix sockets)
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConf bundles the endpoint with its socket tuning parameters.
// An endpoint starting with "/" or "unix://" selects a unix socket,
// everything else is treated as a TCP host:port.
type TransportConf struct {
	Endpoint string
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// TLS configuration
// --------------------------------------------------------------------------

// TLSConf points to the TLS material on disk. TLS is enabled when both
// CertFile and KeyFile are set. ClientCAFile enables client certificate
// verification, which certificate authentication depends on.
type TLSConf struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// Enabled reports whether the server should wrap its listener in TLS
func (c TLSConf) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// --------------------------------------------------------------------------
// Authentication configuration
// --------------------------------------------------------------------------

// AuthConf controls the handshake's authentication phase.
//
// AttemptLimit has no default on purpose: when Required is set the caller
// must choose a limit explicitly, otherwise server construction fails.
type AuthConf struct {
	// Required forces every client through the authentication phase. A client
	// requesting unauthenticated mode against a required-auth server is
	// rejected and disconnected.
	Required bool
	// Method is the authentication method the server challenges with
	// (password, token or certificate)
	Method string
	// AttemptLimit is the number of consecutive failed authentication
	// attempts after which the connection is terminated
	AttemptLimit int
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the wire protocol server
type ServerConfig struct {
	Transport TransportConf
	TLS       TLSConf
	Auth      AuthConf

	// Codecs lists the compression codecs the server is willing to negotiate
	// (subset of "none", "lz4"). "none" is always implicitly supported.
	Codecs []string

	// MaxConnections is the connection ceiling. A connection accepted while
	// the ceiling is reached gets an error response and is closed before it
	// enters the protocol state machine.
	MaxConnections int

	// TimeoutSecond is the per-read/write socket deadline (0 = none)
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Wire Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Max Connections", strconv.Itoa(c.MaxConnections))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Compression Codecs", strings.Join(c.Codecs, ", "))

	addSection("Authentication")
	addField("Required", strconv.FormatBool(c.Auth.Required))
	if c.Auth.Required {
		addField("Method", c.Auth.Method)
		addField("Attempt Limit", strconv.Itoa(c.Auth.AttemptLimit))
	}

	addSection("TLS")
	addField("Enabled", strconv.FormatBool(c.TLS.Enabled()))
	if c.TLS.Enabled() {
		addField("Certificate", c.TLS.CertFile)
		addField("Key", c.TLS.KeyFile)
		if c.TLS.ClientCAFile != "" {
			addField("Client CA", c.TLS.ClientCAFile)
		}
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the connection parameters for the wire protocol client
type ClientConfig struct {
	Transport TransportConf

	// Authenticate requests authenticated mode in the startup exchange
	Authenticate bool
	// Username/Password are used for password authentication. The username
	// travels in the startup message, the password answers the server's
	// credential challenge.
	Username string
	Password string
	// Token answers a token authentication challenge
	Token string

	// Codecs is the set of compression codecs the client declares support for
	Codecs []string

	// TLS enables a TLS client connection. CertFile/KeyFile provide the
	// client certificate for certificate authentication, ClientCAFile is
	// reused as the CA bundle to verify the server.
	TLS        TLSConf
	TLSEnabled bool

	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Authenticate", strconv.FormatBool(c.Authenticate))
	if c.Username != "" {
		addField("Username", c.Username)
	}
	addField("Compression Codecs", strings.Join(c.Codecs, ", "))
	addField("TLS", strconv.FormatBool(c.TLSEnabled))

	return sb.String()
}
