package auth

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pulanski/r2db2/wire/proto"
)

var Logger = logger.GetLogger("auth")

// --------------------------------------------------------------------------
// Collaborator contracts
// --------------------------------------------------------------------------

// ICredentialStore is the external credential store consulted for password
// authentication. LookupHash returns the stored password hash for a
// username, or ok=false when the user does not exist. Callers must never
// let the two cases produce different externally observable behavior.
type ICredentialStore interface {
	LookupHash(username string) (hash []byte, ok bool)
}

// TokenStatus is the verdict of an external token validator
type TokenStatus int

const (
	TokenValid TokenStatus = iota
	TokenExpired
	TokenInvalid
)

// ITokenValidator is the external token validation collaborator. Any
// validator-side failure is reported as TokenInvalid; clients can't tell a
// broken validator from a bad token.
type ITokenValidator interface {
	Validate(token string) TokenStatus
}

// --------------------------------------------------------------------------
// Validation context and outcome
// --------------------------------------------------------------------------

// Context carries the per-connection facts a strategy may consult. It is
// assembled by the connection state machine; strategies never touch the
// socket or TLS state directly.
type Context struct {
	// Username from the startup message
	Username string
	// RemoteAddr of the peer, for logging only
	RemoteAddr string
	// PeerAuthenticated is the TLS layer's verdict on the client
	// certificate. Certificate authentication consumes only this boolean.
	PeerAuthenticated bool
}

// Reason describes why validation failed. Reasons are logged server-side
// and never sent to the client verbatim; the wire always carries the same
// uniform rejection message.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonBadCredentials
	ReasonExpiredToken
	ReasonPeerNotAuthenticated
	ReasonMethodUnavailable
)

// String returns the name of a rejection reason
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBadCredentials:
		return "bad credentials"
	case ReasonExpiredToken:
		return "expired token"
	case ReasonPeerNotAuthenticated:
		return "peer certificate not authenticated"
	case ReasonMethodUnavailable:
		return "method unavailable"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Authenticator
// --------------------------------------------------------------------------

// Authenticator validates credential responses during the handshake. The
// strategy set is closed — password, token, certificate — so the switch in
// Validate is exhaustive over the methods the protocol defines.
//
// An Authenticator is stateless with respect to any single connection and
// safe for concurrent use; attempt counting lives in the connection.
type Authenticator struct {
	method proto.AuthMethod
	store  ICredentialStore
	tokens ITokenValidator
}

// NewAuthenticator creates an authenticator for the given method. The
// credential store is required for password authentication, the token
// validator for token authentication.
func NewAuthenticator(method proto.AuthMethod, store ICredentialStore, tokens ITokenValidator) (*Authenticator, error) {
	switch method {
	case proto.AuthPassword:
		if store == nil {
			return nil, fmt.Errorf("auth: password method requires a credential store")
		}
	case proto.AuthToken:
		if tokens == nil {
			return nil, fmt.Errorf("auth: token method requires a token validator")
		}
	case proto.AuthCertificate:
		// identity comes from the TLS layer
	default:
		return nil, fmt.Errorf("auth: unsupported method %s", method)
	}

	return &Authenticator{method: method, store: store, tokens: tokens}, nil
}

// Method returns the method this authenticator challenges clients with
func (a *Authenticator) Method() proto.AuthMethod {
	return a.method
}

// Validate checks one credential response. It returns ok=true on success
// and otherwise a reason code for server-side logging.
func (a *Authenticator) Validate(credentials []byte, ctx Context) (bool, Reason) {
	switch a.method {
	case proto.AuthPassword:
		return a.validatePassword(ctx.Username, credentials)
	case proto.AuthToken:
		return a.validateToken(credentials)
	case proto.AuthCertificate:
		if ctx.PeerAuthenticated {
			return true, ReasonNone
		}
		return false, ReasonPeerNotAuthenticated
	default:
		return false, ReasonMethodUnavailable
	}
}

func (a *Authenticator) validateToken(credentials []byte) (bool, Reason) {
	switch a.tokens.Validate(string(credentials)) {
	case TokenValid:
		return true, ReasonNone
	case TokenExpired:
		return false, ReasonExpiredToken
	default:
		return false, ReasonBadCredentials
	}
}
