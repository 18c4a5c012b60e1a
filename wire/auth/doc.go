// Package auth implements credential validation for the handshake phase.
//
// The method set is fixed by the protocol: password, token and certificate.
// Password verification is bcrypt-based and deliberately uniform — a missing
// username and a wrong password are indistinguishable from the outside, in
// both response and timing. Token validation delegates to an external
// ITokenValidator (a JWT implementation ships here). Certificate
// authentication consumes only the TLS layer's peer-authenticated boolean;
// this package never inspects certificate bytes.
//
// Rejection reasons stay on the server side. The wire always carries the
// same uniform message, and attempt counting against the configured limit
// is the connection state machine's job.
package auth
