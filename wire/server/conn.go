package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/pulanski/r2db2/wire/auth"
	"github.com/pulanski/r2db2/wire/common"
	"github.com/pulanski/r2db2/wire/compress"
	"github.com/pulanski/r2db2/wire/engine"
	"github.com/pulanski/r2db2/wire/proto"
	"github.com/pulanski/r2db2/wire/transport"
)

var sessionLog = logger.GetLogger("session")

// --------------------------------------------------------------------------
// Connection phases
// --------------------------------------------------------------------------

// Phase is the lifecycle state of one connection
type Phase int

const (
	PhaseAwaitingStartup Phase = iota
	PhaseAwaitingCredentials
	PhaseAuthenticating
	PhaseReady
	PhaseProcessingQuery
	PhaseTerminated
)

// String returns the name of a phase
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingStartup:
		return "AwaitingStartup"
	case PhaseAwaitingCredentials:
		return "AwaitingCredentials"
	case PhaseAuthenticating:
		return "Authenticating"
	case PhaseReady:
		return "Ready"
	case PhaseProcessingQuery:
		return "ProcessingQuery"
	case PhaseTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// errClientClosed signals an orderly termination requested by the client.
// It never reaches the client; it only short-circuits the serve loop.
var errClientClosed = errors.New("client sent termination")

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// connection is the per-socket protocol state machine. Every field is owned
// by the single goroutine running serve; the session manager only ever sees
// the immutable SessionInfo.
type connection struct {
	info  SessionInfo
	conf  *common.ServerConfig
	conn  net.Conn
	dec   *proto.Decoder
	out   compress.StreamWriter
	flush func() error

	auth   *auth.Authenticator
	engine engine.IQueryEngine
	stats  *PayloadHistogram

	phase         Phase
	username      string
	authenticated bool
	codec         string
}

func newConnection(info SessionInfo, conf *common.ServerConfig, conn net.Conn,
	authenticator *auth.Authenticator, eng engine.IQueryEngine, stats *PayloadHistogram) *connection {

	return &connection{
		info:   info,
		conf:   conf,
		conn:   conn,
		dec:    proto.NewDecoder(conn),
		out:    rawWriter{conn},
		flush:  func() error { return nil },
		auth:   authenticator,
		engine: eng,
		stats:  stats,
		phase:  PhaseAwaitingStartup,
		codec:  compress.CodecNone,
	}
}

// rawWriter is the pre-negotiation write path: frames go straight to the
// socket, no codec, no buffering. The handshake is a strict request/response
// exchange so buffering buys nothing there.
type rawWriter struct {
	io.Writer
}

func (rawWriter) Flush() error { return nil }

// --------------------------------------------------------------------------
// Serve loop
// --------------------------------------------------------------------------

// serve drives the connection from accept to termination. It owns the socket
// and always closes it; registry cleanup is the caller's job.
func (c *connection) serve(ctx context.Context) {
	defer c.conn.Close()
	defer func() { c.phase = PhaseTerminated }()

	if err := c.handshake(); err != nil {
		if !errors.Is(err, errClientClosed) {
			sessionLog.Infof("session %s: handshake failed: %v", c.info.ID, err)
			c.reject(err)
		}
		return
	}

	sessionLog.Infof("session %s: ready (user=%q codec=%s authenticated=%t)",
		c.info.ID, c.username, c.codec, c.authenticated)

	for {
		c.phase = PhaseReady
		msg, err := c.readMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		switch m := msg.(type) {
		case proto.Query:
			c.phase = PhaseProcessingQuery
			if err := c.processQuery(ctx, m.SQL); err != nil {
				sessionLog.Errorf("session %s: fatal query failure: %v", c.info.ID, err)
				c.reject(err)
				return
			}
		case proto.Termination:
			sessionLog.Infof("session %s: client terminated", c.info.ID)
			return
		default:
			c.reject(fmt.Errorf("unexpected %s message in %s phase", msg.Kind(), c.phase))
			return
		}
	}
}

// handleReadError maps a failed read to the terminal behavior: malformed
// bytes get a best-effort error response, plain socket failures are closed
// silently.
func (c *connection) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		sessionLog.Infof("session %s: peer closed connection", c.info.ID)
	case proto.IsFrameError(err):
		sessionLog.Warningf("session %s: frame error: %v", c.info.ID, err)
		c.reject(err)
	case isDecompressionError(err):
		sessionLog.Warningf("session %s: %v", c.info.ID, err)
		c.reject(err)
	default:
		// Socket-level failure, the peer is gone: registry cleanup only
		sessionLog.Infof("session %s: read failed: %v", c.info.ID, err)
	}
}

func isDecompressionError(err error) bool {
	var ce *compress.Error
	return errors.As(err, &ce)
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// handshake runs startup, optional authentication and compression
// negotiation, finishing with the ready message. Any returned error is
// connection-fatal.
func (c *connection) handshake() error {
	msg, err := c.readMessage()
	if err != nil {
		return err
	}
	startup, ok := msg.(proto.Startup)
	if !ok {
		if msg.Kind() == proto.KindTermination {
			return errClientClosed
		}
		return fmt.Errorf("expected startup, got %s", msg.Kind())
	}

	if startup.Version != proto.ProtocolVersion {
		return fmt.Errorf("unsupported protocol version %d", startup.Version)
	}
	c.username = startup.Username
	c.codec = compress.Negotiate(startup.Codecs, c.conf.Codecs)

	// The server's mode requirement is authoritative: a client asking for
	// unauthenticated access on a required-auth server is rejected, never
	// silently accepted.
	wantAuth := c.conf.Auth.Required || startup.Mode == proto.ModeAuthenticated
	if c.conf.Auth.Required && startup.Mode == proto.ModeUnauthenticated {
		return errors.New("server requires authentication")
	}
	if wantAuth {
		if c.auth == nil {
			return errors.New("authentication is not available on this server")
		}
		if err := c.authenticate(); err != nil {
			return err
		}
		c.authenticated = true
	}

	if err := c.writeMessage(proto.ReadyForQuery{Codec: c.codec, Authenticated: c.authenticated}); err != nil {
		return err
	}

	// Every byte after the ready message flows through the negotiated codec
	return c.enableCompression()
}

// authenticate runs the challenge loop: request credentials, validate,
// re-challenge on failure until the attempt limit is exhausted.
func (c *connection) authenticate() error {
	limit := c.conf.Auth.AttemptLimit
	peerAuthenticated := transport.PeerAuthenticated(c.conn)

	for attempts := 0; ; {
		c.phase = PhaseAwaitingCredentials
		if err := c.writeMessage(proto.AuthRequest{Method: c.auth.Method()}); err != nil {
			return err
		}

		msg, err := c.readMessage()
		if err != nil {
			return err
		}
		response, ok := msg.(proto.AuthResponse)
		if !ok {
			if msg.Kind() == proto.KindTermination {
				return errClientClosed
			}
			return fmt.Errorf("expected credentials, got %s", msg.Kind())
		}

		c.phase = PhaseAuthenticating
		valid, reason := c.auth.Validate(response.Credentials, auth.Context{
			Username:          c.username,
			RemoteAddr:        c.info.RemoteAddr,
			PeerAuthenticated: peerAuthenticated,
		})
		if valid {
			return nil
		}

		attempts++
		sessionLog.Warningf("session %s: authentication failed for user %q (%s), attempt %d/%d",
			c.info.ID, c.username, reason, attempts, limit)
		if attempts >= limit {
			return errors.New("authentication failed")
		}

		// Uniform rejection regardless of reason, then re-challenge
		if err := c.writeMessage(proto.ErrorResponse{Message: "authentication failed"}); err != nil {
			return err
		}
	}
}

// enableCompression re-layers both stream directions through the negotiated
// codec. Bytes the decoder already pulled off the socket belong to the new
// layer, so they seed the compressed reader.
func (c *connection) enableCompression() error {
	if c.codec == compress.CodecNone {
		return nil
	}

	leftover := c.dec.Buffered()
	src := io.Reader(c.conn)
	if len(leftover) > 0 {
		src = io.MultiReader(bytes.NewReader(leftover), c.conn)
	}
	reader, err := compress.NewReader(c.codec, src)
	if err != nil {
		return err
	}
	writer, err := compress.NewWriter(c.codec, c.conn)
	if err != nil {
		return err
	}

	c.dec = proto.NewDecoder(reader)
	c.out = writer
	c.flush = writer.Flush
	return nil
}

// --------------------------------------------------------------------------
// Frame I/O
// --------------------------------------------------------------------------

// readMessage decodes the next frame, applying the configured socket deadline
func (c *connection) readMessage() (proto.Message, error) {
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return nil, err
	}
	return c.dec.Next()
}

// writeMessage encodes and sends one frame, flushing the codec so the peer
// can make progress after every message
func (c *connection) writeMessage(m proto.Message) error {
	frame, err := proto.Encode(m)
	if err != nil {
		return err
	}
	c.stats.AddSample(len(frame))

	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	if _, err := c.out.Write(frame); err != nil {
		return err
	}
	return c.flush()
}

func (c *connection) deadline() time.Time {
	if c.conf.TimeoutSecond <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(c.conf.TimeoutSecond) * time.Second)
}

// reject makes a best-effort attempt to tell the client why the connection
// is going away. The socket may already be dead; failures are ignored.
func (c *connection) reject(err error) {
	_ = c.writeMessage(proto.ErrorResponse{Message: err.Error()})
}
