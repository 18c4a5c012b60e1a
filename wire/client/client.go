package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/pulanski/r2db2/wire/common"
	"github.com/pulanski/r2db2/wire/compress"
	"github.com/pulanski/r2db2/wire/proto"
	"github.com/pulanski/r2db2/wire/transport"
)

var Logger = logger.GetLogger("client")

// RowFunc receives one result row during Query. Returning an error aborts
// the stream consumption and poisons the connection.
type RowFunc func(columns [][]byte) error

// QueryError is a statement-level failure reported by the server. The
// connection remains usable after it.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s", e.Message)
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client is a single wire protocol connection. It is not safe for concurrent
// use: the protocol is strictly request/response after the handshake, so one
// goroutine owns the client.
type Client struct {
	conf  *common.ClientConfig
	conn  net.Conn
	dec   *proto.Decoder
	out   compress.StreamWriter
	flush func() error

	codec         string
	authenticated bool
	closed        bool
}

// Connect dials the configured endpoint and runs the handshake through to
// the ready message, answering authentication challenges with the configured
// credentials.
func Connect(conf *common.ClientConfig) (*Client, error) {
	timeout := time.Duration(conf.TimeoutSecond) * time.Second
	connector := transport.ForEndpoint(conf.Transport.Endpoint)

	conn, err := connector.Dial(conf.Transport.Endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s failed: %w", conf.Transport.Endpoint, err)
	}
	if err := transport.Tune(conn, conf.Transport); err != nil {
		Logger.Warningf("Failed to tune connection: %v", err)
	}

	if conf.TLSEnabled {
		tlsConf, err := transport.ClientTLS(conf.TLS)
		if err != nil {
			conn.Close()
			return nil, err
		}
		if host, _, splitErr := net.SplitHostPort(conf.Transport.Endpoint); splitErr == nil {
			tlsConf.ServerName = host
		}
		tlsConn := tls.Client(conn, tlsConf)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("client: TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	c := &Client{
		conf:  conf,
		conn:  conn,
		dec:   proto.NewDecoder(conn),
		out:   passthroughWriter{conn},
		flush: func() error { return nil },
		codec: compress.CodecNone,
	}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

type passthroughWriter struct {
	io.Writer
}

func (passthroughWriter) Flush() error { return nil }

// Codec returns the compression codec negotiated for this connection
func (c *Client) Codec() string {
	return c.codec
}

// Authenticated reports whether the handshake established an authenticated
// session
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

func (c *Client) handshake() error {
	mode := proto.ModeUnauthenticated
	if c.conf.Authenticate {
		mode = proto.ModeAuthenticated
	}

	err := c.writeMessage(proto.Startup{
		Version:  proto.ProtocolVersion,
		Mode:     mode,
		Username: c.conf.Username,
		Password: c.conf.Password,
		Codecs:   c.conf.Codecs,
	})
	if err != nil {
		return err
	}

	// The server may interleave error responses with re-challenges; remember
	// the last one so a closed connection gets a useful error
	var lastErr error
	for {
		msg, err := c.readMessage()
		if err != nil {
			if lastErr != nil && (errors.Is(err, io.EOF) || proto.IsFrameError(err)) {
				return lastErr
			}
			return err
		}

		switch m := msg.(type) {
		case proto.AuthRequest:
			if err := c.answerChallenge(m.Method); err != nil {
				return err
			}
		case proto.ErrorResponse:
			lastErr = fmt.Errorf("client: server rejected handshake: %s", m.Message)
		case proto.ReadyForQuery:
			c.codec = m.Codec
			c.authenticated = m.Authenticated
			return c.enableCompression()
		default:
			return fmt.Errorf("client: unexpected %s message during handshake", msg.Kind())
		}
	}
}

// answerChallenge sends the configured credential for the requested method
func (c *Client) answerChallenge(method proto.AuthMethod) error {
	var credentials []byte
	switch method {
	case proto.AuthPassword:
		credentials = []byte(c.conf.Password)
	case proto.AuthToken:
		credentials = []byte(c.conf.Token)
	case proto.AuthCertificate:
		// Identity travels in the TLS layer; the response is empty
	default:
		return fmt.Errorf("client: server requested unsupported auth method %s", method)
	}
	return c.writeMessage(proto.AuthResponse{Credentials: credentials})
}

// enableCompression re-layers the connection through the codec the server
// confirmed. Bytes the decoder already buffered belong to the new layer.
func (c *Client) enableCompression() error {
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
// Query exchange
// --------------------------------------------------------------------------

// Query executes one statement and streams the result rows to fn as they
// arrive. It returns the server's status tag (e.g. "SELECT 3") on success.
// A *QueryError leaves the connection usable; any other error poisons it.
func (c *Client) Query(ctx context.Context, sql string, fn RowFunc) (string, error) {
	if c.closed {
		return "", errors.New("client: connection closed")
	}
	if err := c.writeMessage(proto.Query{SQL: sql}); err != nil {
		return "", err
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		msg, err := c.readMessage()
		if err != nil {
			return "", err
		}

		switch m := msg.(type) {
		case proto.DataRow:
			if fn != nil {
				if err := fn(m.Columns); err != nil {
					return "", err
				}
			}
		case proto.CommandComplete:
			return m.Tag, nil
		case proto.ErrorResponse:
			return "", &QueryError{Message: m.Message}
		default:
			return "", fmt.Errorf("client: unexpected %s message during query", msg.Kind())
		}
	}
}

// Close sends a termination message (best effort) and closes the socket
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.writeMessage(proto.Termination{})
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Frame I/O
// --------------------------------------------------------------------------

func (c *Client) readMessage() (proto.Message, error) {
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return nil, err
	}
	return c.dec.Next()
}

func (c *Client) writeMessage(m proto.Message) error {
	frame, err := proto.Encode(m)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	if _, err := c.out.Write(frame); err != nil {
		return err
	}
	return c.flush()
}

func (c *Client) deadline() time.Time {
	if c.conf.TimeoutSecond <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(c.conf.TimeoutSecond) * time.Second)
}
