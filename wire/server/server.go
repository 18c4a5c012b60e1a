package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/pulanski/r2db2/wire/auth"
	"github.com/pulanski/r2db2/wire/common"
	"github.com/pulanski/r2db2/wire/compress"
	"github.com/pulanski/r2db2/wire/engine"
	"github.com/pulanski/r2db2/wire/proto"
	"github.com/pulanski/r2db2/wire/transport"
)

var Logger = logger.GetLogger("server")

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server accepts wire protocol connections and drives one state machine per
// connection. Query execution is delegated to the injected engine; credential
// and token validation to the injected collaborators.
type Server struct {
	conf     *common.ServerConfig
	engine   engine.IQueryEngine
	auth     *auth.Authenticator
	sessions *SessionManager
	stats    *PayloadHistogram

	mutex    sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// New validates the configuration and creates a server. The credential store
// is required for password authentication, the token validator for token
// authentication; pass nil for collaborators the configured method doesn't
// use.
func New(conf *common.ServerConfig, eng engine.IQueryEngine,
	store auth.ICredentialStore, tokens auth.ITokenValidator) (*Server, error) {

	if eng == nil {
		return nil, errors.New("server: query engine is required")
	}
	for _, codec := range conf.Codecs {
		if !compress.Supported(codec) {
			return nil, fmt.Errorf("server: unsupported compression codec %q", codec)
		}
	}

	var authenticator *auth.Authenticator
	if conf.Auth.Required || conf.Auth.Method != "" {
		if conf.Auth.AttemptLimit <= 0 {
			// No default on purpose: the operator must choose the limit
			return nil, errors.New("server: authentication requires an explicit attempt limit")
		}
		method, err := ParseAuthMethod(conf.Auth.Method)
		if err != nil {
			return nil, err
		}
		authenticator, err = auth.NewAuthenticator(method, store, tokens)
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		conf:     conf,
		engine:   eng,
		auth:     authenticator,
		sessions: NewSessionManager(conf.MaxConnections),
		stats:    NewPayloadHistogram(),
	}, nil
}

// ParseAuthMethod maps a configuration string to its protocol method byte
func ParseAuthMethod(name string) (proto.AuthMethod, error) {
	switch name {
	case "password":
		return proto.AuthPassword, nil
	case "token":
		return proto.AuthToken, nil
	case "certificate":
		return proto.AuthCertificate, nil
	default:
		return proto.AuthNone, fmt.Errorf("server: unknown authentication method %q", name)
	}
}

// Sessions exposes the live-connection registry for diagnostics
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Stats exposes the payload size histogram for diagnostics
func (s *Server) Stats() *PayloadHistogram {
	return s.stats
}

// --------------------------------------------------------------------------
// Serve loop
// --------------------------------------------------------------------------

// Serve listens on the configured endpoint and accepts connections until
// Close is called or the context is canceled. It blocks the calling
// goroutine.
func (s *Server) Serve(ctx context.Context) error {
	connector := transport.ForEndpoint(s.conf.Transport.Endpoint)
	listener, err := connector.Listen(s.conf.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("server: listen failed: %w", err)
	}

	if s.conf.TLS.Enabled() {
		tlsConf, err := transport.ServerTLS(s.conf.TLS)
		if err != nil {
			listener.Close()
			return err
		}
		listener = tls.NewListener(listener, tlsConf)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		cancel()
		listener.Close()
		return errors.New("server: already closed")
	}
	s.listener = listener
	s.cancel = cancel
	s.mutex.Unlock()

	Logger.Infof("Starting %s wire server on %s (tls=%t)",
		connector.GetName(), s.conf.Transport.Endpoint, s.conf.TLS.Enabled())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				break
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}
		s.handleAccept(ctx, conn)
	}

	s.wg.Wait()
	return nil
}

// handleAccept tunes the fresh socket, admits it against the connection
// ceiling and spawns its serving goroutine
func (s *Server) handleAccept(ctx context.Context, conn net.Conn) {
	if err := transport.Tune(conn, s.conf.Transport); err != nil {
		Logger.Warningf("Failed to tune connection from %s: %v", conn.RemoteAddr(), err)
	}

	info, err := s.sessions.Register(conn.RemoteAddr().String())
	if err != nil {
		// Over the ceiling: one error response, then close. The connection
		// never enters the state machine and is never counted as served.
		Logger.Warningf("Rejecting connection from %s: %v", conn.RemoteAddr(), err)
		if frame, encErr := proto.Encode(proto.ErrorResponse{Message: "server is at capacity"}); encErr == nil {
			_, _ = conn.Write(frame)
		}
		drainAndClose(conn)
		return
	}

	Logger.Infof("Accepted session %s from %s", info.ID, info.RemoteAddr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sessions.Unregister(info.ID)
		newConnection(info, s.conf, conn, s.auth, s.engine, s.stats).serve(ctx)
		Logger.Infof("Session %s closed", info.ID)
	}()
}

// drainAndClose closes a connection whose inbound bytes were never read.
// Closing with the peer's startup bytes still pending makes TCP reset the
// connection and discard the outbound rejection frame, so the write side is
// shut down first and the pending bytes are discarded until the peer closes.
func drainAndClose(conn net.Conn) {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := conn.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _ = io.Copy(io.Discard, conn)
	_ = conn.Close()
}

// Close stops accepting connections and interrupts the serving goroutines.
// Serve returns once all of them have finished.
func (s *Server) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Addr returns the listener address once Serve is running, or nil
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
