package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pulanski/r2db2/wire/common"
)

var Logger = logger.GetLogger("transport")

// --------------------------------------------------------------------------
// Connector interface
// --------------------------------------------------------------------------

// IConnector abstracts the stream transport under a connection: TCP for
// network endpoints, unix domain sockets for local ones.
type IConnector interface {
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// Listen creates a listener on the endpoint
	Listen(endpoint string) (net.Listener, error)

	// Dial establishes a single connection to the endpoint
	Dial(endpoint string, timeout time.Duration) (net.Conn, error)
}

// ForEndpoint selects the connector for an endpoint. Endpoints starting
// with "/" or "unix://" are unix socket paths, everything else is treated
// as a TCP host:port.
func ForEndpoint(endpoint string) IConnector {
	if strings.HasPrefix(endpoint, "unix://") || strings.HasPrefix(endpoint, "/") {
		return &unixConnector{}
	}
	return &tcpConnector{}
}

// --------------------------------------------------------------------------
// TCP connector
// --------------------------------------------------------------------------

type tcpConnector struct{}

func (c *tcpConnector) GetName() string {
	return "tcp"
}

func (c *tcpConnector) Listen(endpoint string) (net.Listener, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}
	return listener, nil
}

func (c *tcpConnector) Dial(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, timeout)
}

// --------------------------------------------------------------------------
// Unix connector
// --------------------------------------------------------------------------

type unixConnector struct{}

func (c *unixConnector) GetName() string {
	return "unix"
}

func (c *unixConnector) Listen(endpoint string) (net.Listener, error) {
	socketPath := strings.TrimPrefix(endpoint, "unix://")

	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %v", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %v", err)
	}
	return listener, nil
}

func (c *unixConnector) Dial(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", strings.TrimPrefix(endpoint, "unix://"), timeout)
}

// --------------------------------------------------------------------------
// Socket tuning
// --------------------------------------------------------------------------

// Tune applies socket settings from the transport configuration to an
// established connection. Settings that don't apply to the connection type
// are skipped.
func Tune(conn net.Conn, conf common.TransportConf) error {
	// TLS wraps the socket; the settings apply to the TCP connection
	// underneath it
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}

	if conf.WriteBufferSize > 0 {
		if c, ok := conn.(interface{ SetWriteBuffer(int) error }); ok {
			if err := c.SetWriteBuffer(conf.WriteBufferSize); err != nil {
				return err
			}
		}
	}
	if conf.ReadBufferSize > 0 {
		if c, ok := conn.(interface{ SetReadBuffer(int) error }); ok {
			if err := c.SetReadBuffer(conf.ReadBufferSize); err != nil {
				return err
			}
		}
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(conf.TCPNoDelay); err != nil {
		return err
	}

	if conf.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(conf.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if conf.TCPLingerSec > 0 {
		if err := tcpConn.SetLinger(conf.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}
