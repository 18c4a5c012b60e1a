package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"github.com/pulanski/r2db2/wire/common"
)

// ServerTLS builds the server-side TLS configuration from the configured
// material paths. When a client CA bundle is given, client certificates are
// verified if presented; certificate authentication then consumes the
// verification result via PeerAuthenticated.
func ServerTLS(conf common.TLSConf) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(conf.CertFile, conf.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %v", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if conf.ClientCAFile != "" {
		pool, err := loadCertPool(conf.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return cfg, nil
}

// ClientTLS builds the client-side TLS configuration. CertFile/KeyFile
// provide the client certificate for certificate authentication and
// ClientCAFile doubles as the CA bundle used to verify the server.
func ClientTLS(conf common.TLSConf) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if conf.CertFile != "" && conf.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(conf.CertFile, conf.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %v", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if conf.ClientCAFile != "" {
		pool, err := loadCertPool(conf.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// PeerAuthenticated reports whether the connection is TLS and the peer
// presented a certificate that passed verification. This is the only
// identity signal the certificate authentication strategy consumes.
func PeerAuthenticated(conn net.Conn) bool {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return false
	}
	state := tlsConn.ConnectionState()
	return state.HandshakeComplete && len(state.VerifiedChains) > 0
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
