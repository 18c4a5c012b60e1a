package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pulanski/r2db2/wire/auth"
	"github.com/pulanski/r2db2/wire/common"
	"github.com/pulanski/r2db2/wire/engine"
	"github.com/pulanski/r2db2/wire/server"
)

// startTestServer runs a server on an ephemeral port and returns its address
func startTestServer(t *testing.T, conf *common.ServerConfig, store auth.ICredentialStore) string {
	t.Helper()
	conf.Transport.Endpoint = "127.0.0.1:0"

	srv, err := server.New(conf, engine.NewEchoEngine(), store, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	go func() {
		// Serve returns nil after Close; a listen failure surfaces as the
		// startup timeout below
		_ = srv.Serve(context.Background())
	}()
	t.Cleanup(func() { _ = srv.Close() })

	for i := 0; i < 100; i++ {
		if addr := srv.Addr(); addr != nil {
			return addr.String()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Server did not start listening")
	return ""
}

func clientConf(endpoint string) *common.ClientConfig {
	return &common.ClientConfig{
		Transport:     common.TransportConf{Endpoint: endpoint},
		TimeoutSecond: 10,
	}
}

// runQuery executes one statement and returns the tag plus collected rows
func runQuery(t *testing.T, c *Client, sql string) (string, [][][]byte) {
	t.Helper()
	var rows [][][]byte
	tag, err := c.Query(context.Background(), sql, func(columns [][]byte) error {
		rows = append(rows, columns)
		return nil
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	return tag, rows
}

// TestClientServerRoundTrip checks the full exchange against the echo engine
// over an uncompressed connection
func TestClientServerRoundTrip(t *testing.T) {
	addr := startTestServer(t, &common.ServerConfig{}, nil)

	c, err := Connect(clientConf(addr))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if c.Codec() != "none" {
		t.Errorf("Negotiated codec %q, expected none", c.Codec())
	}
	if c.Authenticated() {
		t.Error("Session reported authenticated")
	}

	tag, rows := runQuery(t, c, "SELECT 1")
	if tag != "ECHO 1" {
		t.Errorf("Status tag is %q, expected %q", tag, "ECHO 1")
	}
	if len(rows) != 1 || len(rows[0]) != 1 || string(rows[0][0]) != "SELECT 1" {
		t.Errorf("Unexpected rows: %v", rows)
	}
}

// TestLZ4Connection checks that a compressed connection carries the same
// logical messages as an uncompressed one, across multiple queries
func TestLZ4Connection(t *testing.T) {
	addr := startTestServer(t, &common.ServerConfig{Codecs: []string{"lz4"}}, nil)

	conf := clientConf(addr)
	conf.Codecs = []string{"lz4"}
	c, err := Connect(conf)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if c.Codec() != "lz4" {
		t.Fatalf("Negotiated codec %q, expected lz4", c.Codec())
	}

	statements := []string{
		"SELECT 1",
		"SELECT name FROM users WHERE id = 42",
		strings.Repeat("SELECT padding ", 200),
	}
	for _, sql := range statements {
		tag, rows := runQuery(t, c, sql)
		if tag != "ECHO 1" {
			t.Errorf("Status tag is %q, expected %q", tag, "ECHO 1")
		}
		if len(rows) != 1 || string(rows[0][0]) != sql {
			t.Errorf("Echoed row doesn't match statement %q", sql)
		}
	}
}

// TestCodecFallback checks that offering a codec the server doesn't support
// falls back to uncompressed
func TestCodecFallback(t *testing.T) {
	addr := startTestServer(t, &common.ServerConfig{}, nil) // no codecs configured

	conf := clientConf(addr)
	conf.Codecs = []string{"lz4"}
	c, err := Connect(conf)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if c.Codec() != "none" {
		t.Errorf("Negotiated codec %q, expected none", c.Codec())
	}
	if tag, _ := runQuery(t, c, "SELECT 1"); tag != "ECHO 1" {
		t.Errorf("Status tag is %q", tag)
	}
}

// TestPasswordAuthentication checks the authenticated connect path and the
// rejection of bad credentials
func TestPasswordAuthentication(t *testing.T) {
	store, err := auth.NewStaticCredentialStore(map[string]string{"alice": "secret"})
	if err != nil {
		t.Fatalf("Failed to create credential store: %v", err)
	}
	conf := &common.ServerConfig{
		Auth: common.AuthConf{Required: true, Method: "password", AttemptLimit: 1},
	}
	addr := startTestServer(t, conf, store)

	t.Run("valid credentials", func(t *testing.T) {
		cc := clientConf(addr)
		cc.Authenticate = true
		cc.Username = "alice"
		cc.Password = "secret"

		c, err := Connect(cc)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		defer c.Close()

		if !c.Authenticated() {
			t.Error("Session not reported authenticated")
		}
		if tag, _ := runQuery(t, c, "SELECT 1"); tag != "ECHO 1" {
			t.Errorf("Status tag is %q", tag)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		cc := clientConf(addr)
		cc.Authenticate = true
		cc.Username = "alice"
		cc.Password = "wrong"

		if _, err := Connect(cc); err == nil {
			t.Fatal("Connect succeeded with wrong credentials")
		}
	})

	t.Run("unauthenticated mode rejected", func(t *testing.T) {
		if _, err := Connect(clientConf(addr)); err == nil {
			t.Fatal("Connect succeeded without authentication")
		}
	})
}

// TestCapacityRejection checks that a connection above the ceiling is
// rejected with an error before entering the protocol
func TestCapacityRejection(t *testing.T) {
	addr := startTestServer(t, &common.ServerConfig{MaxConnections: 1}, nil)

	first, err := Connect(clientConf(addr))
	if err != nil {
		t.Fatalf("First connect failed: %v", err)
	}
	defer first.Close()

	_, err = Connect(clientConf(addr))
	if err == nil {
		t.Fatal("Second connect succeeded above the ceiling")
	}
	if !strings.Contains(err.Error(), "capacity") {
		t.Errorf("Rejection error is %q, expected a capacity message", err)
	}

	// The occupied connection is unaffected
	if tag, _ := runQuery(t, first, "SELECT 1"); tag != "ECHO 1" {
		t.Errorf("Status tag is %q", tag)
	}
}

// TestCloseIsIdempotent checks that closing twice is safe and a closed
// client refuses further queries
func TestCloseIsIdempotent(t *testing.T) {
	addr := startTestServer(t, &common.ServerConfig{}, nil)

	c, err := Connect(clientConf(addr))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if _, err := c.Query(context.Background(), "SELECT 1", nil); err == nil {
		t.Error("Query succeeded on a closed client")
	}
}
