package proto

import (
	"bytes"
	"testing"
)

// benchmarkMessages returns messages spanning the frame-size range
func benchmarkMessages() map[string]Message {
	return map[string]Message{
		"Termination": Termination{},
		"SmallQuery":  Query{SQL: "SELECT 1"},
		"MediumQuery": Query{SQL: "SELECT id, name, email FROM users WHERE created_at > '2026-01-01' ORDER BY id"},
		"Startup": Startup{
			Version:  ProtocolVersion,
			Mode:     ModeAuthenticated,
			Username: "alice",
			Password: "secret",
			Codecs:   []string{"lz4", "none"},
		},
		"SmallRow": DataRow{Columns: [][]byte{[]byte("1"), []byte("alice")}},
		"LargeRow": DataRow{Columns: [][]byte{make([]byte, 1024)}},
		"VeryLargeRow": DataRow{Columns: [][]byte{make([]byte, 16*1024)}},
	}
}

// BenchmarkEncode benchmarks frame encoding across message sizes
func BenchmarkEncode(b *testing.B) {
	for name, msg := range benchmarkMessages() {
		b.Run(name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Encode(msg); err != nil {
					b.Fatalf("Failed to encode: %v", err)
				}
			}
		})
	}
}

// BenchmarkDecode benchmarks frame decoding across message sizes
func BenchmarkDecode(b *testing.B) {
	for name, msg := range benchmarkMessages() {
		frame, err := Encode(msg)
		if err != nil {
			b.Fatalf("Failed to encode: %v", err)
		}

		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(frame)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := NewDecoder(bytes.NewReader(frame)).Next(); err != nil {
					b.Fatalf("Failed to decode: %v", err)
				}
			}
		})
	}
}
