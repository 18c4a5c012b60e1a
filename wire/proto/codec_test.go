package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"testing"
)

// testMessages creates one message of every kind with non-trivial payloads
func testMessages() []Message {
	return []Message{
		Startup{
			Version:  ProtocolVersion,
			Mode:     ModeAuthenticated,
			Username: "alice",
			Password: "secret",
			Codecs:   []string{"lz4", "none"},
		},
		Startup{Version: ProtocolVersion, Mode: ModeUnauthenticated},
		AuthRequest{Method: AuthPassword},
		AuthResponse{Credentials: []byte("hunter2")},
		AuthResponse{},
		Query{SQL: "SELECT * FROM users WHERE id = 42"},
		DataRow{Columns: [][]byte{[]byte("1"), []byte("alice"), {}}},
		DataRow{},
		CommandComplete{Tag: "SELECT 3"},
		ErrorResponse{Message: "table not found"},
		ReadyForQuery{Codec: "lz4", Authenticated: true},
		ReadyForQuery{Codec: "none"},
		Termination{},
	}
}

// encodeAll concatenates the frames of all messages into one stream
func encodeAll(t *testing.T, messages []Message) []byte {
	t.Helper()
	var stream []byte
	for i, msg := range messages {
		frame, err := Encode(msg)
		if err != nil {
			t.Fatalf("Failed to encode message %d (%s): %v", i, msg.Kind(), err)
		}
		stream = append(stream, frame...)
	}
	return stream
}

// decodeAll drains a decoder until clean EOF
func decodeAll(dec *Decoder) ([]Message, error) {
	var out []Message
	for {
		msg, err := dec.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
}

// normalize maps a decoded message to a comparable form. Slices encoded from
// nil come back empty and vice versa, so comparisons go through re-encoding.
func reEncode(t *testing.T, msg Message) []byte {
	t.Helper()
	frame, err := Encode(msg)
	if err != nil {
		t.Fatalf("Failed to re-encode %s: %v", msg.Kind(), err)
	}
	return frame
}

// TestRoundTrip checks that every message kind survives encode/decode
func TestRoundTrip(t *testing.T) {
	for _, msg := range testMessages() {
		t.Run(msg.Kind().String(), func(t *testing.T) {
			frame, err := Encode(msg)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			// Header sanity
			if Kind(frame[0]) != msg.Kind() {
				t.Errorf("Frame tag is %q, expected %q", frame[0], byte(msg.Kind()))
			}
			if got := binary.BigEndian.Uint32(frame[1:5]); int(got) != len(frame) {
				t.Errorf("Frame declares length %d, actual length is %d", got, len(frame))
			}

			decoded, err := NewDecoder(bytes.NewReader(frame)).Next()
			if err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if decoded.Kind() != msg.Kind() {
				t.Fatalf("Decoded kind %s, expected %s", decoded.Kind(), msg.Kind())
			}
			if !bytes.Equal(reEncode(t, decoded), frame) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", msg, decoded)
			}
		})
	}
}

// chunkedReader returns at most n bytes per Read call
type chunkedReader struct {
	data []byte
	n    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	limit := r.n
	if limit > len(r.data) {
		limit = len(r.data)
	}
	if limit > len(p) {
		limit = len(p)
	}
	copied := copy(p, r.data[:limit])
	r.data = r.data[copied:]
	return copied, nil
}

// TestPartialReadEquivalence checks that message boundaries never depend on
// read boundaries: a stream split into arbitrarily small reads decodes to
// the same sequence as the unsplit stream.
func TestPartialReadEquivalence(t *testing.T) {
	messages := testMessages()
	stream := encodeAll(t, messages)

	want, err := decodeAll(NewDecoder(bytes.NewReader(stream)))
	if err != nil {
		t.Fatalf("Failed to decode unsplit stream: %v", err)
	}
	if len(want) != len(messages) {
		t.Fatalf("Decoded %d messages, expected %d", len(want), len(messages))
	}

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 16, 64} {
		got, err := decodeAll(NewDecoder(&chunkedReader{data: stream, n: chunkSize}))
		if err != nil {
			t.Fatalf("Failed to decode with %d-byte reads: %v", chunkSize, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Decoding with %d-byte reads produced a different message sequence", chunkSize)
		}
	}
}

// TestUnknownTag checks that an unrecognized tag byte is a frame error
func TestUnknownTag(t *testing.T) {
	frame := []byte{'Z', 0, 0, 0, 5}

	_, err := NewDecoder(bytes.NewReader(frame)).Next()
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected a frame error, got %v", err)
	}
	if fe.Reason != UnknownTag {
		t.Errorf("Expected reason %s, got %s", UnknownTag, fe.Reason)
	}
}

// TestTruncatedStream checks that a stream ending inside a frame is a frame
// error, while ending on a boundary is clean EOF
func TestTruncatedStream(t *testing.T) {
	frame, err := Encode(Query{SQL: "SELECT 1"})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	for cut := 1; cut < len(frame); cut++ {
		_, err := NewDecoder(bytes.NewReader(frame[:cut])).Next()
		var fe *FrameError
		if !errors.As(err, &fe) {
			t.Fatalf("Cut at %d: expected a frame error, got %v", cut, err)
		}
		if fe.Reason != Truncated {
			t.Errorf("Cut at %d: expected reason %s, got %s", cut, Truncated, fe.Reason)
		}
	}

	// Complete frame, then clean EOF
	dec := NewDecoder(bytes.NewReader(frame))
	if _, err := dec.Next(); err != nil {
		t.Fatalf("Failed to decode complete frame: %v", err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF on boundary, got %v", err)
	}
}

// TestLengthMismatch checks the two length failure modes: an impossible
// declared length and a payload the parse doesn't consume exactly
func TestLengthMismatch(t *testing.T) {
	cases := map[string][]byte{
		// Declared length below the header size
		"length below header": {'Q', 0, 0, 0, 2},
		// Query frame declaring 3 payload bytes but the string prefix says 200
		"string prefix past payload": {'Q', 0, 0, 0, 12, 0, 0, 0, 200, 'a', 'b', 'c'},
		// AuthRequest (1 payload byte) declaring 2
		"payload not fully consumed": {'A', 0, 0, 0, 7, 1, 0},
	}

	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(frame)).Next()
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected a frame error, got %v", err)
			}
			if fe.Reason != LengthMismatch {
				t.Errorf("Expected reason %s, got %s", LengthMismatch, fe.Reason)
			}
		})
	}
}

// exactingReader fails the test when a Read requests more bytes than the
// stream still holds. A streaming decompressor behaves like such a request:
// it keeps reading until it can fill the destination, so a decoder that
// over-requests stalls waiting for bytes the peer never sends.
type exactingReader struct {
	t    *testing.T
	data []byte
}

func (r *exactingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) > len(r.data) {
		r.t.Fatalf("Read requested %d bytes with only %d available", len(p), len(r.data))
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// TestReadsStayInsideMessage checks that decoding one message requests no
// bytes past that message: request/response traffic over a compressed
// stream only works if the decoder reads exactly what the peer has flushed
func TestReadsStayInsideMessage(t *testing.T) {
	for _, msg := range testMessages() {
		t.Run(msg.Kind().String(), func(t *testing.T) {
			frame, err := Encode(msg)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			dec := NewDecoder(&exactingReader{t: t, data: frame})
			decoded, err := dec.Next()
			if err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if decoded.Kind() != msg.Kind() {
				t.Errorf("Decoded kind %s, expected %s", decoded.Kind(), msg.Kind())
			}
		})
	}
}

// TestNoReadAhead checks that decoding a frame leaves trailing stream bytes
// untouched: after compression negotiation the bytes following
// ReadyForQuery belong to the compressed layer
func TestNoReadAhead(t *testing.T) {
	first, err := Encode(ReadyForQuery{Codec: "lz4"})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	trailing := []byte("compressed bytes that belong to the next layer")

	src := bytes.NewReader(append(append([]byte{}, first...), trailing...))
	dec := NewDecoder(src)
	if _, err := dec.Next(); err != nil {
		t.Fatalf("Failed to decode first frame: %v", err)
	}
	if got := dec.Buffered(); len(got) != 0 {
		t.Errorf("Decoder buffered %q past the frame boundary", got)
	}
	if src.Len() != len(trailing) {
		t.Errorf("Decoder consumed %d trailing bytes from the stream", len(trailing)-src.Len())
	}
}

// TestStartupCodecLimit checks that a codec list too long for its one-byte
// count is rejected at encode time instead of silently truncated
func TestStartupCodecLimit(t *testing.T) {
	m := Startup{Version: ProtocolVersion, Codecs: make([]string, MaxStartupCodecs+1)}
	for i := range m.Codecs {
		m.Codecs[i] = "none"
	}
	if _, err := Encode(m); !errors.Is(err, ErrTooManyCodecs) {
		t.Fatalf("Expected ErrTooManyCodecs, got %v", err)
	}

	m.Codecs = m.Codecs[:MaxStartupCodecs]
	if _, err := Encode(m); err != nil {
		t.Fatalf("Failed to encode a startup at the codec limit: %v", err)
	}
}
