package compress

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Codec names as they appear in the startup negotiation
const (
	CodecNone = "none"
	CodecLZ4  = "lz4"
)

// Supported reports whether name is a codec this build can speak
func Supported(name string) bool {
	return name == CodecNone || name == CodecLZ4
}

// Negotiate picks the codec for a connection: the first server-supported
// member of the client's declared set, or "none" when the sets don't
// intersect. The result is always a member of the declared set or "none",
// so a server can never force a codec onto a client that didn't offer it.
func Negotiate(declared, supported []string) string {
	for _, want := range declared {
		if want == CodecNone {
			continue
		}
		for _, have := range supported {
			if want == have {
				return want
			}
		}
	}
	return CodecNone
}

// --------------------------------------------------------------------------
// Decompression error
// --------------------------------------------------------------------------

// Error reports a corrupt compressed stream. It is distinct from a frame
// error: the bytes were unreadable before framing ever saw them. Always
// connection-fatal.
type Error struct {
	Codec string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compress: %s stream corrupt: %v", e.Codec, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// --------------------------------------------------------------------------
// Stream wrapping
// --------------------------------------------------------------------------

// StreamWriter is the write half of a negotiated codec. Flush pushes any
// buffered compressed block down to the underlying writer so the peer can
// make progress; it is called once per outbound message.
type StreamWriter interface {
	io.Writer
	Flush() error
}

// NewReader wraps r in the named codec's streaming decompressor. For
// CodecNone the reader is returned unchanged. Decompression failures
// surface as *Error; I/O failures of the underlying reader pass through
// untouched.
func NewReader(name string, r io.Reader) (io.Reader, error) {
	switch name {
	case CodecNone:
		return r, nil
	case CodecLZ4:
		src := &trackingReader{r: r}
		return &lz4Reader{src: src, lz: lz4.NewReader(src)}, nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %q", name)
	}
}

// NewWriter wraps w in the named codec's streaming compressor. For
// CodecNone the writer passes bytes through with a no-op Flush.
func NewWriter(name string, w io.Writer) (StreamWriter, error) {
	switch name {
	case CodecNone:
		return nopFlusher{w}, nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %q", name)
	}
}

// nopFlusher adapts a plain writer to the StreamWriter interface
type nopFlusher struct {
	io.Writer
}

func (nopFlusher) Flush() error { return nil }

// --------------------------------------------------------------------------
// lz4 reader with error classification
// --------------------------------------------------------------------------

// trackingReader remembers the last error produced by the underlying
// stream. The lz4 reader folds its source's errors into its own; tracking
// the source separately lets us tell a corrupt stream (fatal decompression
// error) apart from a plain socket failure.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

type lz4Reader struct {
	src *trackingReader
	lz  *lz4.Reader
}

func (r *lz4Reader) Read(p []byte) (int, error) {
	n, err := r.lz.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	if r.src.err != nil {
		// The source failed, not the codec
		return n, r.src.err
	}
	return n, &Error{Codec: CodecLZ4, Err: err}
}
