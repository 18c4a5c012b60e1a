package proto

import (
	"encoding/binary"
	"io"
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode serializes a message into one complete frame: tag byte, total
// length (big-endian, header included) and the tag-specific payload.
// It fails with ErrPayloadTooLarge if the frame would exceed the protocol
// ceiling and ErrTooManyCodecs if a startup's codec list doesn't fit its
// one-byte length.
func Encode(m Message) ([]byte, error) {
	if s, ok := m.(Startup); ok && len(s.Codecs) > MaxStartupCodecs {
		return nil, ErrTooManyCodecs
	}

	buf := make([]byte, HeaderLength, HeaderLength+32)
	buf = m.appendPayload(buf)

	if len(buf) > MaxMessageLength {
		return nil, ErrPayloadTooLarge
	}

	buf[0] = byte(m.Kind())
	binary.BigEndian.PutUint32(buf[1:HeaderLength], uint32(len(buf)))
	return buf, nil
}

// appendUint32 appends a big-endian uint32
func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// appendBytes appends a length-prefixed byte slice
func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// appendString appends a length-prefixed UTF-8 string
func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

const readChunkSize = 4 * 1024

// Decoder turns a byte stream into protocol messages. It buffers reads
// internally, so a message may span any number of reads and one read may
// carry any number of messages; message boundaries never depend on read
// boundaries.
//
// A Decoder is owned by a single goroutine. After any error other than
// io.EOF the stream position is undefined and the Decoder must not be
// reused.
type Decoder struct {
	r     io.Reader
	buf   []byte
	start int // read offset into buf
	chunk []byte
}

// NewDecoder creates a decoder reading frames from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Buffered returns the bytes read from the stream but not yet consumed by
// Next. The caller uses this when re-layering the stream (compression
// negotiation): bytes already pulled off the socket belong to the new layer.
func (d *Decoder) Buffered() []byte {
	return d.buf[d.start:]
}

// Next decodes the next complete message, reading more bytes as needed.
// It returns io.EOF when the stream closes cleanly on a message boundary
// and a FrameError when the byte stream is malformed.
func (d *Decoder) Next() (Message, error) {
	// Header first: tag byte plus declared total length
	if err := d.want(HeaderLength); err != nil {
		return nil, err
	}
	avail := d.buf[d.start:]

	if !validKind(avail[0]) {
		return nil, frameErrorf(UnknownTag, "tag 0x%02x", avail[0])
	}
	kind := Kind(avail[0])

	length := int(int32(binary.BigEndian.Uint32(avail[1:HeaderLength])))
	if length < HeaderLength || length > MaxMessageLength {
		return nil, frameErrorf(LengthMismatch, "%s declares length %d", kind, length)
	}

	// Wait for the declared byte count before parsing the payload
	if err := d.want(length); err != nil {
		return nil, err
	}

	payload := d.buf[d.start+HeaderLength : d.start+length]
	msg, err := unmarshalPayload(kind, payload)
	if err != nil {
		return nil, err
	}

	d.start += length
	return msg, nil
}

// want reads until at least n unconsumed bytes are buffered. Reads never
// request more than the missing byte count: the stream may come out of a
// decompressor that blocks until it can fill the destination buffer, and
// bytes past the current message may not have been sent yet.
func (d *Decoder) want(n int) error {
	for len(d.buf)-d.start < n {
		// Compact before growing so consumed bytes don't pile up
		if d.start > 0 && d.start == len(d.buf) {
			d.buf = d.buf[:0]
			d.start = 0
		} else if d.start > readChunkSize {
			d.buf = append(d.buf[:0], d.buf[d.start:]...)
			d.start = 0
		}

		need := n - (len(d.buf) - d.start)
		if need > len(d.chunk) {
			need = len(d.chunk)
		}
		read, err := d.r.Read(d.chunk[:need])
		if read > 0 {
			d.buf = append(d.buf, d.chunk[:read]...)
			continue
		}
		if err == nil {
			continue
		}
		if err == io.EOF {
			if len(d.buf) == d.start {
				// Clean close on a message boundary
				return io.EOF
			}
			return frameErrorf(Truncated, "stream closed with %d buffered bytes", len(d.buf)-d.start)
		}
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Payload parsing
// --------------------------------------------------------------------------

// payloadReader walks a payload slice and tracks how many bytes the
// tag-specific parse consumed, so length accounting can be verified against
// the frame header.
type payloadReader struct {
	data []byte
	pos  int
	bad  bool
}

func (p *payloadReader) u8() byte {
	if p.pos+1 > len(p.data) {
		p.bad = true
		return 0
	}
	v := p.data[p.pos]
	p.pos++
	return v
}

func (p *payloadReader) u32() uint32 {
	if p.pos+4 > len(p.data) {
		p.bad = true
		return 0
	}
	v := binary.BigEndian.Uint32(p.data[p.pos : p.pos+4])
	p.pos += 4
	return v
}

func (p *payloadReader) bytes() []byte {
	n := int(p.u32())
	if p.bad || p.pos+n > len(p.data) {
		p.bad = true
		return nil
	}
	v := make([]byte, n)
	copy(v, p.data[p.pos:p.pos+n])
	p.pos += n
	return v
}

func (p *payloadReader) str() string {
	return string(p.bytes())
}

// done reports whether the parse consumed exactly the declared payload
func (p *payloadReader) done() bool {
	return !p.bad && p.pos == len(p.data)
}

// unmarshalPayload parses the tag-specific payload of one frame. A parse
// that fails or consumes a byte count different from the declared one is a
// LengthMismatch frame error.
func unmarshalPayload(kind Kind, payload []byte) (Message, error) {
	p := &payloadReader{data: payload}

	var msg Message
	switch kind {
	case KindStartup:
		m := Startup{
			Version:  p.u8(),
			Mode:     Mode(p.u8()),
			Username: p.str(),
			Password: p.str(),
		}
		n := int(p.u8())
		for i := 0; i < n && !p.bad; i++ {
			m.Codecs = append(m.Codecs, p.str())
		}
		msg = m
	case KindAuthRequest:
		msg = AuthRequest{Method: AuthMethod(p.u8())}
	case KindAuthResponse:
		msg = AuthResponse{Credentials: p.bytes()}
	case KindQuery:
		msg = Query{SQL: p.str()}
	case KindDataRow:
		n := p.u32()
		m := DataRow{}
		for i := uint32(0); i < n && !p.bad; i++ {
			m.Columns = append(m.Columns, p.bytes())
		}
		msg = m
	case KindCommandComplete:
		msg = CommandComplete{Tag: p.str()}
	case KindError:
		msg = ErrorResponse{Message: p.str()}
	case KindReadyForQuery:
		m := ReadyForQuery{Codec: p.str()}
		m.Authenticated = p.u8() != 0
		msg = m
	case KindTermination:
		msg = Termination{}
	}

	if !p.done() {
		return nil, frameErrorf(LengthMismatch,
			"%s payload declares %d bytes, parse consumed %d", kind, len(payload), p.pos)
	}
	return msg, nil
}
