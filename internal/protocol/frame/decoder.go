package frame

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// maxLengthPadding caps the leading zeros accepted in a length field.
const maxLengthPadding = 20

type decodePhase uint8

const (
	phaseHead decodePhase = iota
	phaseData
	phaseFailed
)

func (p decodePhase) String() string {
	switch p {
	case phaseHead:
		return "head"
	case phaseData:
		return "data"
	default:
		return "failed"
	}
}

// decodeState is Head or Data(n). head counts the unstripped head bytes
// still sitting in front of the payload; it is zero when stripping.
type decodeState struct {
	phase decodePhase
	n     int
	head  int
}

// Decoder incrementally parses netstrings out of an accumulation buffer.
// It is not safe for concurrent use.
type Decoder struct {
	cfg   Config
	state decodeState
	err   error

	// longest run after any zero padding that must contain the ':'
	headLimit int
}

func NewDecoder(cfg Config) *Decoder {
	cfg = cfg.normalized()
	return &Decoder{cfg: cfg, headLimit: cfg.MaxHeadDigits() + 1}
}

func (d *Decoder) Config() Config {
	return d.cfg
}

// Err returns the fatal decode error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Decode yields the next complete frame in buf. A nil frame with a nil
// error means more bytes are needed; whatever was consumed from buf so far
// is remembered. Any error is fatal: the stream cannot be resynchronized
// and every later call returns the same error.
//
// Frames are copied out of buf and stay valid after buf changes.
func (d *Decoder) Decode(buf *bytes.Buffer) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.state.phase == phaseHead {
		ok, err := d.decodeHead(buf)
		if err != nil {
			return nil, d.fail(err)
		}
		if !ok {
			return nil, nil
		}
	}

	frame, err := d.decodeData(buf)
	if err != nil {
		return nil, d.fail(err)
	}
	if frame == nil {
		return nil, nil
	}
	d.state = decodeState{phase: phaseHead}
	buf.Grow(d.cfg.minHead())
	return frame, nil
}

func (d *Decoder) decodeHead(buf *bytes.Buffer) (bool, error) {
	off := d.cfg.LengthFieldOffset
	src := buf.Bytes()
	if len(src) < off+minimumNetstring {
		return false, nil
	}

	window := src[off:]
	zeros := leadingZeros(window, maxLengthPadding+1)
	if zeros > maxLengthPadding {
		return false, fmt.Errorf("%w: more than %d leading zeros", ErrHeaderTooLong, maxLengthPadding)
	}
	// significant digits must fit in the width of MaxFrameLength
	rest := window[zeros:]
	limit := d.headLimit
	scan := rest
	if len(scan) > limit {
		scan = scan[:limit]
	}
	i := bytes.IndexByte(scan, separator)
	if i < 0 {
		if len(rest) < limit {
			return false, nil
		}
		if allDigits(scan) {
			return false, fmt.Errorf("%w: declared length wider than %d digits, max=%d",
				ErrFrameTooLarge, limit-1, d.cfg.MaxFrameLength)
		}
		return false, fmt.Errorf("%w: no ':' within %d bytes", ErrHeaderTooLong, limit)
	}
	i += zeros

	n, err := parseLength(window[:i])
	if err != nil {
		return false, err
	}
	if n > uint64(d.cfg.MaxFrameLength) {
		return false, fmt.Errorf("%w: declared=%d max=%d", ErrFrameTooLarge, n, d.cfg.MaxFrameLength)
	}

	head := off + i + 1
	if d.cfg.StripFrame {
		buf.Next(head)
		head = 0
	}
	// payload plus the trailing ','
	buf.Grow(int(n) + 1)
	d.state = decodeState{phase: phaseData, n: int(n), head: head}
	return true, nil
}

func (d *Decoder) decodeData(buf *bytes.Buffer) ([]byte, error) {
	n, head := d.state.n, d.state.head
	if buf.Len() < head+n+1 {
		return nil, nil
	}
	if b := buf.Bytes()[head+n]; b != terminator {
		return nil, fmt.Errorf("%w: got %q after %d payload bytes", ErrMissingTerminator, b, n)
	}

	whole := buf.Next(head + n + 1)
	if d.cfg.StripFrame {
		whole = whole[:n]
	}
	frame := make([]byte, len(whole))
	copy(frame, whole)
	return frame, nil
}

func (d *Decoder) fail(err error) error {
	d.state = decodeState{phase: phaseFailed}
	d.err = err
	return err
}

func parseLength(field []byte) (uint64, error) {
	if len(field) == 0 {
		return 0, fmt.Errorf("%w: empty length field", ErrMalformedLength)
	}
	if !utf8.Valid(field) {
		return 0, fmt.Errorf("%w: length field is not utf-8", ErrMalformedLength)
	}
	n, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLength, field)
	}
	return n, nil
}

func leadingZeros(b []byte, limit int) int {
	n := 0
	for n < len(b) && n < limit && b[n] == '0' {
		n++
	}
	return n
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
