package frame

import (
	"bytes"
	"errors"
	"io"
)

const readChunk = 8 * 1024

// Reader yields whole frames from a byte transport. It owns the
// accumulation buffer the Decoder scans.
type Reader struct {
	r   io.Reader
	dec *Decoder
	buf bytes.Buffer

	eof bool
	err error
}

// NewReader returns a Reader with DefaultConfig.
func NewReader(r io.Reader) *Reader {
	return newReader(r, DefaultConfig())
}

func newReader(r io.Reader, cfg Config) *Reader {
	rd := &Reader{r: r, dec: NewDecoder(cfg)}
	rd.buf.Grow(rd.dec.cfg.minHead())
	return rd
}

// ReadFrame returns the next frame. When the transport has nothing more to
// give right now it returns ErrWouldBlock; buffered bytes and decode state
// survive until the next call. io.EOF marks a clean end of stream between
// frames, io.ErrUnexpectedEOF an end in the middle of one.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		frame, err := r.dec.Decode(&r.buf)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
		if r.err != nil {
			return nil, r.err
		}
		if r.eof {
			if r.buf.Len() == 0 && r.dec.state.phase == phaseHead {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

// Buffered reports how many undecoded bytes are held.
func (r *Reader) Buffered() int {
	return r.buf.Len()
}

func (r *Reader) Config() Config {
	return r.dec.cfg
}

// fill reads one chunk straight into the free tail of the buffer. Bytes that
// arrive together with an error are kept and decoded before the error is
// surfaced.
func (r *Reader) fill() error {
	r.buf.Grow(readChunk)
	p := r.buf.AvailableBuffer()[:readChunk]
	n, err := r.r.Read(p)
	r.buf.Write(p[:n])

	switch {
	case err == nil:
		if n == 0 {
			return ErrWouldBlock
		}
		return nil
	case errors.Is(err, io.EOF):
		r.eof = true
		return nil
	case errors.Is(err, ErrWouldBlock):
		if n > 0 {
			return nil
		}
		return ErrWouldBlock
	default:
		r.err = err
		if n > 0 {
			return nil
		}
		return err
	}
}
