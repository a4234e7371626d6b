package frame

import (
	"fmt"
	"io"
	"strconv"
)

const (
	// DefaultMaxFrameLength is 32 MiB.
	DefaultMaxFrameLength = 32 * 1024 * 1024

	// "0:," is the smallest netstring.
	minimumNetstring = 3

	separator  byte = ':'
	terminator byte = ','
)

// Config holds the framing parameters shared by decoders and writers.
// It is copied by value into every instance built from it.
type Config struct {
	// MaxFrameLength bounds the payload length in both directions. On decode
	// it is checked against the length field before any payload is read.
	MaxFrameLength int

	// LengthFieldOffset is the number of header bytes in front of the length
	// field. Decode only.
	LengthFieldOffset int

	// StripFrame drops the header bytes, length, ':' and ',' from decoded
	// frames, leaving only the payload. Decode only.
	StripFrame bool
}

func DefaultConfig() Config {
	return Config{
		MaxFrameLength:    DefaultMaxFrameLength,
		LengthFieldOffset: 0,
		StripFrame:        true,
	}
}

func (c Config) Validate() error {
	if c.MaxFrameLength < 0 {
		return fmt.Errorf("%w: max_frame_length %d is negative", ErrInvalidConfig, c.MaxFrameLength)
	}
	if c.LengthFieldOffset < 0 {
		return fmt.Errorf("%w: length_field_offset %d is negative", ErrInvalidConfig, c.LengthFieldOffset)
	}
	return nil
}

// MaxHeadDigits is the widest length field the decoder accepts: the decimal
// width of MaxFrameLength.
func (c Config) MaxHeadDigits() int {
	return len(strconv.Itoa(c.MaxFrameLength))
}

// AppendFrame appends payload encoded as a netstring to dst.
func (c Config) AppendFrame(dst, payload []byte) ([]byte, error) {
	if len(payload) > c.MaxFrameLength {
		return dst, payloadTooLarge(len(payload), c.MaxFrameLength)
	}
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, separator)
	dst = append(dst, payload...)
	return append(dst, terminator), nil
}

func (c Config) minHead() int {
	return c.LengthFieldOffset + minimumNetstring
}

func (c Config) normalized() Config {
	if c.MaxFrameLength < 0 {
		c.MaxFrameLength = 0
	}
	if c.LengthFieldOffset < 0 {
		c.LengthFieldOffset = 0
	}
	return c
}

func payloadTooLarge(n, max int) error {
	return fmt.Errorf("%w: len=%d max=%d", ErrPayloadTooLarge, n, max)
}

// Builder is a fluent mutator over Config. Instances built from it take a
// copy of the current Config; later changes to the builder do not reach
// them.
type Builder struct {
	cfg Config
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// NewBuilderFrom starts from cfg.
func NewBuilderFrom(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) MaxFrameLength(n int) *Builder {
	b.cfg.MaxFrameLength = n
	return b
}

func (b *Builder) LengthFieldOffset(n int) *Builder {
	b.cfg.LengthFieldOffset = n
	return b
}

func (b *Builder) StripFrame(strip bool) *Builder {
	b.cfg.StripFrame = strip
	return b
}

func (b *Builder) Config() Config {
	return b.cfg
}

func (b *Builder) NewDecoder() *Decoder {
	return NewDecoder(b.cfg)
}

func (b *Builder) NewReader(r io.Reader) *Reader {
	return newReader(r, b.cfg)
}

func (b *Builder) NewWriter(w WriteTransport) *Writer {
	return newWriter(w, b.cfg)
}

func (b *Builder) NewFramed(t Transport) *Framed {
	return newFramed(t, b.cfg)
}
