package frame

import "io"

// WriteTransport is the write half a Writer drives. Write may accept fewer
// bytes than offered and report ErrWouldBlock for the rest.
type WriteTransport interface {
	io.Writer
	Flush() error
	// CloseWrite shuts down the write half.
	CloseWrite() error
}

// Transport is a full-duplex byte stream. Read returns the bytes available
// now, or ErrWouldBlock when there are none yet.
type Transport interface {
	io.Reader
	WriteTransport
}

// AdaptWriter turns a plain io.Writer into a WriteTransport. Flush and
// CloseWrite are forwarded when w implements them (CloseWrite falls back to
// Close) and are no-ops otherwise.
func AdaptWriter(w io.Writer) WriteTransport {
	if wt, ok := w.(WriteTransport); ok {
		return wt
	}
	return writerAdapter{w}
}

// Join pairs a reader and a writer into one Transport.
func Join(r io.Reader, w io.Writer) Transport {
	return joined{Reader: r, WriteTransport: AdaptWriter(w)}
}

type writerAdapter struct {
	io.Writer
}

func (a writerAdapter) Flush() error {
	if f, ok := a.Writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (a writerAdapter) CloseWrite() error {
	switch c := a.Writer.(type) {
	case interface{ CloseWrite() error }:
		return c.CloseWrite()
	case io.Closer:
		return c.Close()
	}
	return nil
}

type joined struct {
	io.Reader
	WriteTransport
}
