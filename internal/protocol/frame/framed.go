package frame

// Framed reads and writes whole frames over one Transport.
type Framed struct {
	t Transport
	r *Reader
	w *Writer
}

// NewFramed returns a Framed with DefaultConfig.
func NewFramed(t Transport) *Framed {
	return newFramed(t, DefaultConfig())
}

func newFramed(t Transport, cfg Config) *Framed {
	return &Framed{
		t: t,
		r: newReader(t, cfg),
		w: newWriter(t, cfg),
	}
}

func (f *Framed) ReadFrame() ([]byte, error) {
	if f.t == nil {
		return nil, ErrDetached
	}
	return f.r.ReadFrame()
}

func (f *Framed) WriteFrame(payload []byte) error {
	if f.t == nil {
		return ErrDetached
	}
	return f.w.WriteFrame(payload)
}

func (f *Framed) Flush() error {
	if f.t == nil {
		return ErrDetached
	}
	return f.w.Flush()
}

func (f *Framed) Close() error {
	if f.t == nil {
		return ErrDetached
	}
	return f.w.Close()
}

func (f *Framed) Pending() bool {
	return f.w != nil && f.w.Pending()
}

func (f *Framed) Buffered() int {
	if f.r == nil {
		return 0
	}
	return f.r.Buffered()
}

func (f *Framed) Config() Config {
	if f.r == nil {
		return Config{}
	}
	return f.r.Config()
}

// Transport returns the underlying transport.
//
// Reading or writing it directly while frames are in flight corrupts the
// stream: the decode buffer and the pending write cursor do not see bypass
// I/O.
func (f *Framed) Transport() Transport {
	return f.t
}

// Detach hands the transport back to the caller and discards any buffered
// input and pending output. Every later call on f returns ErrDetached.
//
// The same caveats as Transport apply to bytes already buffered: they are
// lost.
func (f *Framed) Detach() Transport {
	t := f.t
	f.t, f.r, f.w = nil, nil, nil
	return t
}
