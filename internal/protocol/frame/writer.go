package frame

import (
	"io"
	"strconv"
)

var tail = []byte{terminator}

// pendingFrame is head, payload and terminator plus one cursor over all
// three.
type pendingFrame struct {
	parts [3][]byte
	size  int
	pos   int
}

func newPendingFrame(payload []byte) *pendingFrame {
	head := strconv.AppendInt(make([]byte, 0, 12), int64(len(payload)), 10)
	head = append(head, separator)
	return &pendingFrame{
		parts: [3][]byte{head, payload, tail},
		size:  len(head) + len(payload) + len(tail),
	}
}

// chunk returns the unwritten rest of the part the cursor is in.
func (f *pendingFrame) chunk() []byte {
	pos := f.pos
	for _, p := range f.parts {
		if pos < len(p) {
			return p[pos:]
		}
		pos -= len(p)
	}
	return nil
}

func (f *pendingFrame) advance(n int) {
	f.pos += n
}

func (f *pendingFrame) remaining() int {
	return f.size - f.pos
}

// Writer encodes payloads as netstrings onto a WriteTransport. At most one
// frame is in flight; a new one is refused until the previous one has been
// written out.
type Writer struct {
	w     WriteTransport
	cfg   Config
	frame *pendingFrame
}

// NewWriter returns a Writer with DefaultConfig.
func NewWriter(w WriteTransport) *Writer {
	return newWriter(w, DefaultConfig())
}

func newWriter(w WriteTransport, cfg Config) *Writer {
	return &Writer{w: w, cfg: cfg.normalized()}
}

// WriteFrame queues payload as the next frame. Any frame still pending is
// driven first; if that would block, ErrWouldBlock is returned and payload
// is not taken. A payload over MaxFrameLength fails with
// ErrPayloadTooLarge and the Writer stays usable.
//
// The Writer keeps payload until it is written; do not modify it before the
// next successful Flush.
func (w *Writer) WriteFrame(payload []byte) error {
	if err := w.driveWrite(); err != nil {
		return err
	}
	return w.setFrame(payload)
}

// Flush writes out the pending frame and flushes the transport.
func (w *Writer) Flush() error {
	if err := w.driveWrite(); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and then shuts down the transport's write half.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.w.CloseWrite()
}

// Pending reports whether a frame is still being written.
func (w *Writer) Pending() bool {
	return w.frame != nil
}

func (w *Writer) Config() Config {
	return w.cfg
}

func (w *Writer) setFrame(payload []byte) error {
	if len(payload) > w.cfg.MaxFrameLength {
		return payloadTooLarge(len(payload), w.cfg.MaxFrameLength)
	}
	if w.frame != nil {
		panic("frame: setFrame with a frame still pending")
	}
	w.frame = newPendingFrame(payload)
	return nil
}

// driveWrite writes from the cursor until the frame is done or the
// transport stops taking bytes. The cursor keeps its position across
// ErrWouldBlock.
func (w *Writer) driveWrite() error {
	if w.frame == nil {
		return nil
	}
	for w.frame.remaining() > 0 {
		n, err := w.w.Write(w.frame.chunk())
		w.frame.advance(n)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	w.frame = nil
	return nil
}
