// Package frame owns netstring framing over byte-oriented transports.
//
// A frame on the wire is a decimal length, a ':' separator, the payload
// and a ',' terminator:
//
//	+-- len: ascii --+-+---- payload ----+-+
//	|       11       |:|   hello world   |,|
//	+----------------+-+-----------------+-+
//
// Decoding may skip a fixed number of header bytes in front of the length
// (Config.LengthFieldOffset) and may keep or strip the frame head
// (Config.StripFrame):
//
//	         INPUT                            DECODED (StripFrame)
//	+- hdr -+-- len --+-+--- payload ---+-+     +--- payload ---+
//	| \xFF  |   11    |:|  Hello world  |,| --> |  Hello world  |
//	+-------+---------+-+---------------+-+     +---------------+
//
// Encoding always writes `<len>:<payload>,`.
//
// Ownership boundary:
// - Config/Builder: framing parameters, copied into every instance
// - Decoder: incremental Head/Data state machine over a bytes.Buffer
// - Reader: Decoder bound to an io.Reader transport
// - Writer: resumable pending-frame writes over a WriteTransport
// - Framed: Reader and Writer over one Transport
//
// Nothing in this package blocks on its own or spawns goroutines. A
// transport that cannot make progress reports ErrWouldBlock and the caller
// retries once the transport is ready again; partial progress on both the
// read and write side is kept across retries.
package frame
