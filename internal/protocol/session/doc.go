// Package session owns the transport adapters and the retry loop that sit
// between sockets and the frame engine.
//
// Ownership boundary:
// - net.Conn and WebSocket adapters implementing frame.Transport
// - poll deadlines translated into frame.ErrWouldBlock
// - retry/backoff around would-block (Pump)
// - JSON payload helpers layered on whole frames
//
// The frame package stays ignorant of sockets, contexts and logging; anything
// that waits lives here.
package session
