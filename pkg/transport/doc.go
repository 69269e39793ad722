// Package transport provides the UDP datagram transport the protocol engine
// runs on.
//
// The transport owns no protocol semantics: it moves opaque datagrams to and
// from one simulator host. The socket is connected (DialUDP), so sends need
// no per-packet address and receives are filtered to the host's address by
// the kernel.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Fixed-layout binary records  │
//	├────────────────────────────────┤
//	│            UDP                 │
//	└────────────────────────────────┘
//
// There is no framing layer: UDP preserves datagram boundaries, and the
// protocol has no acknowledgments, ordering or delivery guarantees.
package transport
