// Package wire implements the binary datagram codec for the X-Plane UDP
// protocol.
//
// Every datagram starts with a 5-byte header: a 4-byte ASCII tag that
// identifies the message kind, followed by one zero pad byte. All multi-byte
// integers and floats are little-endian. Name fields are UTF-8, null-padded
// to a fixed width.
//
// # Message Kinds
//
//	┌──────┬─────────────────────────────────────────────────────────┐
//	│ RREF │ dataref subscription request / streamed update reply    │
//	│ DREF │ dataref write                                           │
//	│ CMND │ simulator command                                       │
//	│ VEHS │ aircraft position set                                   │
//	│ RPOS │ position stream request / position reply                │
//	│ BECN │ simulator discovery beacon (multicast, decode only)     │
//	└──────┴─────────────────────────────────────────────────────────┘
//
// The protocol has no acknowledgments, no ordering and no delivery
// guarantees. Decoders validate the tag and the exact layout length before
// interpreting anything; a mismatch is a framing error, never a silent skip.
package wire
