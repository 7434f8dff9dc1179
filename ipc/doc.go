// Package ipc owns the message envelope of an inter-process channel.
//
// Ownership boundary:
// - header layout and the two header variants (plain / trace-augmented)
// - flag bitfield (nesting, priority, sync/reply/interrupt/compress bits)
// - stream framing probes (HeaderSizeFromData / MessageSize)
// - descriptor-set bookkeeping for POSIX descriptor passing
// - seqno/transaction-id reply correlation (Router)
//
// The transport that moves raw bytes between processes is a collaborator,
// not part of this package: it sees a message as Bytes(), segments its
// read stream with MessageSize, and reconstructs messages with Parse.
package ipc
