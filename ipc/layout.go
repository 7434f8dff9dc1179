package ipc

import "github.com/danmuck/ipcmsg/pickle"

// Layout declares which optional header segments a build/target carries.
// It replaces the original conditional compilation of platform fields: the
// core layout is fixed, optional segments are order-fixed and independently
// sized.
type Layout struct {
	// Descriptors enables the num_fds segment used for POSIX
	// descriptor passing.
	Descriptors bool
	// AckCookie enables the descriptor acknowledgement cookie segment.
	// Requires Descriptors.
	AckCookie bool
	// Trace permits the trace-augmented header variant. Whether an
	// individual message carries it is decided by the trace flag bit.
	Trace bool
}

// DefaultLayout matches a POSIX target without descriptor
// acknowledgement or tracing.
func DefaultLayout() Layout {
	return Layout{Descriptors: true}
}

// Fixed offsets common to every layout and both header variants. The
// flags word must stay at a layout-independent offset so the header
// variant can be decided from a plain-sized prefix.
const (
	routingOffset = pickle.PayloadSizeLen
	typeOffset    = routingOffset + 4
	flagsOffset   = typeOffset + 4
	segmentsStart = flagsOffset + 4
)

// traceSegmentSize covers task_id, source_event_id, parent_task_id and
// source_event_type.
const traceSegmentSize = 8 + 8 + 8 + 4

type headerOffsets struct {
	numFDs     int // -1 when the segment is absent
	cookie     int // -1 when the segment is absent
	txid       int
	localDepth int
	seqno      int
	trace      int // start of the trace segment, == plain size
}

// Validate reports whether the segment combination is expressible.
func (l Layout) Validate() error {
	if l.AckCookie && !l.Descriptors {
		return ErrInvalidLayout
	}
	return nil
}

func (l Layout) offsets() headerOffsets {
	off := headerOffsets{numFDs: -1, cookie: -1}
	next := segmentsStart
	if l.Descriptors {
		off.numFDs = next
		next += 4
	}
	if l.AckCookie {
		off.cookie = next
		next += 4
	}
	off.txid = next
	off.localDepth = next + 4
	off.seqno = next + 8
	off.trace = next + 12
	return off
}

// PlainHeaderSize returns the byte size of the plain header variant.
func (l Layout) PlainHeaderSize() int {
	return l.offsets().trace
}

// TraceHeaderSize returns the byte size of the trace-augmented variant.
// The plain variant's fields occupy identical offsets in both.
func (l Layout) TraceHeaderSize() int {
	return l.PlainHeaderSize() + traceSegmentSize
}

// headerSizeFor picks the variant size the flags word selects.
func (l Layout) headerSizeFor(flags uint32) int {
	if l.Trace && flags&traceBit != 0 {
		return l.TraceHeaderSize()
	}
	return l.PlainHeaderSize()
}
