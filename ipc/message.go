package ipc

import (
	"fmt"
	"time"

	"github.com/danmuck/ipcmsg/internal/observability"
	"github.com/danmuck/ipcmsg/pickle"
)

// Options configures a freshly constructed message. The zero value means
// not nested, normal priority, no compression.
type Options struct {
	Nested      NestedLevel
	Priority    Priority
	Compression Compression
	Constructor bool
	// Trace requests the trace-augmented header variant. Only valid
	// when the layout permits tracing.
	Trace bool
	Name  string
}

// Message is one framed unit on the wire: a fixed header followed by an
// aligned payload, with an optional descriptor set riding alongside. A
// message has a single owner at any moment and is not safe for concurrent
// mutation; hand it between goroutines with Move, never by sharing.
type Message struct {
	buf     *pickle.Buffer
	layout  Layout
	off     headerOffsets
	fds     *DescriptorSet
	name    string
	created time.Time
}

// New constructs an empty message with the given routing id and type.
func New(layout Layout, routing int32, msgType uint32, opts Options) (*Message, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	nested := opts.Nested
	if nested == 0 {
		nested = NotNested
	}
	if !nested.valid() {
		return nil, fmt.Errorf("%w: nesting level %d", ErrInvalidLayout, nested)
	}
	if !opts.Priority.valid() {
		return nil, fmt.Errorf("%w: priority %d", ErrInvalidLayout, opts.Priority)
	}
	if opts.Trace && !layout.Trace {
		return nil, fmt.Errorf("%w: trace header without trace segment", ErrInvalidLayout)
	}

	headerSize := layout.PlainHeaderSize()
	if opts.Trace {
		headerSize = layout.TraceHeaderSize()
	}
	buf, err := pickle.New(headerSize)
	if err != nil {
		return nil, err
	}

	flags := uint32(nested) | uint32(opts.Priority)<<prioShift
	switch opts.Compression {
	case CompressionEnabled:
		flags |= compressBit
	case CompressionAll:
		flags |= compressAllBit
	}
	if opts.Constructor {
		flags |= constructorBit
	}
	if opts.Trace {
		flags |= traceBit
	}

	name := opts.Name
	if name == "" {
		name = defaultName
	}

	m := &Message{
		buf:     buf,
		layout:  layout,
		off:     layout.offsets(),
		name:    name,
		created: time.Now(),
	}
	m.buf.SetHeaderUint32(routingOffset, uint32(routing))
	m.buf.SetHeaderUint32(typeOffset, msgType)
	m.buf.SetHeaderUint32(flagsOffset, flags)
	return m, nil
}

// Parse reconstructs a message from exactly one complete frame. The
// header variant is adopted from the bytes themselves; the caller is
// expected to have segmented the stream with MessageSize first.
func Parse(layout Layout, data []byte) (*Message, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	headerSize, ok := HeaderSizeFromData(layout, data)
	if !ok || len(data) < headerSize {
		return nil, ErrShortHeader
	}
	total := pickle.MessageSize(headerSize, data)
	if total == 0 || int(total) != len(data) {
		return nil, fmt.Errorf("%w: frame is %d bytes, data is %d", ErrLayoutMismatch, total, len(data))
	}
	buf, err := pickle.FromBytes(data, headerSize)
	if err != nil {
		return nil, err
	}
	return &Message{
		buf:     buf,
		layout:  layout,
		off:     layout.offsets(),
		name:    defaultName,
		created: time.Now(),
	}, nil
}

// NewReply builds the reply envelope for a request: same routing, type,
// nesting and priority, same seqno, reply bit set.
func NewReply(req *Message) (*Message, error) {
	reply, err := New(req.layout, req.RoutingID(), req.Type(), Options{
		Nested:   req.NestedLevel(),
		Priority: req.Priority(),
		Name:     req.Name(),
	})
	if err != nil {
		return nil, err
	}
	reply.SetReply()
	reply.SetSeqno(req.Seqno())
	if req.IsInterrupt() {
		reply.SetInterrupt()
	} else if txid, err := req.TransactionID(); err == nil {
		reply.SetTransactionID(txid)
	}
	return reply, nil
}

// NewReplyFromInfo builds a reply envelope from a correlation snapshot,
// for callers that did not retain the request message.
func NewReplyFromInfo(layout Layout, info MessageInfo) (*Message, error) {
	reply, err := New(layout, RoutingNone, info.Type, Options{})
	if err != nil {
		return nil, err
	}
	reply.SetReply()
	reply.SetSeqno(info.Seqno)
	return reply, nil
}

func (m *Message) flags() uint32 {
	v, _ := m.buf.HeaderUint32(flagsOffset)
	return v
}

func (m *Message) setFlags(v uint32) {
	m.buf.SetHeaderUint32(flagsOffset, v)
}

func (m *Message) headerUint32(off int) uint32 {
	v, _ := m.buf.HeaderUint32(off)
	return v
}

// RoutingID identifies the destination object within the remote process.
func (m *Message) RoutingID() int32 {
	return int32(m.headerUint32(routingOffset))
}

func (m *Message) SetRoutingID(id int32) {
	m.buf.SetHeaderUint32(routingOffset, uint32(id))
}

// Type is the user-defined message type tag.
func (m *Message) Type() uint32 {
	return m.headerUint32(typeOffset)
}

// NestedLevel reads the 2-bit nesting field.
func (m *Message) NestedLevel() NestedLevel {
	return NestedLevel(m.flags() & nestedMask)
}

func (m *Message) SetNestedLevel(l NestedLevel) error {
	if !l.valid() {
		return fmt.Errorf("%w: nesting level %d", ErrProtocolViolation, l)
	}
	m.setFlags(m.flags()&^nestedMask | uint32(l))
	return nil
}

// Priority reads the 2-bit priority field.
func (m *Message) Priority() Priority {
	return Priority(m.flags() & prioMask >> prioShift)
}

func (m *Message) SetPriority(p Priority) error {
	if !p.valid() {
		return fmt.Errorf("%w: priority %d", ErrProtocolViolation, p)
	}
	m.setFlags(m.flags()&^prioMask | uint32(p)<<prioShift)
	return nil
}

// IsSync reports whether this is a blocking synchronous call.
func (m *Message) IsSync() bool { return m.flags()&syncBit != 0 }

// SetSync marks the message synchronous. Monotonic: never cleared within
// one message's lifetime.
func (m *Message) SetSync() { m.setFlags(m.flags() | syncBit) }

// IsInterrupt reports whether this is a reentrant interrupt call.
func (m *Message) IsInterrupt() bool { return m.flags()&interruptBit != 0 }

func (m *Message) SetInterrupt() { m.setFlags(m.flags() | interruptBit) }

// IsReply is only meaningful on messages answering a sync or interrupt
// request.
func (m *Message) IsReply() bool { return m.flags()&replyBit != 0 }

func (m *Message) SetReply() { m.setFlags(m.flags() | replyBit) }

// IsReplyError marks a reply whose call could not be completed.
func (m *Message) IsReplyError() bool { return m.flags()&replyErrBit != 0 }

func (m *Message) SetReplyError() { m.setFlags(m.flags() | replyErrBit) }

// IsConstructor reports the constructor bit.
func (m *Message) IsConstructor() bool { return m.flags()&constructorBit != 0 }

func (m *Message) SetConstructor() { m.setFlags(m.flags() | constructorBit) }

// CompressType resolves the two compression bits; compress-all wins.
func (m *Message) CompressType() Compression {
	return compressType(m.flags())
}

// HasTraceHeader reports whether this message carries the trace-augmented
// header variant.
func (m *Message) HasTraceHeader() bool { return m.flags()&traceBit != 0 }

// Seqno is the per-request identifier matching a reply to its request.
func (m *Message) Seqno() int32 {
	return int32(m.headerUint32(m.off.seqno))
}

func (m *Message) SetSeqno(seqno int32) {
	m.buf.SetHeaderUint32(m.off.seqno, uint32(seqno))
}

// TransactionID correlates a nested call with its outer transaction. The
// field shares storage with the interrupt stack-depth guess; reading it
// on an interrupt message is a contract violation.
func (m *Message) TransactionID() (int32, error) {
	if m.IsInterrupt() {
		return 0, ErrInterruptOnly
	}
	return int32(m.headerUint32(m.off.txid)), nil
}

func (m *Message) SetTransactionID(txid int32) error {
	if m.IsInterrupt() {
		return ErrInterruptOnly
	}
	m.buf.SetHeaderUint32(m.off.txid, uint32(txid))
	return nil
}

// InterruptRemoteStackDepthGuess is the sender's guess at the peer's
// interrupt stack depth. Only valid on interrupt messages.
func (m *Message) InterruptRemoteStackDepthGuess() (uint32, error) {
	if !m.IsInterrupt() {
		return 0, ErrNotInterrupt
	}
	return m.headerUint32(m.off.txid), nil
}

func (m *Message) SetInterruptRemoteStackDepthGuess(depth uint32) error {
	if !m.IsInterrupt() {
		return ErrNotInterrupt
	}
	m.buf.SetHeaderUint32(m.off.txid, depth)
	return nil
}

// InterruptLocalStackDepth is the sender's own interrupt stack depth.
// Only valid on interrupt messages.
func (m *Message) InterruptLocalStackDepth() (uint32, error) {
	if !m.IsInterrupt() {
		return 0, ErrNotInterrupt
	}
	return m.headerUint32(m.off.localDepth), nil
}

func (m *Message) SetInterruptLocalStackDepth(depth uint32) error {
	if !m.IsInterrupt() {
		return ErrNotInterrupt
	}
	m.buf.SetHeaderUint32(m.off.localDepth, depth)
	return nil
}

// NumDescriptors is the descriptor count recorded in the header, telling
// the receiver how many ancillary handles to expect.
func (m *Message) NumDescriptors() (uint32, error) {
	if m.off.numFDs < 0 {
		return 0, ErrNoDescriptors
	}
	return m.headerUint32(m.off.numFDs), nil
}

// FDCookie is the acknowledgement cookie confirming descriptor
// consumption on targets that require it.
func (m *Message) FDCookie() (uint32, error) {
	if m.off.cookie < 0 {
		return 0, ErrNoDescriptors
	}
	return m.headerUint32(m.off.cookie), nil
}

func (m *Message) SetFDCookie(cookie uint32) error {
	if m.off.cookie < 0 {
		return ErrNoDescriptors
	}
	m.buf.SetHeaderUint32(m.off.cookie, cookie)
	return nil
}

// Name is the diagnostic message name.
func (m *Message) Name() string { return m.name }

func (m *Message) SetName(name string) { m.name = name }

// CreateTime is the construction timestamp.
func (m *Message) CreateTime() time.Time { return m.created }

// Size is the total framed size: header variant size plus payload size.
func (m *Message) Size() int { return m.buf.Size() }

// HeaderSize is the size of the header variant present in the buffer.
func (m *Message) HeaderSize() int { return m.buf.HeaderSize() }

// Bytes is the raw wire view of the message. The transport serializes
// exactly these bytes; the slice is invalidated by the next write.
func (m *Message) Bytes() []byte { return m.buf.Bytes() }

// Iter returns a read cursor over the payload.
func (m *Message) Iter() *pickle.Iterator { return m.buf.Iter() }

// WriteBytes appends raw bytes to the payload.
func (m *Message) WriteBytes(p []byte) { m.buf.WriteBytes(p) }

// WriteUint32 appends a 32-bit word to the payload.
func (m *Message) WriteUint32(v uint32) { m.buf.WriteUint32(v) }

// WriteInt32 appends a signed 32-bit word to the payload.
func (m *Message) WriteInt32(v int32) { m.buf.WriteInt32(v) }

// WriteUint64 appends a 64-bit word to the payload.
func (m *Message) WriteUint64(v uint64) { m.buf.WriteUint64(v) }

// WriteString appends a length-prefixed string to the payload.
func (m *Message) WriteString(s string) { m.buf.WriteString(s) }

// WriteFileDescriptor attaches fd to the message's descriptor set and
// records its slot index in the payload, keeping the header descriptor
// count in sync. Fails once the per-message capacity is reached.
func (m *Message) WriteFileDescriptor(fd int) error {
	if m.off.numFDs < 0 {
		return ErrNoDescriptors
	}
	if m.fds == nil {
		m.fds = newDescriptorSet()
	}
	slot := m.fds.Size()
	if err := m.fds.Add(fd); err != nil {
		return err
	}
	m.buf.WriteUint32(uint32(slot))
	m.buf.SetHeaderUint32(m.off.numFDs, uint32(m.fds.Size()))
	observability.RecordDescriptorAttached()
	return nil
}

// ReadFileDescriptor consumes the next unread descriptor, using it to
// resolve the slot index read from the shared payload cursor.
func (m *Message) ReadFileDescriptor(it *pickle.Iterator) (int, error) {
	slot, err := it.ReadUint32()
	if err != nil {
		return -1, ErrDescriptorUnderflow
	}
	// Reject a bad slot before touching the set so the failure has no
	// side effects on the consume cursor.
	expect, _ := m.NumDescriptors()
	if slot >= expect {
		return -1, fmt.Errorf("%w: descriptor slot %d of %d", ErrProtocolViolation, slot, expect)
	}
	return m.fds.ConsumeNext()
}

// DescriptorSet exposes the attached descriptors to the transport, which
// performs the actual cross-process transfer.
func (m *Message) DescriptorSet() *DescriptorSet {
	return m.fds
}

// AdoptDescriptors installs handles received from the transport's
// ancillary data. The count must match the header's descriptor count.
func (m *Message) AdoptDescriptors(fds []int) error {
	expect, err := m.NumDescriptors()
	if err != nil {
		return err
	}
	if uint32(len(fds)) != expect {
		return fmt.Errorf("%w: got %d descriptors, header says %d", ErrProtocolViolation, len(fds), expect)
	}
	set := newDescriptorSet()
	for _, fd := range fds {
		if err := set.Add(fd); err != nil {
			return err
		}
	}
	m.fds = set
	return nil
}

// Move transfers ownership of the buffer and descriptor set to a new
// message, atomically, and leaves the source empty. The source reports
// Moved() afterward and must not be used again.
func (m *Message) Move() *Message {
	moved := &Message{
		buf:     m.buf,
		layout:  m.layout,
		off:     m.off,
		fds:     m.fds,
		name:    m.name,
		created: m.created,
	}
	m.buf = nil
	m.fds = nil
	return moved
}

// Moved reports whether ownership has been transferred away.
func (m *Message) Moved() bool { return m.buf == nil }

// Close releases any descriptors that were never consumed. Closing twice
// is safe; each descriptor is closed exactly once.
func (m *Message) Close() error {
	return m.fds.CloseUnconsumed()
}
