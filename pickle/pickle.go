// Package pickle owns the growable byte buffer messages are built on.
//
// Ownership boundary:
// - typed header region prefixed by the payload size word
// - 4-byte-aligned payload append primitives
// - read iterator over the payload
package pickle

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	// PayloadSizeLen is the width of the payload_size word that leads
	// every header region.
	PayloadSizeLen = 4

	// Alignment is the write granularity of the payload region. Every
	// append pads to this boundary so the recorded payload size frames
	// the buffer exactly.
	Alignment = 4
)

var (
	ErrHeaderSize  = errors.New("pickle: header size must be a positive multiple of 4")
	ErrShortData   = errors.New("pickle: data shorter than header region")
	ErrHeaderRange = errors.New("pickle: header offset out of range")
	ErrReadPastEnd = errors.New("pickle: read past end of payload")
	ErrFrameSize   = errors.New("pickle: recorded payload size disagrees with data length")
)

// Buffer is an append-only byte buffer split into a caller-typed header
// region and an aligned payload region. The first word of the header
// region always holds the payload size, so a total framed length can be
// computed from header bytes alone.
type Buffer struct {
	data       []byte
	headerSize int
}

// New returns an empty buffer with a zeroed header region of the given
// size. The size must cover the payload_size word and be 4-byte aligned.
func New(headerSize int) (*Buffer, error) {
	if headerSize < PayloadSizeLen || headerSize%Alignment != 0 {
		return nil, ErrHeaderSize
	}
	return &Buffer{
		data:       make([]byte, headerSize),
		headerSize: headerSize,
	}, nil
}

// FromBytes adopts a copy of data as a complete buffer. The recorded
// payload size must account for every byte past the header region.
func FromBytes(data []byte, headerSize int) (*Buffer, error) {
	if headerSize < PayloadSizeLen || headerSize%Alignment != 0 {
		return nil, ErrHeaderSize
	}
	if len(data) < headerSize {
		return nil, ErrShortData
	}
	recorded := binary.LittleEndian.Uint32(data[:PayloadSizeLen])
	if uint64(recorded) != uint64(len(data)-headerSize) {
		return nil, ErrFrameSize
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Buffer{data: buf, headerSize: headerSize}, nil
}

// HeaderSize returns the size of the header region.
func (b *Buffer) HeaderSize() int {
	return b.headerSize
}

// Size returns the total buffer size, header region included.
func (b *Buffer) Size() int {
	return len(b.data)
}

// PayloadSize returns the recorded payload size.
func (b *Buffer) PayloadSize() uint32 {
	return binary.LittleEndian.Uint32(b.data[:PayloadSizeLen])
}

// Bytes returns the raw byte view of the whole buffer. The slice aliases
// the buffer and is invalidated by the next write.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Header returns the header region view. The slice aliases the buffer.
func (b *Buffer) Header() []byte {
	return b.data[:b.headerSize]
}

// Payload returns the payload region view. The slice aliases the buffer.
func (b *Buffer) Payload() []byte {
	return b.data[b.headerSize:]
}

// HeaderUint32 reads a header field at the given byte offset.
func (b *Buffer) HeaderUint32(off int) (uint32, error) {
	if off < 0 || off+4 > b.headerSize {
		return 0, ErrHeaderRange
	}
	return binary.LittleEndian.Uint32(b.data[off : off+4]), nil
}

// SetHeaderUint32 writes a header field at the given byte offset.
func (b *Buffer) SetHeaderUint32(off int, v uint32) error {
	if off < 0 || off+4 > b.headerSize {
		return ErrHeaderRange
	}
	binary.LittleEndian.PutUint32(b.data[off:off+4], v)
	return nil
}

// HeaderUint64 reads an 8-byte header field at the given byte offset.
func (b *Buffer) HeaderUint64(off int) (uint64, error) {
	if off < 0 || off+8 > b.headerSize {
		return 0, ErrHeaderRange
	}
	return binary.LittleEndian.Uint64(b.data[off : off+8]), nil
}

// SetHeaderUint64 writes an 8-byte header field at the given byte offset.
func (b *Buffer) SetHeaderUint64(off int, v uint64) error {
	if off < 0 || off+8 > b.headerSize {
		return ErrHeaderRange
	}
	binary.LittleEndian.PutUint64(b.data[off:off+8], v)
	return nil
}

// WriteBytes appends p to the payload, padding to the alignment boundary.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
	if pad := len(p) % Alignment; pad != 0 {
		b.data = append(b.data, make([]byte, Alignment-pad)...)
	}
	b.setPayloadSize()
}

// WriteUint32 appends a 32-bit word to the payload.
func (b *Buffer) WriteUint32(v uint32) {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], v)
	b.WriteBytes(word[:])
}

// WriteInt32 appends a signed 32-bit word to the payload.
func (b *Buffer) WriteInt32(v int32) {
	b.WriteUint32(uint32(v))
}

// WriteUint64 appends a 64-bit word to the payload.
func (b *Buffer) WriteUint64(v uint64) {
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], v)
	b.WriteBytes(word[:])
}

// WriteString appends a length-prefixed string to the payload.
func (b *Buffer) WriteString(s string) {
	b.WriteUint32(uint32(len(s)))
	b.WriteBytes([]byte(s))
}

func (b *Buffer) setPayloadSize() {
	binary.LittleEndian.PutUint32(b.data[:PayloadSizeLen], uint32(len(b.data)-b.headerSize))
}

// Iter returns a read cursor positioned at the start of the payload.
func (b *Buffer) Iter() *Iterator {
	return &Iterator{buf: b}
}

// Iterator is a read cursor over a buffer's payload. Failed reads do not
// advance the cursor.
type Iterator struct {
	buf *Buffer
	pos int
}

// Pos returns the cursor offset within the payload.
func (it *Iterator) Pos() int {
	return it.pos
}

// Remaining returns the unread payload byte count.
func (it *Iterator) Remaining() int {
	return len(it.buf.Payload()) - it.pos
}

// ReadBytes reads n bytes and advances past the alignment padding. The
// returned slice aliases the buffer.
func (it *Iterator) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrReadPastEnd
	}
	payload := it.buf.Payload()
	if it.pos+n > len(payload) {
		return nil, ErrReadPastEnd
	}
	out := payload[it.pos : it.pos+n]
	advance := n
	if pad := n % Alignment; pad != 0 {
		advance += Alignment - pad
	}
	if it.pos+advance > len(payload) {
		// Foreign data may omit the trailing pad on the final element.
		advance = len(payload) - it.pos
	}
	it.pos += advance
	return out, nil
}

// ReadUint32 reads a 32-bit word.
func (it *Iterator) ReadUint32() (uint32, error) {
	word, err := it.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(word), nil
}

// ReadInt32 reads a signed 32-bit word.
func (it *Iterator) ReadInt32() (int32, error) {
	v, err := it.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a 64-bit word.
func (it *Iterator) ReadUint64() (uint64, error) {
	word, err := it.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(word), nil
}

// ReadString reads a length-prefixed string.
func (it *Iterator) ReadString() (string, error) {
	n, err := it.ReadUint32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(it.Remaining()) {
		return "", ErrReadPastEnd
	}
	raw, err := it.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// MessageSize returns the total framed length of the message starting at
// data, or 0 if data does not yet hold the payload size word. headerSize
// is the full header-region size the caller has already determined.
func MessageSize(headerSize int, data []byte) uint32 {
	if headerSize < PayloadSizeLen || len(data) < PayloadSizeLen {
		return 0
	}
	payload := binary.LittleEndian.Uint32(data[:PayloadSizeLen])
	total := uint64(headerSize) + uint64(payload)
	if total > math.MaxUint32 {
		return 0
	}
	return uint32(total)
}
