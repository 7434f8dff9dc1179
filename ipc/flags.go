package ipc

// NestedLevel classifies how deeply a message is issued relative to other
// in-flight blocking calls.
type NestedLevel uint32

const (
	NotNested        NestedLevel = 1
	NestedInsideSync NestedLevel = 2
	NestedInsideCPOW NestedLevel = 3
)

// Priority is the scheduling class of a message.
type Priority uint32

const (
	NormalPriority Priority = 0
	InputPriority  Priority = 1
	HighPriority   Priority = 2
)

// Compression is the resolved compression mode of a message.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionEnabled
	CompressionAll
)

// Flag bit ranges inside the header flags word. Nesting and priority are
// 2-bit fields, the rest are single bits.
const (
	nestedMask     uint32 = 0x0003
	prioMask       uint32 = 0x000C
	prioShift             = 2
	syncBit        uint32 = 0x0010
	replyBit       uint32 = 0x0020
	replyErrBit    uint32 = 0x0040
	interruptBit   uint32 = 0x0080
	compressBit    uint32 = 0x0100
	compressAllBit uint32 = 0x0200
	constructorBit uint32 = 0x0400
	traceBit       uint32 = 0x0800
)

func (l NestedLevel) valid() bool {
	return l >= NotNested && l <= NestedInsideCPOW
}

func (l NestedLevel) String() string {
	switch l {
	case NotNested:
		return "not-nested"
	case NestedInsideSync:
		return "nested-inside-sync"
	case NestedInsideCPOW:
		return "nested-inside-cpow"
	default:
		return "invalid"
	}
}

func (p Priority) valid() bool {
	return p <= HighPriority
}

func (p Priority) String() string {
	switch p {
	case NormalPriority:
		return "normal"
	case InputPriority:
		return "input"
	case HighPriority:
		return "high"
	default:
		return "invalid"
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionEnabled:
		return "enabled"
	case CompressionAll:
		return "all"
	default:
		return "none"
	}
}

// compressType resolves the two compression bits. The compress-all bit is
// a channel-wide negotiated mode and wins over the per-message opt-in.
func compressType(flags uint32) Compression {
	switch {
	case flags&compressAllBit != 0:
		return CompressionAll
	case flags&compressBit != 0:
		return CompressionEnabled
	default:
		return CompressionNone
	}
}
