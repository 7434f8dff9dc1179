package ipc

import (
	"encoding/binary"

	"github.com/danmuck/ipcmsg/pickle"
)

// minProbeLen is the shortest prefix from which the header variant can be
// decided: everything up to and including the flags word, which sits at
// the same offset in both variants.
const minProbeLen = flagsOffset + 4

// HeaderSizeFromData returns the byte size of whichever header variant
// applies to the message starting at data. It reads only the flags word
// from the variant-common prefix and never looks past data. ok is false
// when the prefix is too short to decide.
func HeaderSizeFromData(layout Layout, data []byte) (size int, ok bool) {
	if len(data) < minProbeLen {
		return 0, false
	}
	flags := binary.LittleEndian.Uint32(data[flagsOffset : flagsOffset+4])
	return layout.headerSizeFor(flags), true
}

// MessageSize returns the exact byte count of one complete framed message
// starting at data, or 0 if data does not yet hold enough bytes to know
// it. Trailing bytes past the message boundary are ignored. The function
// is pure and may be re-invoked as more bytes arrive; the same input
// always yields the same answer.
func MessageSize(layout Layout, data []byte) uint32 {
	headerSize, ok := HeaderSizeFromData(layout, data)
	if !ok {
		return 0
	}
	return pickle.MessageSize(headerSize, data)
}
