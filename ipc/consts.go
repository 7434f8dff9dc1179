package ipc

import "math"

// Reserved routing ids.
const (
	// RoutingNone marks a message with no routing id assigned yet.
	RoutingNone int32 = math.MinInt32
	// RoutingControl marks a control message not targeted at a
	// specific remote object.
	RoutingControl int32 = math.MaxInt32
)

// Reserved message types.
const (
	// ReplyTypeID is the built-in type of generic replies.
	ReplyTypeID uint32 = 0xFFF0
	// LoggingTypeID is the built-in type of the internal logging
	// channel.
	LoggingTypeID uint32 = 0xFFF1
)

// defaultName is the diagnostic name of a message that never got one.
const defaultName = "???"
