package ipc

import "errors"

var (
	ErrShortHeader         = errors.New("ipc: data shorter than header")
	ErrLayoutMismatch      = errors.New("ipc: header bytes disagree with layout")
	ErrInvalidLayout       = errors.New("ipc: invalid layout configuration")
	ErrNoDescriptors       = errors.New("ipc: layout has no descriptor segment")
	ErrDescriptorCapacity  = errors.New("ipc: descriptor set is full")
	ErrDescriptorUnderflow = errors.New("ipc: no unread descriptor")
	ErrNoTraceHeader       = errors.New("ipc: message has no trace header")
	ErrNotInterrupt        = errors.New("ipc: field is only valid on interrupt messages")
	ErrInterruptOnly       = errors.New("ipc: field is not valid on interrupt messages")
	ErrProtocolViolation   = errors.New("ipc: protocol violation")
	ErrDuplicateSeqno      = errors.New("ipc: seqno already registered")
	ErrReplyError          = errors.New("ipc: remote signalled reply error")
	ErrChannelClosed       = errors.New("ipc: channel closed")
)
