package ipc

// MessageInfo is a cheap snapshot of the fields higher layers need to
// track an in-flight reply without retaining the whole message.
type MessageInfo struct {
	Seqno int32
	Type  uint32
}

// NewMessageInfo copies the correlation fields out of a message.
func NewMessageInfo(m *Message) MessageInfo {
	return MessageInfo{Seqno: m.Seqno(), Type: m.Type()}
}
