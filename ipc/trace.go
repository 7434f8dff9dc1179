package ipc

// Accessors for the trace-augmented header segment. All of them require
// the message to carry the trace variant; the segment does not exist in
// a plain header.

func (m *Message) traceOffset() (int, error) {
	if !m.HasTraceHeader() {
		return 0, ErrNoTraceHeader
	}
	return m.off.trace, nil
}

func (m *Message) TaskID() (uint64, error) {
	off, err := m.traceOffset()
	if err != nil {
		return 0, err
	}
	return m.buf.HeaderUint64(off)
}

func (m *Message) SetTaskID(id uint64) error {
	off, err := m.traceOffset()
	if err != nil {
		return err
	}
	return m.buf.SetHeaderUint64(off, id)
}

func (m *Message) SourceEventID() (uint64, error) {
	off, err := m.traceOffset()
	if err != nil {
		return 0, err
	}
	return m.buf.HeaderUint64(off + 8)
}

func (m *Message) SetSourceEventID(id uint64) error {
	off, err := m.traceOffset()
	if err != nil {
		return err
	}
	return m.buf.SetHeaderUint64(off+8, id)
}

func (m *Message) ParentTaskID() (uint64, error) {
	off, err := m.traceOffset()
	if err != nil {
		return 0, err
	}
	return m.buf.HeaderUint64(off + 16)
}

func (m *Message) SetParentTaskID(id uint64) error {
	off, err := m.traceOffset()
	if err != nil {
		return err
	}
	return m.buf.SetHeaderUint64(off+16, id)
}

func (m *Message) SourceEventType() (uint32, error) {
	off, err := m.traceOffset()
	if err != nil {
		return 0, err
	}
	return m.buf.HeaderUint32(off + 24)
}

func (m *Message) SetSourceEventType(t uint32) error {
	off, err := m.traceOffset()
	if err != nil {
		return err
	}
	return m.buf.SetHeaderUint32(off+24, t)
}
