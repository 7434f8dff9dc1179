package ipc

// Dispatch helpers invoked by generated per-interface stubs. The handler
// shape is a closed set selected by the call site: with or without the
// decoded message, fallible or not. Each helper invokes exactly the
// given handler, passing the original message when the shape takes one;
// no retries, no side effects beyond the call.

// Dispatch invokes a no-argument handler.
func Dispatch(m *Message, fn func()) error {
	fn()
	return nil
}

// DispatchErr invokes a fallible no-argument handler.
func DispatchErr(m *Message, fn func() error) error {
	return fn()
}

// DispatchMessage invokes a handler that takes the decoded message.
func DispatchMessage(m *Message, fn func(*Message)) error {
	fn(m)
	return nil
}

// DispatchMessageErr invokes a fallible handler that takes the decoded
// message.
func DispatchMessageErr(m *Message, fn func(*Message) error) error {
	return fn(m)
}
