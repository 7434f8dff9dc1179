package ipc

import (
	"errors"
	"testing"
)

func TestDispatchShapes(t *testing.T) {
	msg := newTestMessage(t, Options{})
	boom := errors.New("handler failed")

	called := false
	if err := Dispatch(msg, func() { called = true }); err != nil || !called {
		t.Fatalf("no-arg: called=%v err=%v", called, err)
	}

	if err := DispatchErr(msg, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("no-arg fallible: %v", err)
	}

	var got *Message
	if err := DispatchMessage(msg, func(m *Message) { got = m }); err != nil || got != msg {
		t.Fatalf("with-message: got=%p want=%p err=%v", got, msg, err)
	}

	got = nil
	err := DispatchMessageErr(msg, func(m *Message) error {
		got = m
		return boom
	})
	if !errors.Is(err, boom) || got != msg {
		t.Fatalf("with-message fallible: got=%p err=%v", got, err)
	}
}
