package ipc

import (
	"testing"
)

type flagState struct {
	nested      NestedLevel
	priority    Priority
	sync        bool
	reply       bool
	replyError  bool
	interrupt   bool
	compression Compression
	constructor bool
	trace       bool
}

func snapshotFlags(m *Message) flagState {
	return flagState{
		nested:      m.NestedLevel(),
		priority:    m.Priority(),
		sync:        m.IsSync(),
		reply:       m.IsReply(),
		replyError:  m.IsReplyError(),
		interrupt:   m.IsInterrupt(),
		compression: m.CompressType(),
		constructor: m.IsConstructor(),
		trace:       m.HasTraceHeader(),
	}
}

func newTestMessage(t *testing.T, opts Options) *Message {
	t.Helper()
	msg, err := New(DefaultLayout(), 5, 0x42, opts)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	return msg
}

func TestFlagIsolation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Message)
		check  func(before, after flagState) bool
	}{
		{
			name:   "nesting",
			mutate: func(m *Message) { m.SetNestedLevel(NestedInsideCPOW) },
			check: func(b, a flagState) bool {
				b.nested, a.nested = 0, 0
				return a == b
			},
		},
		{
			name:   "priority",
			mutate: func(m *Message) { m.SetPriority(HighPriority) },
			check: func(b, a flagState) bool {
				b.priority, a.priority = 0, 0
				return a == b
			},
		},
		{
			name:   "sync",
			mutate: func(m *Message) { m.SetSync() },
			check: func(b, a flagState) bool {
				b.sync, a.sync = false, false
				return a == b
			},
		},
		{
			name:   "reply",
			mutate: func(m *Message) { m.SetReply() },
			check: func(b, a flagState) bool {
				b.reply, a.reply = false, false
				return a == b
			},
		},
		{
			name:   "reply_error",
			mutate: func(m *Message) { m.SetReplyError() },
			check: func(b, a flagState) bool {
				b.replyError, a.replyError = false, false
				return a == b
			},
		},
		{
			name:   "interrupt",
			mutate: func(m *Message) { m.SetInterrupt() },
			check: func(b, a flagState) bool {
				b.interrupt, a.interrupt = false, false
				return a == b
			},
		},
		{
			name:   "constructor",
			mutate: func(m *Message) { m.SetConstructor() },
			check: func(b, a flagState) bool {
				b.constructor, a.constructor = false, false
				return a == b
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := newTestMessage(t, Options{Nested: NestedInsideSync, Priority: InputPriority})
			before := snapshotFlags(msg)
			tc.mutate(msg)
			after := snapshotFlags(msg)
			if !tc.check(before, after) {
				t.Fatalf("mutating %s disturbed other flags: before=%+v after=%+v", tc.name, before, after)
			}
		})
	}
}

func TestFlagSettersReadBack(t *testing.T) {
	msg := newTestMessage(t, Options{})

	if err := msg.SetNestedLevel(NestedInsideSync); err != nil {
		t.Fatalf("set nesting: %v", err)
	}
	if got := msg.NestedLevel(); got != NestedInsideSync {
		t.Fatalf("nesting read back: %v", got)
	}
	if err := msg.SetPriority(InputPriority); err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if got := msg.Priority(); got != InputPriority {
		t.Fatalf("priority read back: %v", got)
	}

	msg.SetSync()
	msg.SetInterrupt()
	msg.SetReply()
	msg.SetReplyError()
	if !msg.IsSync() || !msg.IsInterrupt() || !msg.IsReply() || !msg.IsReplyError() {
		t.Fatalf("single-bit setters did not stick: %+v", snapshotFlags(msg))
	}
}

func TestSetNestedLevelRejectsInvalid(t *testing.T) {
	msg := newTestMessage(t, Options{})
	if err := msg.SetNestedLevel(NestedLevel(0)); err == nil {
		t.Fatalf("expected error for nesting level 0")
	}
	if err := msg.SetPriority(Priority(3)); err == nil {
		t.Fatalf("expected error for priority 3")
	}
}

func TestCompressTypePrecedence(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		both bool
		want Compression
	}{
		{name: "none", opts: Options{}, want: CompressionNone},
		{name: "enabled", opts: Options{Compression: CompressionEnabled}, want: CompressionEnabled},
		{name: "all", opts: Options{Compression: CompressionAll}, want: CompressionAll},
		{name: "all_wins_over_enabled", opts: Options{Compression: CompressionEnabled}, both: true, want: CompressionAll},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := newTestMessage(t, tc.opts)
			if tc.both {
				// Channel-wide compress-all on top of the
				// per-message opt-in.
				msg.setFlags(msg.flags() | compressAllBit)
			}
			if got := msg.CompressType(); got != tc.want {
				t.Fatalf("compress type: got %v want %v", got, tc.want)
			}
		})
	}
}
