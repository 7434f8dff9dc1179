package ipc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/ipcmsg/internal/testutil/testlog"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	testlog.Start(t)
	r, err := NewRouter(DefaultLayout(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

func newSyncRequest(t *testing.T, seqno int32, nested NestedLevel) *Message {
	t.Helper()
	msg := newTestMessage(t, Options{Nested: nested})
	msg.SetSync()
	msg.SetSeqno(seqno)
	return msg
}

func TestNestedReplyNotMistakenForOuter(t *testing.T) {
	router := newTestRouter(t)

	// Outer sync call, seqno 7, not nested.
	outer := newSyncRequest(t, 7, NotNested)
	if err := router.RegisterRequest(outer); err != nil {
		t.Fatalf("register outer: %v", err)
	}

	// While suspended on seqno 7 the caller handles an incoming
	// nested-inside-sync call and issues its own nested request.
	nested := newSyncRequest(t, 8, NestedInsideSync)
	if err := router.RegisterRequest(nested); err != nil {
		t.Fatalf("register nested: %v", err)
	}

	// Both replies are in flight concurrently; the nested one lands
	// first.
	nestedReply, err := NewReply(nested)
	if err != nil {
		t.Fatalf("nested reply: %v", err)
	}
	outerReply, err := NewReply(outer)
	if err != nil {
		t.Fatalf("outer reply: %v", err)
	}
	if err := router.ResolveReply(nestedReply); err != nil {
		t.Fatalf("resolve nested: %v", err)
	}
	if err := router.ResolveReply(outerReply); err != nil {
		t.Fatalf("resolve outer: %v", err)
	}

	got, err := router.Await(context.Background(), 8)
	if err != nil {
		t.Fatalf("await nested: %v", err)
	}
	if got.Seqno() != 8 || got.NestedLevel() != NestedInsideSync {
		t.Fatalf("nested reply mixed up: seqno=%d nested=%v", got.Seqno(), got.NestedLevel())
	}
	got, err = router.Await(context.Background(), 7)
	if err != nil {
		t.Fatalf("await outer: %v", err)
	}
	if got.Seqno() != 7 || got.NestedLevel() != NotNested {
		t.Fatalf("outer reply mixed up: seqno=%d nested=%v", got.Seqno(), got.NestedLevel())
	}
}

func TestDuplicateAndUnmatchedRepliesAreViolations(t *testing.T) {
	router := newTestRouter(t)
	req := newSyncRequest(t, 3, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}

	reply, err := NewReply(req)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := router.ResolveReply(reply); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	dup, err := NewReply(req)
	if err != nil {
		t.Fatalf("dup reply: %v", err)
	}
	if err := router.ResolveReply(dup); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("duplicate reply: %v", err)
	}

	stray, err := NewReplyFromInfo(DefaultLayout(), MessageInfo{Seqno: 999, Type: 1})
	if err != nil {
		t.Fatalf("stray reply: %v", err)
	}
	if err := router.ResolveReply(stray); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("unmatched reply: %v", err)
	}
}

func TestRegisterRequestRules(t *testing.T) {
	router := newTestRouter(t)

	async := newTestMessage(t, Options{})
	async.SetSeqno(1)
	if err := router.RegisterRequest(async); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("async registration: %v", err)
	}

	req := newSyncRequest(t, 2, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}
	again := newSyncRequest(t, 2, NotNested)
	if err := router.RegisterRequest(again); !errors.Is(err, ErrDuplicateSeqno) {
		t.Fatalf("duplicate seqno: %v", err)
	}
}

func TestValidateNesting(t *testing.T) {
	cases := []struct {
		outgoing, outstanding NestedLevel
		ok                    bool
	}{
		{NotNested, NotNested, true},
		{NestedInsideSync, NestedInsideSync, true},
		{NestedInsideCPOW, NestedInsideSync, true},
		{NotNested, NestedInsideSync, false},
		{NestedInsideSync, NestedInsideCPOW, false},
	}
	for _, tc := range cases {
		err := ValidateNesting(tc.outgoing, tc.outstanding)
		if tc.ok && err != nil {
			t.Fatalf("%v under %v: unexpected %v", tc.outgoing, tc.outstanding, err)
		}
		if !tc.ok && !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("%v under %v: expected violation, got %v", tc.outgoing, tc.outstanding, err)
		}
	}
	if err := ValidateNesting(NestedLevel(0), NotNested); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("invalid level: %v", err)
	}
}

func TestShutdownUnblocksWaiters(t *testing.T) {
	router := newTestRouter(t)
	req := newSyncRequest(t, 11, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}

	type result struct {
		reply *Message
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := router.Await(context.Background(), 11)
		done <- result{reply, err}
	}()

	// Give the waiter a moment to block.
	time.Sleep(10 * time.Millisecond)
	router.Shutdown()

	select {
	case res := <-done:
		if !errors.Is(res.err, ErrReplyError) {
			t.Fatalf("await after shutdown: %v", res.err)
		}
		if res.reply == nil || !res.reply.IsReplyError() {
			t.Fatalf("expected a reply-error reply, got %+v", res.reply)
		}
		if res.reply.Seqno() != 11 {
			t.Fatalf("shutdown reply seqno: %d", res.reply.Seqno())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter still suspended after shutdown")
	}

	// Shutting down twice is safe, and a dead channel rejects new
	// registrations.
	router.Shutdown()
	late := newSyncRequest(t, 12, NotNested)
	if err := router.RegisterRequest(late); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("register after shutdown: %v", err)
	}
}

func TestShutdownPreservesResolvedReply(t *testing.T) {
	router := newTestRouter(t)
	req := newSyncRequest(t, 7, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}
	reply, err := NewReply(req)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := router.ResolveReply(reply); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Shutdown must not destroy a reply its waiter has not collected
	// yet, and a successful reply stays a success.
	router.Shutdown()
	got, err := router.Await(context.Background(), 7)
	if err != nil {
		t.Fatalf("await after shutdown: %v", err)
	}
	if got == nil || got.IsReplyError() || got.Seqno() != 7 {
		t.Fatalf("resolved reply lost: %+v", got)
	}
}

func TestLateReplyAfterCancelIsDiscarded(t *testing.T) {
	router := newTestRouter(t)
	req := newSyncRequest(t, 41, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := router.Await(ctx, 41); !errors.Is(err, context.Canceled) {
		t.Fatalf("await on cancelled context: %v", err)
	}

	// The peer is well behaved; its reply just arrived after the waiter
	// gave up. That is not a violation.
	reply, err := NewReply(req)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := router.ResolveReply(reply); err != nil {
		t.Fatalf("late reply treated as violation: %v", err)
	}

	// The slot is gone once the late reply is discarded; a second reply
	// for it is a genuine violation again.
	dup, err := NewReply(req)
	if err != nil {
		t.Fatalf("dup reply: %v", err)
	}
	if err := router.ResolveReply(dup); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("second late reply: %v", err)
	}
}

func TestAwaitHonorsContext(t *testing.T) {
	router := newTestRouter(t)
	req := newSyncRequest(t, 21, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := router.Await(ctx, 21); !errors.Is(err, context.Canceled) {
		t.Fatalf("await on cancelled context: %v", err)
	}
}

func TestNextSeqnoIsMonotonic(t *testing.T) {
	router := newTestRouter(t)
	a := router.NextSeqno()
	b := router.NextSeqno()
	if b <= a {
		t.Fatalf("seqnos not increasing: %d then %d", a, b)
	}
}

func TestReplyErrorPropagatesFromAwait(t *testing.T) {
	router := newTestRouter(t)
	req := newSyncRequest(t, 31, NotNested)
	if err := router.RegisterRequest(req); err != nil {
		t.Fatalf("register: %v", err)
	}
	reply, err := NewReply(req)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	reply.SetReplyError()
	if err := router.ResolveReply(reply); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, err := router.Await(context.Background(), 31)
	if !errors.Is(err, ErrReplyError) {
		t.Fatalf("expected ErrReplyError, got %v", err)
	}
	if got == nil || !got.IsReplyError() {
		t.Fatalf("reply-error reply not returned")
	}
}
