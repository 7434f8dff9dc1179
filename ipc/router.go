package ipc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/ipcmsg/internal/observability"
)

// ValidateNesting enforces the ordering rule for nested calls: while a
// handler is answering an incoming call, it may only issue calls at the
// same or a deeper nesting level. The remote side's stack is already
// inside a blocking wait, so a shallower call can never be serviced.
// A decrease is a protocol error, never silently tolerated.
func ValidateNesting(outgoing, outstanding NestedLevel) error {
	if !outgoing.valid() || !outstanding.valid() {
		return fmt.Errorf("%w: invalid nesting level", ErrProtocolViolation)
	}
	if outgoing < outstanding {
		return fmt.Errorf("%w: nesting level %s under outstanding %s", ErrProtocolViolation, outgoing, outstanding)
	}
	return nil
}

type pendingCall struct {
	info      MessageInfo
	nested    NestedLevel
	txid      int32
	reply     chan *Message
	done      bool
	abandoned bool
}

// Router is the channel-side registry of outstanding sequence numbers.
// It enforces one registration per issued request and exactly one
// resolution per registration, and is the only shared resource in this
// layer: all other state is single-owner.
type Router struct {
	id     string
	layout Layout
	log    zerolog.Logger

	seqno atomic.Int32

	mu      sync.Mutex
	pending map[int32]*pendingCall
	closed  bool
	down    chan struct{}
}

// NewRouter builds a router for one channel connection.
func NewRouter(layout Layout, logger zerolog.Logger) (*Router, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Router{
		id:      id,
		layout:  layout,
		log:     logger.With().Str("channel", id).Logger(),
		pending: make(map[int32]*pendingCall),
		down:    make(chan struct{}),
	}, nil
}

// ChannelID identifies this router in logs and metrics.
func (r *Router) ChannelID() string { return r.id }

// NextSeqno allocates a sequence number unique among this sender's
// outstanding requests.
func (r *Router) NextSeqno() int32 {
	return r.seqno.Add(1)
}

// RegisterRequest records an issued sync or interrupt request so its
// reply can be correlated. Registering the same seqno twice is an error.
func (r *Router) RegisterRequest(m *Message) error {
	if !m.IsSync() && !m.IsInterrupt() {
		return fmt.Errorf("%w: only sync or interrupt calls take replies", ErrProtocolViolation)
	}
	var txid int32
	if !m.IsInterrupt() {
		txid, _ = m.TransactionID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrChannelClosed
	}
	seqno := m.Seqno()
	if _, exists := r.pending[seqno]; exists {
		return fmt.Errorf("%w: seqno %d", ErrDuplicateSeqno, seqno)
	}
	r.pending[seqno] = &pendingCall{
		info:   NewMessageInfo(m),
		nested: m.NestedLevel(),
		txid:   txid,
		reply:  make(chan *Message, 1),
	}
	observability.RecordRequestRegistered(r.id)
	r.log.Debug().Int32("seqno", seqno).Str("nested", m.NestedLevel().String()).Msg("request registered")
	return nil
}

// ResolveReply delivers an incoming reply to its waiter. A reply whose
// seqno has no outstanding request, a second reply for an already
// resolved seqno, and a nested reply carrying the wrong transaction id
// are all protocol violations that should terminate the channel.
func (r *Router) ResolveReply(m *Message) error {
	if !m.IsReply() {
		return fmt.Errorf("%w: message is not a reply", ErrProtocolViolation)
	}
	seqno := m.Seqno()

	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.pending[seqno]
	if !ok {
		observability.RecordProtocolViolation(r.id, "unmatched_reply")
		return fmt.Errorf("%w: reply for unknown seqno %d", ErrProtocolViolation, seqno)
	}
	if call.done {
		observability.RecordProtocolViolation(r.id, "duplicate_reply")
		return fmt.Errorf("%w: duplicate reply for seqno %d", ErrProtocolViolation, seqno)
	}
	if call.abandoned {
		// The waiter gave up on this seqno; the reply is from a
		// well-behaved peer, not a violation. Discard it.
		delete(r.pending, seqno)
		if err := m.Close(); err != nil {
			r.log.Warn().Err(err).Int32("seqno", seqno).Msg("closing discarded reply")
		}
		observability.RecordReplyResolved(r.id, "discarded")
		r.log.Debug().Int32("seqno", seqno).Msg("late reply discarded")
		return nil
	}
	if !m.IsInterrupt() {
		if txid, err := m.TransactionID(); err == nil && txid != call.txid {
			observability.RecordProtocolViolation(r.id, "transaction_mismatch")
			return fmt.Errorf("%w: reply txid %d for transaction %d", ErrProtocolViolation, txid, call.txid)
		}
	}
	call.done = true
	call.reply <- m
	outcome := "ok"
	if m.IsReplyError() {
		outcome = "error"
	}
	observability.RecordReplyResolved(r.id, outcome)
	r.log.Debug().Int32("seqno", seqno).Str("outcome", outcome).Msg("reply resolved")
	return nil
}

// Await blocks the calling goroutine until the reply for seqno arrives,
// the context is cancelled, or the channel shuts down. A reply-error
// reply is returned alongside ErrReplyError so the caller can inspect it.
func (r *Router) Await(ctx context.Context, seqno int32) (*Message, error) {
	r.mu.Lock()
	call, ok := r.pending[seqno]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: seqno %d was never registered", ErrProtocolViolation, seqno)
	}

	select {
	case reply := <-call.reply:
		r.forget(seqno)
		if reply.IsReplyError() {
			return reply, ErrReplyError
		}
		return reply, nil
	case <-ctx.Done():
		r.abandon(seqno)
		return nil, ctx.Err()
	case <-r.down:
		// A genuine reply may already be buffered: Shutdown leaves
		// delivered replies in place and only synthesizes error
		// replies for unresolved slots.
		select {
		case reply := <-call.reply:
			r.forget(seqno)
			if reply.IsReplyError() {
				return reply, ErrReplyError
			}
			return reply, nil
		default:
			r.forget(seqno)
			return nil, ErrChannelClosed
		}
	}
}

func (r *Router) forget(seqno int32) {
	r.mu.Lock()
	delete(r.pending, seqno)
	r.mu.Unlock()
}

// abandon marks a registration whose waiter stopped waiting. The slot
// stays registered so a late reply from the peer is resolved and
// discarded instead of being mistaken for a protocol violation.
func (r *Router) abandon(seqno int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.pending[seqno]
	if !ok {
		return
	}
	if call.done {
		// The reply raced the cancellation in; nobody will collect it.
		delete(r.pending, seqno)
		select {
		case reply := <-call.reply:
			if err := reply.Close(); err != nil {
				r.log.Warn().Err(err).Int32("seqno", seqno).Msg("closing discarded reply")
			}
		default:
		}
		return
	}
	call.abandoned = true
}

// Shutdown unblocks every waiter with a reply-error so no thread stays
// suspended on a dead channel. Replies that were already resolved stay
// buffered: their waiters collect them through Await, before or after
// shutdown, so a successful resolution is never lost.
func (r *Router) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	for seqno, call := range r.pending {
		if call.done || call.abandoned {
			continue
		}
		reply, err := NewReplyFromInfo(r.layout, call.info)
		if err != nil {
			r.log.Error().Err(err).Int32("seqno", seqno).Msg("synthesizing shutdown reply")
			continue
		}
		reply.SetReplyError()
		call.done = true
		call.reply <- reply
	}
	close(r.down)
	r.log.Info().Int("outstanding", len(r.pending)).Msg("channel shut down")
}
