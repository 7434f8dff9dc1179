package ipc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MaxDescriptorsPerMessage bounds how many descriptors one message can
// carry. Descriptors travel in bounded ancillary data per transport
// write, so the cap is fixed rather than growable.
const MaxDescriptorsPerMessage = 7

// DescriptorSet is the ordered collection of OS descriptors attached to
// one message. It is created lazily on first attach and owned exclusively
// by that message; cursors need no locking.
type DescriptorSet struct {
	fds      []int
	next     int
	consumed bool
}

func newDescriptorSet() *DescriptorSet {
	return &DescriptorSet{}
}

// Size returns the number of attached descriptors.
func (s *DescriptorSet) Size() int {
	if s == nil {
		return 0
	}
	return len(s.fds)
}

// Add appends fd to the set. It fails once the per-message capacity is
// reached, leaving the set untouched.
func (s *DescriptorSet) Add(fd int) error {
	if len(s.fds) >= MaxDescriptorsPerMessage {
		return ErrDescriptorCapacity
	}
	s.fds = append(s.fds, fd)
	return nil
}

// At returns the descriptor at the given attachment index without
// consuming it.
func (s *DescriptorSet) At(i int) (int, error) {
	if s == nil || i < 0 || i >= len(s.fds) {
		return -1, ErrDescriptorUnderflow
	}
	return s.fds[i], nil
}

// ConsumeNext hands over the next unread descriptor in attachment order.
// Failure leaves the cursor where it was.
func (s *DescriptorSet) ConsumeNext() (int, error) {
	if s == nil || s.next >= len(s.fds) {
		return -1, ErrDescriptorUnderflow
	}
	fd := s.fds[s.next]
	s.next++
	return fd, nil
}

// Take transfers every descriptor to the caller, leaving the set fully
// consumed. The transport uses this when shipping the message; the
// returned handles are no longer this set's to close.
func (s *DescriptorSet) Take() []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s.fds))
	copy(out, s.fds)
	s.next = len(s.fds)
	s.consumed = true
	return out
}

// CloseUnconsumed closes every descriptor that was never handed over.
// Safe to call more than once; each descriptor is closed exactly once.
func (s *DescriptorSet) CloseUnconsumed() error {
	if s == nil || s.consumed {
		return nil
	}
	var firstErr error
	for _, fd := range s.fds[s.next:] {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("ipc: close descriptor %d: %w", fd, err)
		}
	}
	s.next = len(s.fds)
	s.consumed = true
	return firstErr
}
