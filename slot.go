package uow

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// ErrSlotOpen is returned by Slot.Open when the slot was already
// opened; Open is single-use.
var ErrSlotOpen = errors.New("uow: slot already opened")

// SlotPolicy controls what happens when a slot's parent record closes
// before the slot is filled.
type SlotPolicy struct {
	wait *FlushGuard
}

// DiscardOnClose is the policy under which an unfilled slot simply
// contributes nothing to the parent entry.
func DiscardOnClose() SlotPolicy { return SlotPolicy{} }

// WaitForSlot defers the parent's emission: the slot holds the given
// flush guard until it is filled or its writer is dropped.
func WaitForSlot(fg *FlushGuard) SlotPolicy { return SlotPolicy{wait: fg} }

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOpen
	slotFilled
	slotClosed
)

// Slot is a one-shot cell that lets a sub-task contribute a value to a
// parent record without sharing mutable ownership of the whole record.
// States: empty, open (a SlotGuard is outstanding), filled, or closed
// (the writer dropped without filling).
//
// The zero Slot is empty and ready to use.
type Slot[T any] struct {
	mu    sync.Mutex
	state slotState
	value T
	done  chan struct{}
	guard *FlushGuard
}

// Open vends the single writer side of the slot. A second call fails
// with ErrSlotOpen. The policy decides whether an unfilled slot defers
// the parent's emission (WaitForSlot) or is discarded.
func (s *Slot[T]) Open(policy SlotPolicy) (*SlotGuard[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != slotEmpty {
		return nil, ErrSlotOpen
	}
	s.state = slotOpen
	s.guard = policy.wait
	s.ensureDone()
	return &SlotGuard[T]{slot: s}, nil
}

// Wait blocks until the slot is finalized (filled or its writer
// dropped) or the context expires. This is the library's one deliberate
// suspension point, used only by callers that explicitly choose to
// await a sub-task's contribution. The boolean reports whether a value
// was filled.
func (s *Slot[T]) Wait(ctx context.Context) (T, bool) {
	s.mu.Lock()
	done := s.ensureDone()
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.state == slotFilled
}

// CloseValue snapshots the slot: the filled value's closed form, or the
// empty value when nothing was filled.
func (s *Slot[T]) CloseValue() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != slotFilled {
		return Value{}
	}
	return closeValueOf(s.value)
}

// ensureDone lazily creates the finalization channel. Callers hold mu.
func (s *Slot[T]) ensureDone() chan struct{} {
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

// finalize moves the slot to a terminal state and releases the held
// flush guard, letting a deferred parent emit. Reports whether this
// call made the transition.
func (s *Slot[T]) finalize(state slotState, v T, filled bool) bool {
	s.mu.Lock()
	if s.state != slotOpen {
		s.mu.Unlock()
		return false
	}
	s.state = state
	if filled {
		s.value = v
	}
	done := s.ensureDone()
	guard := s.guard
	s.guard = nil
	s.mu.Unlock()

	close(done)
	guard.Close()
	return true
}

// SlotGuard is the writer side of a slot, vended once by Open.
type SlotGuard[T any] struct {
	slot *Slot[T]
}

// Fill finalizes the slot with a value. Only the first finalization
// (Fill or Close) wins; Fill reports whether it did.
func (g *SlotGuard[T]) Fill(v T) bool {
	return g.slot.finalize(slotFilled, v, true)
}

// Close drops the writer without filling. The parent's snapshot sees
// an empty value. Idempotent.
func (g *SlotGuard[T]) Close() {
	var zero T
	g.slot.finalize(slotClosed, zero, false)
}

// closeValueOf snapshots an arbitrary leaf into a Value, using the same
// rules as the record walker.
func closeValueOf(v any) Value {
	if vc, ok := v.(ValueCloser); ok {
		return vc.CloseValue()
	}
	if val, ok := v.(Value); ok {
		return val
	}
	w := &recordWalker{}
	out, ok := w.closeLeaf(reflect.StructField{Name: "slot"}, reflect.ValueOf(v), fieldTag{})
	if !ok {
		return Value{}
	}
	return out
}
