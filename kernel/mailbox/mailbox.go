// Package mailbox is a fixed-size queue from interrupt context to a task.
package mailbox

import "sync/atomic"

// Slots is the capacity of a Mailbox.
const Slots = 8

// Mailbox is a single-producer, single-consumer ring. The producer is
// interrupt code (handlers never nest, so there is one producer at a time)
// and the consumer is a task. It never allocates or blocks.
type Mailbox[T any] struct {
	_       [0]func() // prevent accidental copying.
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint32
	slots   [Slots]T
}

// TrySend enqueues v, returning false (and counting a drop) if the mailbox
// is full.
func (mb *Mailbox[T]) TrySend(v T) bool {
	head := mb.head.Load()
	if head-mb.tail.Load() >= Slots {
		mb.dropped.Add(1)
		return false
	}
	mb.slots[head%Slots] = v
	// Publish only after the slot is written.
	mb.head.Store(head + 1)
	return true
}

// TryRecv dequeues one value, returning false if the mailbox is empty.
func (mb *Mailbox[T]) TryRecv() (T, bool) {
	tail := mb.tail.Load()
	if tail == mb.head.Load() {
		var zero T
		return zero, false
	}
	v := mb.slots[tail%Slots]
	mb.tail.Store(tail + 1)
	return v, true
}

// Len is the number of queued values.
func (mb *Mailbox[T]) Len() int { return int(mb.head.Load() - mb.tail.Load()) }

// Dropped counts the values TrySend refused.
func (mb *Mailbox[T]) Dropped() uint32 { return mb.dropped.Load() }
