package bsort

import "sync/atomic"

// Memory is device-resident storage for float32 elements. Each device
// supplies its own implementation and recognizes only its own memory.
type Memory interface {
	// Len returns the number of elements.
	Len() int
}

// SortBuffer is the one piece of shared mutable state a sort works on.
//
// It is created by a device allocator, handed to Execute by reference and
// mutated in place by every launch. While a dispatch runs the buffer is owned
// by that dispatch: a second Execute fails with ErrBufferBusy and devices
// refuse uploads and downloads.
type SortBuffer struct {
	mem  Memory
	busy atomic.Bool
}

// NewSortBuffer wraps device memory. Devices call it from Alloc.
func NewSortBuffer(mem Memory) *SortBuffer {
	return &SortBuffer{mem: mem}
}

// Len returns the number of elements in the buffer.
func (b *SortBuffer) Len() int {
	if b == nil || b.mem == nil {
		return 0
	}
	return b.mem.Len()
}

// Memory returns the device memory behind the buffer.
func (b *SortBuffer) Memory() Memory { return b.mem }

// Busy reports whether a dispatch currently owns the buffer.
func (b *SortBuffer) Busy() bool { return b.busy.Load() }

func (b *SortBuffer) acquire() bool { return b.busy.CompareAndSwap(false, true) }

func (b *SortBuffer) release() { b.busy.Store(false) }
