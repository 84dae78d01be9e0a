package bsort

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotDivisible is matched by planning errors for element counts that
	// are not a multiple of the items handled per work-item.
	ErrNotDivisible = errors.New("bsort: element count not divisible by items per thread")

	// ErrInvalidCapability is matched by planning errors for a zero or
	// negative work-group size report.
	ErrInvalidCapability = errors.New("bsort: invalid work-group capability")

	// ErrInvalidLength is matched by planning errors for empty input.
	ErrInvalidLength = errors.New("bsort: invalid element count")

	// ErrInvalidItemsPerThread is matched by planning errors for a
	// non-positive items-per-thread value.
	ErrInvalidItemsPerThread = errors.New("bsort: invalid items per thread")

	// ErrBufferSize is returned when a buffer does not hold exactly the
	// number of elements a plan sorts.
	ErrBufferSize = errors.New("bsort: buffer length does not match plan")

	// ErrBufferBusy is returned when a buffer is already owned by a running
	// dispatch.
	ErrBufferBusy = errors.New("bsort: buffer in use")

	// ErrIncompleteNetwork is returned by Sorter for plans whose network
	// would leave the input partly unsorted.
	ErrIncompleteNetwork = errors.New("bsort: work-group count is not a power of two")

	// ErrNotInitialized is returned by devices used before Init or after Close.
	ErrNotInitialized = errors.New("bsort: device not initialized")

	// ErrNoDevice is returned when no device is available.
	ErrNoDevice = errors.New("bsort: no device")
)

// PlanningErrorKind classifies a PlanningError.
type PlanningErrorKind uint8

const (
	// NotDivisible means n is not a multiple of items per thread.
	NotDivisible PlanningErrorKind = iota + 1

	// InvalidCapability means the device reported no usable work-group size.
	InvalidCapability

	// InvalidLength means n is zero or negative.
	InvalidLength

	// InvalidItemsPerThread means items per thread is zero or negative.
	InvalidItemsPerThread
)

func (k PlanningErrorKind) String() string {
	switch k {
	case NotDivisible:
		return "NotDivisible"
	case InvalidCapability:
		return "InvalidCapability"
	case InvalidLength:
		return "InvalidLength"
	case InvalidItemsPerThread:
		return "InvalidItemsPerThread"
	default:
		return fmt.Sprintf("PlanningErrorKind(%d)", uint8(k))
	}
}

func (k PlanningErrorKind) sentinel() error {
	switch k {
	case NotDivisible:
		return ErrNotDivisible
	case InvalidCapability:
		return ErrInvalidCapability
	case InvalidLength:
		return ErrInvalidLength
	case InvalidItemsPerThread:
		return ErrInvalidItemsPerThread
	default:
		return nil
	}
}

// PlanningError reports input the planner cannot turn into a WorkSizePlan.
// No sort is attempted after a planning error.
type PlanningError struct {
	Kind             PlanningErrorKind
	N                int
	ItemsPerThread   int
	MaxWorkGroupSize int
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("bsort: cannot plan n=%d items/thread=%d max work-group=%d: %s",
		e.N, e.ItemsPerThread, e.MaxWorkGroupSize, e.Kind)
}

// Unwrap returns the sentinel for the error kind, so that
// errors.Is(err, ErrNotDivisible) works.
func (e *PlanningError) Unwrap() error { return e.Kind.sentinel() }

// DispatchError reports the launch that stopped a dispatch. Index is the
// position of Stage in the network. The buffer content is undefined after a
// dispatch error.
type DispatchError struct {
	Index int
	Stage Descriptor
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("bsort: stage %d (%s, %s) failed: %v", e.Index, e.Stage, e.Stage.Kernel(), e.Err)
}

// Unwrap returns the launcher's error unchanged.
func (e *DispatchError) Unwrap() error { return e.Err }

// LaunchError is returned by devices when a kernel launch cannot be issued.
type LaunchError struct {
	Kernel string
	Reason string
	Err    error
}

func (e *LaunchError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("bsort: launch %s: %s: %v", e.Kernel, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("bsort: launch %s: %v", e.Kernel, e.Err)
	default:
		return fmt.Sprintf("bsort: launch %s: %s", e.Kernel, e.Reason)
	}
}

func (e *LaunchError) Unwrap() error { return e.Err }

// OrderError reports the first pair of elements out of order after a sort.
type OrderError struct {
	Index     int
	Prev      float32
	Next      float32
	Direction Direction
}

func (e *OrderError) Error() string {
	op := ">"
	if e.Direction.IsDescending() {
		op = "<"
	}
	return fmt.Sprintf("bsort: %s sort failed at index %d: %v %s %v",
		e.Direction, e.Index, e.Prev, op, e.Next)
}
