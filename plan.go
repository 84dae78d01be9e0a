package bsort

import "fmt"

// Capability is the part of a device report the planner needs.
type Capability struct {
	// MaxWorkGroupSize is the largest number of work-items the device runs
	// in one work-group.
	MaxWorkGroupSize int
}

// WorkSizePlan is the launch geometry shared by every kernel of one sort.
//
// LocalSize is a power of two no larger than the device capability or
// GlobalSize. GlobalSize is the element count divided by the items handled
// per work-item, and NumStages is the number of work-groups.
type WorkSizePlan struct {
	LocalSize  int
	GlobalSize int
	NumStages  int
}

// Len returns the number of elements the plan sorts.
func (p WorkSizePlan) Len() int { return p.GlobalSize * ItemsPerThread }

// ScratchSize returns the local scratch each work-group needs, in elements.
func (p WorkSizePlan) ScratchSize() int { return ItemsPerThread * p.LocalSize }

// Complete reports whether the network built from p orders every element.
// That requires the work-groups to tile the global range exactly and their
// count to be a power of two.
func (p WorkSizePlan) Complete() bool {
	return isPowerOfTwo(p.LocalSize) &&
		p.GlobalSize%p.LocalSize == 0 &&
		isPowerOfTwo(p.NumStages)
}

func (p WorkSizePlan) String() string {
	return fmt.Sprintf("local=%d global=%d stages=%d", p.LocalSize, p.GlobalSize, p.NumStages)
}

// Plan is PlanWorkSize with the kernels' fixed ItemsPerThread.
func Plan(n int, c Capability) (WorkSizePlan, error) {
	return PlanWorkSize(n, ItemsPerThread, c)
}

// PlanWorkSize computes the launch geometry for sorting n elements when each
// work-item handles itemsPerThread of them.
//
// The local size is the largest power of two the capability allows, clamped
// to the global size when the whole input fits in one work-group. The result
// depends only on the arguments.
//
// Callers should check Complete before sorting: a global size that is not a
// power of two yields a plan whose network leaves the input partly unsorted.
func PlanWorkSize(n, itemsPerThread int, c Capability) (WorkSizePlan, error) {
	fail := func(kind PlanningErrorKind) (WorkSizePlan, error) {
		return WorkSizePlan{}, &PlanningError{
			Kind:             kind,
			N:                n,
			ItemsPerThread:   itemsPerThread,
			MaxWorkGroupSize: c.MaxWorkGroupSize,
		}
	}
	switch {
	case n <= 0:
		return fail(InvalidLength)
	case itemsPerThread <= 0:
		return fail(InvalidItemsPerThread)
	case c.MaxWorkGroupSize <= 0:
		return fail(InvalidCapability)
	case n%itemsPerThread != 0:
		return fail(NotDivisible)
	}

	local := 1
	for local <= c.MaxWorkGroupSize/2 {
		local *= 2
	}

	// Single work-group case: local stays a power of two.
	global := n / itemsPerThread
	for local > global {
		local /= 2
	}

	return WorkSizePlan{
		LocalSize:  local,
		GlobalSize: global,
		NumStages:  global / local,
	}, nil
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}
