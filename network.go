package bsort

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Kind identifies the variant of a Descriptor.
type Kind uint8

const (
	// KindInit sorts each work-group's block, alternating direction by group.
	KindInit Kind = iota

	// KindStageN compares half-blocks Stage apart while building bitonic
	// sequences HighStage work-groups long.
	KindStageN

	// KindStage0 finishes a HighStage round inside each work-group.
	KindStage0

	// KindMerge compares half-blocks Stage apart in the final direction.
	KindMerge

	// KindMergeLast finishes the sort inside each work-group.
	KindMergeLast
)

var kindNames = [...]string{
	KindInit:      "Init",
	KindStageN:    "StageN",
	KindStage0:    "Stage0",
	KindMerge:     "Merge",
	KindMergeLast: "MergeLast",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Descriptor is one kernel phase of the network. Stage and HighStage are set
// only for the kinds that carry them. Descriptors are plain values and
// compare with ==.
type Descriptor struct {
	Kind      Kind
	Stage     int
	HighStage int
}

// Init returns the descriptor of the initial per-group sort.
func Init() Descriptor { return Descriptor{Kind: KindInit} }

// StageN returns a cross-group comparison step.
func StageN(stage, highStage int) Descriptor {
	return Descriptor{Kind: KindStageN, Stage: stage, HighStage: highStage}
}

// Stage0 returns the in-group step closing a high-stage round.
func Stage0(highStage int) Descriptor {
	return Descriptor{Kind: KindStage0, HighStage: highStage}
}

// Merge returns a cross-group merge step.
func Merge(stage int) Descriptor {
	return Descriptor{Kind: KindMerge, Stage: stage}
}

// MergeLast returns the final in-group merge.
func MergeLast() Descriptor { return Descriptor{Kind: KindMergeLast} }

func (d Descriptor) String() string {
	switch d.Kind {
	case KindStageN:
		return fmt.Sprintf("StageN{%d,%d}", d.Stage, d.HighStage)
	case KindStage0:
		return fmt.Sprintf("Stage0{%d}", d.HighStage)
	case KindMerge:
		return fmt.Sprintf("Merge{%d}", d.Stage)
	default:
		return d.Kind.String()
	}
}

// Stages yields the kernel phases that sort a buffer laid out by plan.
//
// After Init every work-group holds a sorted block, ascending for even groups
// and descending for odd ones. Each high-stage round doubles the length of the
// bitonic sequences spanning several groups: one StageN per comparison
// distance, then a Stage0 for the distances inside a group. The Merge steps
// and MergeLast then fold the single remaining bitonic sequence into the
// requested order.
//
// The sequence is only complete when plan.NumStages is a power of two. For
// other counts the phases are still yielded as computed and the result of
// running them is undefined; see WorkSizePlan.Complete.
func Stages(plan WorkSizePlan) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		if !yield(Init()) {
			return
		}
		for high := 2; high < plan.NumStages; high <<= 1 {
			for stage := high; stage > 1; stage >>= 1 {
				if !yield(StageN(stage, high)) {
					return
				}
			}
			if !yield(Stage0(high)) {
				return
			}
		}
		for stage := plan.NumStages; stage > 1; stage >>= 1 {
			if !yield(Merge(stage)) {
				return
			}
		}
		yield(MergeLast())
	}
}

// Network is everything a dispatch needs: the geometry, the final direction
// and the ordered phases.
type Network struct {
	Plan      WorkSizePlan
	Direction Direction
	Stages    []Descriptor
}

// BuildNetwork collects the phases for plan. Equal inputs give equal
// networks.
func BuildNetwork(plan WorkSizePlan, dir Direction) Network {
	return Network{
		Plan:      plan,
		Direction: dir,
		Stages:    slices.Collect(Stages(plan)),
	}
}

// Len returns the number of launches the network issues.
func (n Network) Len() int { return len(n.Stages) }

func (n Network) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [", n.Plan, n.Direction)
	for i, d := range n.Stages {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.String())
	}
	b.WriteByte(']')
	return b.String()
}
