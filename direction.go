package bsort

import (
	"fmt"
	"strings"
)

// ItemsPerThread is the number of elements one work-item handles in every
// kernel. The kernels are written for exactly eight elements per item.
const ItemsPerThread = 8

// Direction selects the final order of a sort. The numeric value is passed
// verbatim to the merge kernels: zero sorts ascending, anything else
// descending.
type Direction int32

const (
	// Ascending sorts from smallest to largest.
	Ascending Direction = 0

	// Descending sorts from largest to smallest.
	Descending Direction = -1
)

// IsDescending reports whether d requests descending order.
func (d Direction) IsDescending() bool { return d != Ascending }

// String returns the direction name.
func (d Direction) String() string {
	if d.IsDescending() {
		return "descending"
	}
	return "ascending"
}

// ParseDirection parses "asc", "ascending", "desc" or "descending".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "0":
		return Ascending, nil
	case "desc", "descending", "-1":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("bsort: unknown direction %q", s)
	}
}
