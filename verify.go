package bsort

import (
	psort "github.com/exascience/pargo/sort"
)

// ascending and descending attach sort.Interface to a float32 slice for the
// parallel order check. Swap is never called by IsSorted.
type ascending []float32

func (s ascending) Len() int           { return len(s) }
func (s ascending) Less(i, j int) bool { return s[i] < s[j] }
func (s ascending) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

type descending []float32

func (s descending) Len() int           { return len(s) }
func (s descending) Less(i, j int) bool { return s[i] > s[j] }
func (s descending) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Verify checks that data is ordered in direction dir. The check runs in
// parallel and stops early. On failure it returns an *OrderError naming the
// first element that breaks the order.
func Verify(data []float32, dir Direction) error {
	var ok bool
	if dir.IsDescending() {
		ok = psort.IsSorted(descending(data))
	} else {
		ok = psort.IsSorted(ascending(data))
	}
	if ok {
		return nil
	}
	for i := 1; i < len(data); i++ {
		prev, next := data[i-1], data[i]
		if (dir.IsDescending() && next > prev) || (!dir.IsDescending() && next < prev) {
			return &OrderError{Index: i, Prev: prev, Next: next, Direction: dir}
		}
	}
	return nil
}
