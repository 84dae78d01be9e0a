// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cpu

import (
	"github.com/ajroetker/go-highway/hwy"
)

// exchange orders a[i] and b[i] pairwise: the smaller value goes to a for an
// ascending exchange, to b for a descending one. Full vectors go through
// highway min/max; the tail is handled lane by lane.
func exchange(a, b []float32, desc bool) {
	n := min(len(a), len(b))
	lanes := hwy.MaxLanes[float32]()
	i := 0
	if lanes > 1 {
		for ; i+lanes <= n; i += lanes {
			va := hwy.Load(a[i : i+lanes])
			vb := hwy.Load(b[i : i+lanes])
			lo, hi := hwy.Min(va, vb), hwy.Max(va, vb)
			if desc {
				lo, hi = hi, lo
			}
			hwy.Store(lo, a[i:i+lanes])
			hwy.Store(hi, b[i:i+lanes])
		}
	}
	for ; i < n; i++ {
		x, y := a[i], b[i]
		if (x > y) != desc {
			a[i], b[i] = y, x
		}
	}
}

// merge turns a bitonic sequence whose length is a power of two into a
// sorted one.
func merge(x []float32, desc bool) {
	for d := len(x) / 2; d >= 1; d >>= 1 {
		for s := 0; s+2*d <= len(x); s += 2 * d {
			exchange(x[s:s+d], x[s+d:s+2*d], desc)
		}
	}
}

// sortRegion sorts x, whose length is a power of two, with a bitonic network.
// Blocks of size k are sorted in alternating directions so that each pair
// forms a bitonic sequence for the next round.
func sortRegion(x []float32, desc bool) {
	n := len(x)
	for k := 2; k <= n; k <<= 1 {
		for s := 0; s+k <= n; s += k {
			merge(x[s:s+k], desc != ((s/k)&1 == 1))
		}
	}
}
