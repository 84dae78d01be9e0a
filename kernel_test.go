package bsort

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDescriptorKernel(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want string
	}{
		{Init(), "bsort_init"},
		{StageN(2, 2), "bsort_stage_n"},
		{Stage0(4), "bsort_stage_0"},
		{Merge(8), "bsort_merge"},
		{MergeLast(), "bsort_merge_last"},
		{Descriptor{Kind: 42}, ""},
	}
	for _, tt := range tests {
		if got := tt.d.Kernel(); got != tt.want {
			t.Errorf("%v.Kernel() = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestKernelsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kernels() {
		if seen[k] {
			t.Errorf("duplicate kernel %q", k)
		}
		seen[k] = true
		if _, ok := kindOf(k); !ok {
			t.Errorf("kindOf(%q) not found", k)
		}
	}
	if len(seen) != 5 {
		t.Errorf("got %d kernels, want 5", len(seen))
	}
}

func TestLaunchArgs(t *testing.T) {
	plan := WorkSizePlan{LocalSize: 16, GlobalSize: 64, NumStages: 4}
	buf := NewSortBuffer(make(sliceMemory, plan.Len()))

	tests := []struct {
		d    Descriptor
		dir  Direction
		want []Arg
	}{
		{Init(), Descending, []Arg{BufferArg(buf), LocalArg(128)}},
		{StageN(4, 8), Descending, []Arg{BufferArg(buf), LocalArg(128), ScalarArg(4), ScalarArg(8)}},
		{Stage0(8), Descending, []Arg{BufferArg(buf), LocalArg(128), ScalarArg(8)}},
		{Merge(4), Descending, []Arg{BufferArg(buf), LocalArg(128), ScalarArg(4), ScalarArg(-1)}},
		{Merge(2), Ascending, []Arg{BufferArg(buf), LocalArg(128), ScalarArg(2), ScalarArg(0)}},
		{MergeLast(), Descending, []Arg{BufferArg(buf), LocalArg(128), ScalarArg(-1)}},
	}
	for _, tt := range tests {
		got := LaunchArgs(tt.d, buf, plan, tt.dir)
		if diff := cmp.Diff(tt.want, got, cmp.Comparer(func(a, b *SortBuffer) bool { return a == b })); diff != "" {
			t.Errorf("LaunchArgs(%v) mismatch (-want +got):\n%s", tt.d, diff)
		}
		// Every shape round-trips through DecodeCall.
		if _, err := DecodeCall(tt.d.Kernel(), got, plan.GlobalSize, plan.LocalSize); err != nil {
			t.Errorf("DecodeCall(%v) = %v", tt.d, err)
		}
	}
}

func TestDecodeCall(t *testing.T) {
	plan := WorkSizePlan{LocalSize: 4, GlobalSize: 16, NumStages: 4}
	buf := NewSortBuffer(make(sliceMemory, plan.Len()))

	c, err := DecodeCall(KernelMerge, LaunchArgs(Merge(4), buf, plan, Descending), 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Kind != KindMerge || c.Stage != 4 || c.Direction != Descending {
		t.Errorf("decoded %+v", c)
	}
	if c.Groups() != 4 || c.Region() != 32 {
		t.Errorf("Groups() = %d, Region() = %d", c.Groups(), c.Region())
	}
	if !c.Descending(0) || !c.Descending(3) {
		t.Error("merge call should follow the direction argument")
	}

	c, err = DecodeCall(KernelStageN, LaunchArgs(StageN(2, 2), buf, plan, Ascending), 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	for g, want := range []bool{false, false, true, true} {
		if got := c.Descending(g); got != want {
			t.Errorf("StageN{2,2}.Descending(%d) = %v, want %v", g, got, want)
		}
	}
	// Groups 0 and 1 compare half-blocks (0,2) and (1,3); 2 and 3 take (4,6) and (5,7).
	for g, want := range [][2]int{{0, 2}, {1, 3}, {4, 6}, {5, 7}} {
		lo, hi := c.Partner(g)
		if lo != want[0] || hi != want[1] {
			t.Errorf("Partner(%d) = (%d, %d), want %v", g, lo, hi, want)
		}
	}

	c, err = DecodeCall(KernelInit, LaunchArgs(Init(), buf, plan, Ascending), 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Descending(0) || !c.Descending(1) {
		t.Error("init should alternate direction by group")
	}
}

func TestDecodeCallErrors(t *testing.T) {
	plan := WorkSizePlan{LocalSize: 4, GlobalSize: 16, NumStages: 4}
	buf := NewSortBuffer(make(sliceMemory, plan.Len()))
	short := NewSortBuffer(make(sliceMemory, 8))

	tests := []struct {
		name   string
		kernel string
		args   []Arg
		global int
		local  int
	}{
		{"unknown kernel", "bsort_unknown", []Arg{BufferArg(buf), LocalArg(32)}, 16, 4},
		{"missing args", KernelStageN, []Arg{BufferArg(buf), LocalArg(32)}, 16, 4},
		{"wrong arg kind", KernelInit, []Arg{LocalArg(32), BufferArg(buf)}, 16, 4},
		{"global not divisible", KernelInit, []Arg{BufferArg(buf), LocalArg(32)}, 14, 4},
		{"zero local", KernelInit, []Arg{BufferArg(buf), LocalArg(32)}, 16, 0},
		{"nil buffer", KernelInit, []Arg{BufferArg(nil), LocalArg(32)}, 16, 4},
		{"short buffer", KernelInit, []Arg{BufferArg(short), LocalArg(32)}, 16, 4},
		{"small scratch", KernelInit, []Arg{BufferArg(buf), LocalArg(16)}, 16, 4},
		{"zero stage", KernelMerge, []Arg{BufferArg(buf), LocalArg(32), ScalarArg(0), ScalarArg(0)}, 16, 4},
		{"zero high stage", KernelStage0, []Arg{BufferArg(buf), LocalArg(32), ScalarArg(0)}, 16, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCall(tt.kernel, tt.args, tt.global, tt.local)
			var le *LaunchError
			if !errors.As(err, &le) {
				t.Fatalf("DecodeCall() error = %v, want *LaunchError", err)
			}
			if le.Kernel != tt.kernel {
				t.Errorf("Kernel = %q, want %q", le.Kernel, tt.kernel)
			}
		})
	}
}

func TestArgString(t *testing.T) {
	buf := NewSortBuffer(make(sliceMemory, 64))
	tests := []struct {
		a    Arg
		want string
	}{
		{BufferArg(buf), "buffer(64)"},
		{BufferArg(nil), "buffer(nil)"},
		{LocalArg(32), "local(32)"},
		{ScalarArg(-1), "-1"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
