//go:build !nogpu

package gpu

import (
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/bsort"
)

func TestKernelSource(t *testing.T) {
	src := KernelSource(64)
	if strings.Contains(src, "{{") {
		t.Fatal("template placeholders left in source")
	}
	for _, want := range []string{
		"@workgroup_size(64)",
		"array<f32, 512>",
		"const HALF: u32 = 256u;",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q", want)
		}
	}
	for _, k := range bsort.Kernels() {
		if !strings.Contains(src, "fn "+k+"(") {
			t.Errorf("source missing entry point %s", k)
		}
	}
}

func TestCompileKernels(t *testing.T) {
	for _, local := range []int{1, 2, 64, 256} {
		p, err := CompileKernels(local)
		if err != nil {
			t.Fatalf("CompileKernels(%d) = %v", local, err)
		}
		if len(p.SPIRV) == 0 || p.SPIRV[0] != 0x07230203 {
			t.Errorf("local=%d: missing SPIR-V magic number", local)
		}
		for _, k := range bsort.Kernels() {
			if !slices.Contains(p.EntryPoints, k) {
				t.Errorf("local=%d: entry point %s missing", local, k)
			}
		}
	}
}

func TestCompileKernelsRejectsSize(t *testing.T) {
	for _, local := range []int{0, -4, 3, 96} {
		if _, err := CompileKernels(local); err == nil {
			t.Errorf("CompileKernels(%d) should fail", local)
		}
	}
}

func TestSPIRVWords(t *testing.T) {
	got := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	if want := []uint32{0x07230203, 1}; !slices.Equal(got, want) {
		t.Errorf("spirvWords = %#x, want %#x", got, want)
	}
}

func TestLoadKernelsShared(t *testing.T) {
	a, err := LoadKernels(32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadKernels(32)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("LoadKernels(32) compiled the module twice")
	}
	if _, err := LoadKernels(12); err == nil {
		t.Error("LoadKernels(12) should fail")
	}
}
