//go:build !nogpu

package gpu

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/bsort"
)

// newNoopDevice returns a device adopting a noop HAL device. Kernels are
// recorded and submitted but never executed, so tests check bookkeeping,
// not order.
func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	open := openNoop(t)
	d, err := NewWithHAL(open.Device, open.Queue, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("NewWithHAL() = %v", err)
	}
	t.Cleanup(func() {
		d.Close()
		open.Device.Destroy()
	})
	return d
}

func openNoop(t *testing.T) hal.OpenDevice {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatal(err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("noop backend has no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	return open
}

func TestDefaultOptions(t *testing.T) {
	if got := DefaultOptions().Backend; got != gputypes.BackendVulkan {
		t.Errorf("DefaultOptions().Backend = %v, want Vulkan", got)
	}
	// The zero backend is the noop HAL and must not be rewritten.
	if got := New(Options{Backend: gputypes.BackendEmpty}).opts.Backend; got != gputypes.BackendEmpty {
		t.Errorf("New(BackendEmpty) uses %v", got)
	}
}

func TestDeviceInit(t *testing.T) {
	d := New(Options{Backend: gputypes.BackendEmpty})
	if err := d.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	defer d.Close()
	if d.Name() != "wgpu" {
		t.Errorf("Name() = %q", d.Name())
	}
	if desc := d.Description(); !strings.Contains(desc, "Noop Adapter") {
		t.Errorf("Description() = %q, want the noop adapter", desc)
	}
	// DefaultLimits: 256 invocations, 16 KiB shared memory / 32 bytes = 512.
	if got := d.Capability().MaxWorkGroupSize; got != 256 {
		t.Errorf("MaxWorkGroupSize = %d, want 256", got)
	}
	if err := d.Init(); err != nil {
		t.Errorf("second Init() = %v", err)
	}
}

func TestDeviceUnknownAdapter(t *testing.T) {
	d := New(Options{Backend: gputypes.BackendEmpty, Adapter: "no such adapter"})
	if err := d.Init(); err == nil {
		d.Close()
		t.Fatal("Init() should fail for an unknown adapter")
	}
}

func TestDeviceNotInitialized(t *testing.T) {
	d := New(Options{Backend: gputypes.BackendEmpty})
	if _, err := d.Alloc(8); !errors.Is(err, bsort.ErrNotInitialized) {
		t.Errorf("Alloc() = %v, want ErrNotInitialized", err)
	}
	if err := d.Finish(); !errors.Is(err, bsort.ErrNotInitialized) {
		t.Errorf("Finish() = %v, want ErrNotInitialized", err)
	}
	err := d.Launch(bsort.KernelInit, nil, 8, 8)
	if !errors.Is(err, bsort.ErrNotInitialized) {
		t.Errorf("Launch() = %v, want ErrNotInitialized", err)
	}
}

func TestDeviceAllocLimits(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.Alloc(0); err == nil {
		t.Error("Alloc(0) should fail")
	}
	limit := gputypes.DefaultLimits().MaxStorageBufferBindingSize / bytesPerElement
	if _, err := d.Alloc(int(limit) + 1); !errors.Is(err, bsort.ErrBufferSize) {
		t.Errorf("Alloc(limit+1) = %v, want ErrBufferSize", err)
	}
}

func TestDeviceNetworkSubmitsOnce(t *testing.T) {
	d := newNoopDevice(t)
	plan, err := bsort.Plan(1<<12, d.Capability())
	if err != nil {
		t.Fatal(err)
	}
	net := bsort.BuildNetwork(plan, bsort.Descending)

	buf, err := d.Alloc(plan.Len())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Free(buf)
	if err := d.Upload(buf, make([]float32, plan.Len())); err != nil {
		t.Fatal(err)
	}
	if err := bsort.Execute(d, buf, net); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if s := d.Stats(); s.Launches != net.Len() || s.Submits != 0 {
		t.Fatalf("before Finish: %+v, want %d launches and no submit", s, net.Len())
	}
	if err := d.Finish(); err != nil {
		t.Fatal(err)
	}
	s := d.Stats()
	if s.Submits != 1 {
		t.Errorf("Submits = %d, want 1", s.Submits)
	}
	if s.Pipelines != len(bsort.Kernels()) {
		t.Errorf("Pipelines = %d, want %d", s.Pipelines, len(bsort.Kernels()))
	}

	// Pipelines are cached per work-group size.
	if err := bsort.Execute(d, buf, net); err != nil {
		t.Fatal(err)
	}
	if err := d.Download(buf, make([]float32, plan.Len())); err != nil {
		t.Fatal(err)
	}
	s = d.Stats()
	if s.Pipelines != len(bsort.Kernels()) {
		t.Errorf("Pipelines after second run = %d, want %d", s.Pipelines, len(bsort.Kernels()))
	}
	if s.Submits != 3 {
		t.Errorf("Submits = %d, want 3 (network and readback)", s.Submits)
	}
}

func TestDeviceSorterReport(t *testing.T) {
	d := newNoopDevice(t)
	s, err := bsort.NewSorter(d, bsort.WithMaxWorkGroupSize(16))
	if err != nil {
		t.Fatal(err)
	}
	data := make([]float32, 1024)
	rep, err := s.Sort(data, bsort.Ascending)
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	if rep.Plan.LocalSize != 16 || rep.Plan.NumStages != 8 {
		t.Errorf("plan = %v", rep.Plan)
	}
	if rep.Launches != d.Stats().Launches {
		t.Errorf("Report.Launches = %d, device counted %d", rep.Launches, d.Stats().Launches)
	}
}

func TestDeviceTooManyGroups(t *testing.T) {
	d := newNoopDevice(t)
	groups := int(gputypes.DefaultLimits().MaxComputeWorkgroupsPerDimension) + 1
	buf, err := d.Alloc(groups * bsort.ItemsPerThread)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Free(buf)
	err = d.Launch(bsort.KernelInit, []bsort.Arg{bsort.BufferArg(buf), bsort.LocalArg(8)}, groups, 1)
	var le *bsort.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("Launch() = %v, want *LaunchError", err)
	}
}

func TestDeviceForeignBuffer(t *testing.T) {
	d := newNoopDevice(t)
	other := newNoopDevice(t)
	buf, err := other.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Launch(bsort.KernelInit, []bsort.Arg{bsort.BufferArg(buf), bsort.LocalArg(64)}, 8, 8)
	var le *bsort.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("Launch() = %v, want *LaunchError", err)
	}
	if err := d.Upload(buf, make([]float32, 64)); err == nil {
		t.Error("Upload() accepted a foreign buffer")
	}
	if err := other.Upload(buf, make([]float32, 32)); !errors.Is(err, bsort.ErrBufferSize) {
		t.Errorf("Upload() = %v, want ErrBufferSize", err)
	}
}

type halProvider struct {
	open hal.OpenDevice
}

func (p halProvider) HalDevice() any { return p.open.Device }
func (p halProvider) HalQueue() any  { return p.open.Queue }

func TestDeviceSetDeviceProvider(t *testing.T) {
	d := newNoopDevice(t)
	if err := d.SetDeviceProvider(struct{}{}); err == nil {
		t.Error("SetDeviceProvider() accepted a provider without HAL types")
	}
	if err := d.SetDeviceProvider(halProvider{open: openNoop(t)}); err != nil {
		t.Fatalf("SetDeviceProvider() = %v", err)
	}
	if desc := d.Description(); !strings.Contains(desc, "shared") {
		t.Errorf("Description() = %q, want shared device", desc)
	}
	if _, err := d.Alloc(64); err != nil {
		t.Errorf("Alloc() on shared device = %v", err)
	}
}

func TestNewWithHAL(t *testing.T) {
	open := openNoop(t)
	d, err := NewWithHAL(open.Device, open.Queue, gputypes.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Init(); err != nil {
		t.Errorf("Init() on adopted device = %v", err)
	}
	if _, err := NewWithHAL(nil, open.Queue, gputypes.DefaultLimits()); err == nil {
		t.Error("NewWithHAL(nil) should fail")
	}
}

func TestPackFloats(t *testing.T) {
	in := []float32{0, -1.5, math.MaxFloat32, float32(math.Inf(-1)), 3}
	out := make([]float32, len(in))
	unpackFloats(packFloats(in), out)
	if !slices.Equal(in, out) {
		t.Errorf("unpackFloats(packFloats(%v)) = %v", in, out)
	}
}

func TestPackParams(t *testing.T) {
	c := bsort.Call{Stage: 4, HighStage: 8, Direction: bsort.Descending}
	got := packParams(c, 1024)
	want := []byte{4, 0, 0, 0, 8, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0, 4, 0, 0}
	if !slices.Equal(got, want) {
		t.Errorf("packParams = %v, want %v", got, want)
	}
}
