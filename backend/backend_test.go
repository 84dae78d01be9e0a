package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/bsort"
)

// fakeDevice is a bsort.Device that only tracks its lifecycle.
type fakeDevice struct {
	name    string
	initErr error
	inited  bool
	closed  bool
}

func (f *fakeDevice) Name() string { return f.name }

func (f *fakeDevice) Init() error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inited = true
	return nil
}

func (f *fakeDevice) Close()                                      { f.closed = true }
func (f *fakeDevice) Capability() bsort.Capability                { return bsort.Capability{MaxWorkGroupSize: 16} }
func (f *fakeDevice) Alloc(int) (*bsort.SortBuffer, error)        { return nil, errors.New("fake") }
func (f *fakeDevice) Upload(*bsort.SortBuffer, []float32) error   { return nil }
func (f *fakeDevice) Download(*bsort.SortBuffer, []float32) error { return nil }
func (f *fakeDevice) Free(*bsort.SortBuffer)                      {}
func (f *fakeDevice) Finish() error                               { return nil }
func (f *fakeDevice) Launch(string, []bsort.Arg, int, int) error  { return nil }
func (f *fakeDevice) Description() string                         { return "fake " + f.name }

// withRegistry swaps the registry for the duration of a test.
func withRegistry(t *testing.T, devs map[string]func() bsort.Device) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = make(map[string]DeviceFactory, len(devs))
	for name, f := range devs {
		factories[name] = f
	}
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestCPURegistered(t *testing.T) {
	if !IsRegistered(DeviceCPU) {
		t.Fatal("cpu device should be registered on import")
	}
	d := Get(DeviceCPU)
	if d == nil || d.Name() != DeviceCPU {
		t.Fatalf("Get(cpu) = %v", d)
	}
}

func TestGetUnknown(t *testing.T) {
	if d := Get("nonexistent"); d != nil {
		t.Errorf("Get(nonexistent) = %v, want nil", d)
	}
	if _, err := Open("nonexistent"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(nonexistent) = %v, want ErrBackendNotAvailable", err)
	}
}

func TestAvailableOrder(t *testing.T) {
	withRegistry(t, map[string]func() bsort.Device{
		"zeta":       func() bsort.Device { return &fakeDevice{name: "zeta"} },
		DeviceCPU:    func() bsort.Device { return &fakeDevice{name: DeviceCPU} },
		"alpha":      func() bsort.Device { return &fakeDevice{name: "alpha"} },
		DeviceWGPU:   func() bsort.Device { return &fakeDevice{name: DeviceWGPU} },
		DeviceOpenCL: func() bsort.Device { return &fakeDevice{name: DeviceOpenCL} },
	})

	want := []string{DeviceWGPU, DeviceOpenCL, DeviceCPU, "alpha", "zeta"}
	if got := Available(); !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
	if d := Default(); d.Name() != DeviceWGPU {
		t.Errorf("Default() = %s, want wgpu", d.Name())
	}
}

func TestInitDefaultSkipsFailingDevices(t *testing.T) {
	gpu := &fakeDevice{name: DeviceWGPU, initErr: errors.New("no adapter")}
	cl := &fakeDevice{name: DeviceOpenCL, initErr: errors.New("no platform")}
	cpu := &fakeDevice{name: DeviceCPU}
	withRegistry(t, map[string]func() bsort.Device{
		DeviceWGPU:   func() bsort.Device { return gpu },
		DeviceOpenCL: func() bsort.Device { return cl },
		DeviceCPU:    func() bsort.Device { return cpu },
	})

	d, err := InitDefault()
	if err != nil {
		t.Fatalf("InitDefault() = %v", err)
	}
	if d != cpu || !cpu.inited {
		t.Errorf("InitDefault() = %v, want initialized cpu device", d.Name())
	}
}

func TestInitDefaultNone(t *testing.T) {
	withRegistry(t, map[string]func() bsort.Device{
		DeviceWGPU: func() bsort.Device { return &fakeDevice{name: DeviceWGPU, initErr: errors.New("x")} },
	})
	if _, err := InitDefault(); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("InitDefault() = %v, want ErrBackendNotAvailable", err)
	}

	withRegistry(t, nil)
	if d := Default(); d != nil {
		t.Errorf("Default() with empty registry = %v", d)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustDefault() should panic with empty registry")
		}
	}()
	MustDefault()
}

func TestProbe(t *testing.T) {
	cpu := &fakeDevice{name: DeviceCPU}
	withRegistry(t, map[string]func() bsort.Device{
		DeviceWGPU: func() bsort.Device { return &fakeDevice{name: DeviceWGPU, initErr: errors.New("no adapter")} },
		DeviceCPU:  func() bsort.Device { return cpu },
	})

	got := Probe()
	if len(got) != 2 {
		t.Fatalf("Probe() returned %d entries, want 2", len(got))
	}
	if got[0].Name != DeviceWGPU || got[0].Available() {
		t.Errorf("wgpu status = %+v, want unavailable", got[0])
	}
	if got[1].Name != DeviceCPU || !got[1].Available() || got[1].Capability.MaxWorkGroupSize != 16 {
		t.Errorf("cpu status = %+v", got[1])
	}
	if got[1].Description != "fake cpu" {
		t.Errorf("Description = %q", got[1].Description)
	}
	if !cpu.closed {
		t.Error("Probe should close the devices it opened")
	}
}

func TestRegisterUnregister(t *testing.T) {
	withRegistry(t, nil)
	Register("custom", func() bsort.Device { return &fakeDevice{name: "custom"} })
	if !IsRegistered("custom") {
		t.Fatal("custom should be registered")
	}
	Unregister("custom")
	if IsRegistered("custom") {
		t.Error("custom should be unregistered")
	}
}

func TestCPUSortsThroughRegistry(t *testing.T) {
	d, err := Open(DeviceCPU)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	s, err := bsort.NewSorter(d, bsort.WithVerify(true))
	if err != nil {
		t.Fatal(err)
	}
	data := []float32{3, 5, 4, 6, 0, 7, 2, 1, 9, 8, 15, 14, 13, 12, 11, 10}
	if _, err := s.Sort(data, bsort.Descending); err != nil {
		t.Fatalf("Sort() = %v", err)
	}
}
