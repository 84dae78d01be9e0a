package bsort

import (
	"errors"
	"sync"
)

// Device is a compute device able to run the sorting network.
//
// A device allocates SortBuffers, moves data in and out of them and runs the
// five bsort kernels. Launch may return before the kernel has finished;
// Finish blocks until every launch issued so far has completed.
//
// Implementations live in internal packages and are selected through the
// backend registry. The WebGPU device is enabled by a blank import:
//
//	import _ "github.com/gogpu/bsort/gpu"
type Device interface {
	Launcher

	// Name returns the device identifier (e.g., "cpu", "wgpu").
	Name() string

	// Init acquires device resources. It must be called before any other
	// method except Name.
	Init() error

	// Close releases device resources. The device must not be used after
	// Close.
	Close()

	// Capability reports the work-group limit used for planning.
	Capability() Capability

	// Alloc creates a buffer of n elements.
	Alloc(n int) (*SortBuffer, error)

	// Upload copies src into buf. len(src) must equal buf.Len().
	Upload(buf *SortBuffer, src []float32) error

	// Download waits for pending launches and copies buf into dst.
	Download(buf *SortBuffer, dst []float32) error

	// Free releases a buffer created by Alloc.
	Free(buf *SortBuffer)

	// Finish blocks until all issued launches have completed.
	Finish() error
}

// DeviceProviderAware is an optional interface for devices that can share
// GPU resources with an external provider. When SetDeviceProvider is called,
// the device reuses the provided GPU device instead of creating its own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	deviceMu sync.RWMutex
	device   Device
)

// UseDevice makes d the device used by the package-level Sort.
//
// The device's Init method is called first. If Init fails, the previous
// device stays in place and the error is returned. A replaced device is
// closed.
func UseDevice(d Device) error {
	if d == nil {
		return errors.New("bsort: device must not be nil")
	}
	if err := d.Init(); err != nil {
		return err
	}
	propagateLogger(d, Logger())
	deviceMu.Lock()
	old := device
	device = d
	deviceMu.Unlock()
	if old != nil && old != d {
		old.Close()
	}
	return nil
}

// CurrentDevice returns the device set by UseDevice, or nil if none.
func CurrentDevice() Device {
	deviceMu.RLock()
	d := device
	deviceMu.RUnlock()
	return d
}

// CloseDevice closes and forgets the current device.
func CloseDevice() {
	deviceMu.Lock()
	d := device
	device = nil
	deviceMu.Unlock()
	if d != nil {
		d.Close()
	}
}

// SetDeviceProvider passes a GPU device provider to the current device,
// enabling device sharing. If no device is set or it doesn't support
// sharing, this is a no-op.
func SetDeviceProvider(provider any) error {
	d := CurrentDevice()
	if d == nil {
		return nil
	}
	if dpa, ok := d.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
