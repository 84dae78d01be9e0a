package backend

import (
	"errors"

	"github.com/gogpu/bsort"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when no registered device can be
	// initialized, or a requested name is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Device names, in priority order.
const (
	// DeviceWGPU is the WebGPU compute device (gogpu/wgpu).
	DeviceWGPU = "wgpu"
	// DeviceOpenCL is the OpenCL device.
	DeviceOpenCL = "opencl"
	// DeviceCPU is the host device.
	DeviceCPU = "cpu"
)

// DeviceFactory creates a new, uninitialized device.
type DeviceFactory func() bsort.Device

// Status describes a registered device after probing it.
type Status struct {
	Name       string
	Capability bsort.Capability
	// Description is set for devices that implement Describer.
	Description string
	Err         error
}

// Available reports whether the device initialized.
func (s Status) Available() bool { return s.Err == nil }

// Describer is implemented by devices that can name the hardware they run on.
type Describer interface {
	Description() string
}
