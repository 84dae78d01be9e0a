//go:build !nogpu

// Package gpu registers the WebGPU compute device with the backend registry.
//
// Import this package to let backend.Default and backend.InitDefault pick the
// GPU. The device runs the five bitonic sort kernels as WGSL compute shaders
// through gogpu/wgpu. If no adapter can be opened, InitDefault skips the
// device and falls back to the next one in priority order.
//
// Build with the opencl tag to also register the OpenCL device.
//
// Usage:
//
//	import _ "github.com/gogpu/bsort/gpu" // enable GPU sorting
package gpu

import (
	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/backend"
	gpuimpl "github.com/gogpu/bsort/internal/gpu"
)

// Options configures a WebGPU device created with New.
type Options = gpuimpl.Options

func init() {
	backend.Register(backend.DeviceWGPU, func() bsort.Device {
		return gpuimpl.New(gpuimpl.DefaultOptions())
	})
}

// New returns an uninitialized WebGPU device. A zero Backend selects Vulkan.
func New(opts Options) bsort.Device {
	if opts.Backend == 0 {
		opts.Backend = gpuimpl.DefaultOptions().Backend
	}
	return gpuimpl.New(opts)
}

// SetDeviceProvider configures the current device to use a shared GPU device
// from an external provider (e.g., gogpu). This avoids creating a separate
// GPU instance.
//
// The provider should be a gpucontext.DeviceProvider that also exposes
// HalDevice() and HalQueue() for direct HAL access.
//
// Call this after bsort.UseDevice has installed the WebGPU device.
func SetDeviceProvider(provider any) error {
	return bsort.SetDeviceProvider(provider)
}
