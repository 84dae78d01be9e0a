// Package backend selects the device bsort runs on.
//
// Devices are registered by name from init() functions and picked at
// runtime. The CPU device is registered when this package is imported; the
// WebGPU and OpenCL devices register themselves when their packages are
// linked in:
//
//	import (
//		"github.com/gogpu/bsort/backend"
//		_ "github.com/gogpu/bsort/gpu"
//	)
//
// # Device Selection
//
// InitDefault returns the first device, in priority order, whose Init
// succeeds. Get creates a specific device by name:
//
//	dev, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	// Or request a specific device
//	dev := backend.Get("cpu")
//
// # Available Devices
//
//   - "wgpu": WebGPU compute via gogpu/wgpu (build without the nogpu tag)
//   - "opencl": OpenCL via go-opencl (build with the opencl tag)
//   - "cpu": host worker pool with SIMD compare-exchange (always available)
package backend
