//go:build nogpu

// Package gpu is empty when built with the nogpu tag. The registry then
// offers only the CPU device (and OpenCL with the opencl tag).
package gpu

import "errors"

// SetDeviceProvider always fails: the WebGPU device is not compiled in.
func SetDeviceProvider(any) error {
	return errors.New("gpu: built with nogpu")
}
