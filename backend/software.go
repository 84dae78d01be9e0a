package backend

import (
	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/internal/cpu"
)

// init registers the CPU device on package import.
func init() {
	Register(DeviceCPU, func() bsort.Device {
		return cpu.New(cpu.Options{})
	})
}

// NewCPU returns an uninitialized CPU device with explicit limits.
// Zero values select the defaults.
func NewCPU(workers, maxWorkGroupSize int) bsort.Device {
	return cpu.New(cpu.Options{Workers: workers, MaxWorkGroupSize: maxWorkGroupSize})
}
