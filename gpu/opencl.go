//go:build opencl

package gpu

import (
	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/backend"
	"github.com/gogpu/bsort/internal/opencl"
)

func init() {
	backend.Register(backend.DeviceOpenCL, func() bsort.Device {
		return opencl.New(opencl.Options{})
	})
}
