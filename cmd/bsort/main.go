// Command bsort sorts random float32 data with the bitonic sorting network
// and inspects the plans and networks it would run.
//
// Usage:
//
//	bsort sort --n 1048576 --dir desc
//	bsort plan --n 4096 --max-wg 64
//	bsort network --n 4096 --max-wg 64
//	bsort devices
package main

import (
	"os"

	// Register the WebGPU device.
	_ "github.com/gogpu/bsort/gpu"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
