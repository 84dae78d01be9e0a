// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package opencl runs the bitonic sort kernels through OpenCL.
//
// The device itself needs cgo and an OpenCL ICD loader, so it is only built
// with the opencl tag:
//
//	go build -tags opencl ./...
//
// The kernel source is always available for inspection.
package opencl

import _ "embed"

// Name is the registry name of the OpenCL device.
const Name = "opencl"

//go:embed kernels/bsort8.cl
var kernelSource string

// KernelSource returns the OpenCL C program holding the five kernels.
func KernelSource() string { return kernelSource }
