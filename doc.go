// Package bsort drives a multi-phase bitonic sorting network on a parallel
// compute device.
//
// # Overview
//
// Work-groups on a compute device can synchronize among themselves with a
// local barrier but never with each other inside one kernel launch. A bitonic
// network larger than one work-group therefore has to be split into a series
// of launches, where the end of each launch is the global barrier the next
// phase depends on. This package computes the launch geometry, generates the
// ordered launch sequence and dispatches it against a single device buffer.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/bsort"
//	    "github.com/gogpu/bsort/backend"
//	)
//
//	dev, err := backend.InitDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	s, _ := bsort.NewSorter(dev, bsort.WithVerify(true))
//	report, err := s.Sort(data, bsort.Ascending)
//
// # Architecture
//
// The package is organized leaf-first:
//   - Planning: [PlanWorkSize] turns an element count and a device
//     [Capability] into a [WorkSizePlan].
//   - Network: [Stages] generates the [Descriptor] sequence for a plan and
//     [BuildNetwork] collects it into a [Network].
//   - Dispatch: [Execute] issues one [Launcher.Launch] per descriptor
//     against a [SortBuffer], in order.
//   - Devices: implementations of [Device] live in internal packages and are
//     selected through the backend registry. Importing
//     "github.com/gogpu/bsort/gpu" adds the WebGPU device.
//
// # Kernel Contract
//
// Every launch runs one of five kernels: bsort_init, bsort_stage_n,
// bsort_stage_0, bsort_merge and bsort_merge_last. Each work-item handles
// [ItemsPerThread] elements, so a plan's global size is the element count
// divided by eight.
package bsort

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
