//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	_ "embed"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/internal/cache"
)

// bsortShaderTemplate holds the five kernels with the work-group size left
// open. KernelSource fills it in.
//
//go:embed shaders/bsort.wgsl
var bsortShaderTemplate string

// bytesPerElement is the size of one f32 in the data buffer.
const bytesPerElement = 4

// KernelSource returns the WGSL module for work-groups of local invocations.
// local must be a power of two.
func KernelSource(local int) string {
	region := bsort.ItemsPerThread * local
	r := strings.NewReplacer(
		"{{WG}}", strconv.Itoa(local),
		"{{REGION}}", strconv.Itoa(region),
		"{{HALF}}", strconv.Itoa(region/2),
	)
	return r.Replace(bsortShaderTemplate)
}

// Program is a compiled kernel module for one work-group size.
type Program struct {
	LocalSize   int
	Source      string
	SPIRV       []uint32
	EntryPoints []string
}

// programs holds compiled modules by work-group size. Devices of the same
// process share them.
var programs = cache.New[int, *Program](16)

// LoadKernels returns the compiled module for a work-group size, compiling
// it on first use.
func LoadKernels(local int) (*Program, error) {
	return programs.Load(local, func() (*Program, error) {
		return CompileKernels(local)
	})
}

// CompileKernels generates, validates and compiles the WGSL module for a
// work-group size. All five bsort kernels must be present as compute entry
// points with the requested size.
func CompileKernels(local int) (*Program, error) {
	if local <= 0 || local&(local-1) != 0 {
		return nil, fmt.Errorf("gpu: work-group size %d is not a power of two", local)
	}
	src := KernelSource(local)

	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: parse kernels: %w", err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("gpu: lower kernels: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("gpu: validate kernels: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("gpu: validate kernels: %w", &verrs[0])
	}

	p := &Program{LocalSize: local, Source: src}
	for _, ep := range module.EntryPoints {
		if ep.Stage != ir.StageCompute {
			continue
		}
		if int(ep.Workgroup[0]) != local {
			return nil, fmt.Errorf("gpu: entry point %s has work-group size %d, want %d",
				ep.Name, ep.Workgroup[0], local)
		}
		p.EntryPoints = append(p.EntryPoints, ep.Name)
	}
	for _, k := range bsort.Kernels() {
		if !slices.Contains(p.EntryPoints, k) {
			return nil, fmt.Errorf("gpu: kernel %s missing from module", k)
		}
	}

	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile kernels: %w", err)
	}
	p.SPIRV = spirvWords(spirvBytes)
	return p, nil
}

// spirvWords converts SPIR-V bytes to little-endian 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
