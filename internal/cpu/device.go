// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cpu runs the bitonic sort kernels on the host.
//
// Each work-group of a launch is one task on a parallel.GroupPool. A launch
// returns only after all of its groups have finished, so it is a real
// barrier and Finish has nothing left to wait for. Compare-exchange steps use
// go-highway vectors.
package cpu

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/klauspost/cpuid/v2"

	"github.com/gogpu/bsort"
	"github.com/gogpu/bsort/internal/parallel"
)

// Name is the registry name of the CPU device.
const Name = "cpu"

// DefaultMaxWorkGroupSize is the work-group capability reported when
// Options.MaxWorkGroupSize is not set.
const DefaultMaxWorkGroupSize = 256

// Options configures a Device.
type Options struct {
	// Workers is the number of goroutines running work-groups.
	// Zero uses the logical core count.
	Workers int

	// MaxWorkGroupSize is the capability reported to the planner.
	// Zero uses DefaultMaxWorkGroupSize.
	MaxWorkGroupSize int
}

// memory is a buffer allocated by a Device.
type memory struct {
	data  []float32
	owner *Device
}

func (m *memory) Len() int { return len(m.data) }

// Device is a bsort.Device backed by host memory.
type Device struct {
	opts Options

	mu   sync.RWMutex
	pool *parallel.GroupPool

	// scratch holds per-group local memory between launches.
	scratch sync.Pool
}

// New returns an uninitialized CPU device.
func New(opts Options) *Device {
	if opts.MaxWorkGroupSize <= 0 {
		opts.MaxWorkGroupSize = DefaultMaxWorkGroupSize
	}
	if opts.Workers <= 0 {
		opts.Workers = min(cpuid.CPU.LogicalCores, runtime.GOMAXPROCS(0))
	}
	return &Device{opts: opts}
}

// Name returns "cpu".
func (d *Device) Name() string { return Name }

// Description names the processor and the SIMD target in use.
func (d *Device) Description() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s (%d cores, %s)", brand, cpuid.CPU.PhysicalCores, hwy.CurrentName())
}

// Init starts the worker pool. Calling Init on a running device is a no-op.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		return nil
	}
	d.pool = parallel.NewGroupPool(d.opts.Workers)
	slogger().Info("cpu: device initialized",
		"cpu", d.Description(),
		"workers", d.pool.Workers(),
		"max_work_group", d.opts.MaxWorkGroupSize)
	return nil
}

// Close stops the worker pool.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
}

// SetLogger sets the logger for the CPU device.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Capability reports the configured work-group size.
func (d *Device) Capability() bsort.Capability {
	return bsort.Capability{MaxWorkGroupSize: d.opts.MaxWorkGroupSize}
}

// Alloc returns a zeroed buffer of n elements.
func (d *Device) Alloc(n int) (*bsort.SortBuffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cpu: invalid buffer length %d", n)
	}
	return bsort.NewSortBuffer(&memory{data: make([]float32, n), owner: d}), nil
}

// Free drops the buffer's storage.
func (d *Device) Free(buf *bsort.SortBuffer) {
	if m, ok := d.own(buf); ok {
		m.data = nil
	}
}

// Upload copies src into buf.
func (d *Device) Upload(buf *bsort.SortBuffer, src []float32) error {
	m, err := d.transfer(buf, len(src))
	if err != nil {
		return err
	}
	copy(m.data, src)
	return nil
}

// Download copies buf into dst.
func (d *Device) Download(buf *bsort.SortBuffer, dst []float32) error {
	m, err := d.transfer(buf, len(dst))
	if err != nil {
		return err
	}
	copy(dst, m.data)
	return nil
}

// Finish returns immediately: launches complete before Launch returns.
func (d *Device) Finish() error { return nil }

func (d *Device) own(buf *bsort.SortBuffer) (*memory, bool) {
	if buf == nil {
		return nil, false
	}
	m, ok := buf.Memory().(*memory)
	return m, ok && m.owner == d
}

func (d *Device) transfer(buf *bsort.SortBuffer, n int) (*memory, error) {
	m, ok := d.own(buf)
	if !ok {
		return nil, fmt.Errorf("cpu: buffer not allocated by this device")
	}
	if buf.Busy() {
		return nil, bsort.ErrBufferBusy
	}
	if n != len(m.data) {
		return nil, fmt.Errorf("%w: %d elements for a buffer of %d", bsort.ErrBufferSize, n, len(m.data))
	}
	return m, nil
}

// Launch runs one kernel over all work-groups and returns when they are done.
func (d *Device) Launch(kernel string, args []bsort.Arg, globalSize, localSize int) error {
	d.mu.RLock()
	pool := d.pool
	d.mu.RUnlock()
	if pool == nil {
		return &bsort.LaunchError{Kernel: kernel, Err: bsort.ErrNotInitialized}
	}

	call, err := bsort.DecodeCall(kernel, args, globalSize, localSize)
	if err != nil {
		return err
	}
	m, ok := d.own(call.Buffer)
	if !ok {
		return &bsort.LaunchError{Kernel: kernel, Reason: "buffer not allocated by this device"}
	}

	var group func(g int)
	switch call.Kind {
	case bsort.KindInit:
		group = func(g int) { d.sortGroup(m.data, call, g) }
	case bsort.KindStageN, bsort.KindMerge:
		group = func(g int) { exchangeGroup(m.data, call, g) }
	case bsort.KindStage0, bsort.KindMergeLast:
		group = func(g int) { d.mergeGroup(m.data, call, g) }
	}

	if err := pool.Run(call.Groups(), group); err != nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "work-group failed", Err: err}
	}
	return nil
}

// region returns the elements owned by group g, or nil when the group lies
// past the end of the buffer.
func region(data []float32, c bsort.Call, g int) []float32 {
	r := c.Region()
	lo := g * r
	if lo >= len(data) {
		return nil
	}
	return data[lo:min(lo+r, len(data))]
}

// local borrows a scratch slice of n elements, standing in for work-group
// local memory.
func (d *Device) local(n int) *[]float32 {
	if p, ok := d.scratch.Get().(*[]float32); ok && cap(*p) >= n {
		*p = (*p)[:n]
		return p
	}
	s := make([]float32, n)
	return &s
}

func (d *Device) sortGroup(data []float32, c bsort.Call, g int) {
	x := region(data, c, g)
	if len(x) != c.Region() {
		return
	}
	p := d.local(c.Scratch)
	defer d.scratch.Put(p)

	s := (*p)[:len(x)]
	copy(s, x)
	sortRegion(s, c.Descending(g))
	copy(x, s)
}

func (d *Device) mergeGroup(data []float32, c bsort.Call, g int) {
	x := region(data, c, g)
	if len(x) != c.Region() {
		return
	}
	p := d.local(c.Scratch)
	defer d.scratch.Put(p)

	s := (*p)[:len(x)]
	copy(s, x)
	merge(s, c.Descending(g))
	copy(x, s)
}

// exchangeGroup compares the two half-blocks paired with group g. Pairs
// reaching past the buffer are clipped.
func exchangeGroup(data []float32, c bsort.Call, g int) {
	h := c.Region() / 2
	lo, hi := c.Partner(g)
	a, b := lo*h, hi*h
	if b >= len(data) {
		return
	}
	n := min(h, len(data)-b)
	exchange(data[a:a+n], data[b:b+n], c.Descending(g))
}
