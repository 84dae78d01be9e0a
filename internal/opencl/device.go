//go:build opencl

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opencl

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jgillich/go-opencl/cl"

	"github.com/gogpu/bsort"
)

// bytesPerElement is the size of one float in device memory.
const bytesPerElement = 4

// Options configures a Device.
type Options struct {
	// Platform selects the first platform whose name contains it.
	// Empty selects the first platform with a GPU.
	Platform string

	// CPU allows CPU devices when no GPU is found.
	CPU bool
}

// memory is a buffer object allocated by a Device.
type memory struct {
	mem   *cl.MemObject
	n     int
	owner *Device
}

func (m *memory) Len() int { return m.n }

// Device runs the bsort8 kernels on an in-order OpenCL command queue.
// Launches are enqueued without waiting; the queue order is the barrier
// between them and Finish is clFinish.
type Device struct {
	opts Options

	mu sync.Mutex

	device  *cl.Device
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernels map[string]*cl.Kernel

	capability bsort.Capability
}

var _ bsort.Device = (*Device)(nil)

// New returns an uninitialized OpenCL device.
func New(opts Options) *Device {
	return &Device{opts: opts}
}

// Name returns "opencl".
func (d *Device) Name() string { return Name }

// Description names the OpenCL device in use.
func (d *Device) Description() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return "not initialized"
	}
	return fmt.Sprintf("%s (%s)", d.device.Name(), d.device.Vendor())
}

// SetLogger sets the logger for the OpenCL device.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Init selects a device, builds the program and creates the kernels.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue != nil {
		return nil
	}
	if err := d.initCL(); err != nil {
		d.releaseLocked()
		return fmt.Errorf("opencl: %w", err)
	}
	return nil
}

func (d *Device) initCL() error {
	device, err := d.selectDevice()
	if err != nil {
		return err
	}
	d.device = device

	d.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	d.queue, err = d.context.CreateCommandQueue(device, 0)
	if err != nil {
		return fmt.Errorf("create command queue: %w", err)
	}
	d.program, err = d.context.CreateProgramWithSource([]string{KernelSource()})
	if err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	if err := d.program.BuildProgram(nil, ""); err != nil {
		return fmt.Errorf("build program: %w", err)
	}

	maxWG := device.MaxWorkGroupSize()
	d.kernels = make(map[string]*cl.Kernel)
	for _, name := range bsort.Kernels() {
		k, err := d.program.CreateKernel(name)
		if err != nil {
			return fmt.Errorf("create kernel %s: %w", name, err)
		}
		d.kernels[name] = k
		if wg, err := k.WorkGroupSize(device); err == nil && wg < maxWG {
			maxWG = wg
		}
	}
	// Every work-item keeps ItemsPerThread floats in local memory.
	if byMem := int(device.LocalMemSize() / (bsort.ItemsPerThread * bytesPerElement)); byMem < maxWG {
		maxWG = byMem
	}
	d.capability = bsort.Capability{MaxWorkGroupSize: maxWG}

	slogger().Info("opencl: device initialized",
		"device", device.Name(),
		"vendor", device.Vendor(),
		"max_work_group", maxWG)
	return nil
}

// selectDevice returns the first GPU of the first matching platform, or a
// CPU device when Options.CPU is set and no GPU exists.
func (d *Device) selectDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("get platforms: %w", err)
	}
	var fallback *cl.Device
	for _, p := range platforms {
		if d.opts.Platform != "" && !strings.Contains(p.Name(), d.opts.Platform) {
			continue
		}
		if devices, err := p.GetDevices(cl.DeviceTypeGPU); err == nil && len(devices) > 0 {
			return devices[0], nil
		}
		if fallback == nil && d.opts.CPU {
			if devices, err := p.GetDevices(cl.DeviceTypeCPU); err == nil && len(devices) > 0 {
				fallback = devices[0]
			}
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("no OpenCL device found on %d platforms", len(platforms))
}

// Close releases all OpenCL objects.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseLocked()
}

func (d *Device) releaseLocked() {
	for _, k := range d.kernels {
		k.Release()
	}
	d.kernels = nil
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.context != nil {
		d.context.Release()
		d.context = nil
	}
	d.device = nil
}

// Capability reports the smallest work-group limit of the device and the
// compiled kernels.
func (d *Device) Capability() bsort.Capability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capability
}

// Alloc creates a read-write buffer of n floats.
func (d *Device) Alloc(n int) (*bsort.SortBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.context == nil {
		return nil, bsort.ErrNotInitialized
	}
	if n <= 0 {
		return nil, fmt.Errorf("opencl: invalid buffer length %d", n)
	}
	mem, err := d.context.CreateEmptyBuffer(cl.MemReadWrite, n*bytesPerElement)
	if err != nil {
		return nil, fmt.Errorf("opencl: create buffer: %w", err)
	}
	return bsort.NewSortBuffer(&memory{mem: mem, n: n, owner: d}), nil
}

// Free releases the buffer object.
func (d *Device) Free(buf *bsort.SortBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.own(buf); ok && m.mem != nil {
		m.mem.Release()
		m.mem = nil
	}
}

func (d *Device) own(buf *bsort.SortBuffer) (*memory, bool) {
	if buf == nil {
		return nil, false
	}
	m, ok := buf.Memory().(*memory)
	return m, ok && m.owner == d
}

func (d *Device) transfer(buf *bsort.SortBuffer, n int) (*memory, error) {
	if d.queue == nil {
		return nil, bsort.ErrNotInitialized
	}
	m, ok := d.own(buf)
	if !ok || m.mem == nil {
		return nil, fmt.Errorf("opencl: buffer not allocated by this device")
	}
	if buf.Busy() {
		return nil, bsort.ErrBufferBusy
	}
	if n != m.n {
		return nil, fmt.Errorf("%w: %d elements for a buffer of %d", bsort.ErrBufferSize, n, m.n)
	}
	return m, nil
}

// Upload writes src into buf and waits for the write.
func (d *Device) Upload(buf *bsort.SortBuffer, src []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, err := d.transfer(buf, len(src))
	if err != nil {
		return err
	}
	ev, err := d.queue.EnqueueWriteBufferFloat32(m.mem, true, 0, src, nil)
	if err != nil {
		return fmt.Errorf("opencl: write buffer: %w", err)
	}
	ev.Release()
	return nil
}

// Download reads buf into dst. The blocking read waits for every launch
// enqueued before it.
func (d *Device) Download(buf *bsort.SortBuffer, dst []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, err := d.transfer(buf, len(dst))
	if err != nil {
		return err
	}
	ev, err := d.queue.EnqueueReadBufferFloat32(m.mem, true, 0, dst, nil)
	if err != nil {
		return fmt.Errorf("opencl: read buffer: %w", err)
	}
	ev.Release()
	return nil
}

// Launch sets the kernel arguments and enqueues one NDRange.
func (d *Device) Launch(kernel string, args []bsort.Arg, globalSize, localSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil {
		return &bsort.LaunchError{Kernel: kernel, Err: bsort.ErrNotInitialized}
	}

	call, err := bsort.DecodeCall(kernel, args, globalSize, localSize)
	if err != nil {
		return err
	}
	m, ok := d.own(call.Buffer)
	if !ok || m.mem == nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "buffer not allocated by this device"}
	}
	if localSize > d.capability.MaxWorkGroupSize {
		return &bsort.LaunchError{Kernel: kernel,
			Reason: fmt.Sprintf("work-group size %d exceeds the device limit of %d", localSize, d.capability.MaxWorkGroupSize)}
	}

	k := d.kernels[kernel]
	for i, a := range args {
		var err error
		switch a.Kind {
		case bsort.ArgBuffer:
			err = k.SetArgBuffer(i, m.mem)
		case bsort.ArgLocal:
			err = k.SetArgLocal(i, a.Local*bytesPerElement)
		case bsort.ArgScalar:
			err = k.SetArgInt32(i, a.Scalar)
		}
		if err != nil {
			return &bsort.LaunchError{Kernel: kernel, Reason: fmt.Sprintf("set argument %d", i), Err: err}
		}
	}

	ev, err := d.queue.EnqueueNDRangeKernel(k, nil, []int{globalSize}, []int{localSize}, nil)
	if err != nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "enqueue", Err: err}
	}
	ev.Release()
	return nil
}

// Finish blocks until the queue is empty.
func (d *Device) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil {
		return bsort.ErrNotInitialized
	}
	if err := d.queue.Finish(); err != nil {
		return fmt.Errorf("opencl: finish: %w", err)
	}
	return nil
}
