//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/bsort"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Name is the registry name of the WebGPU device.
const Name = "wgpu"

// paramsSize is the size of the Params uniform in bsort.wgsl.
const paramsSize = 16

// Options configures a Device.
type Options struct {
	// Backend selects the HAL backend. The zero value is the noop backend;
	// DefaultOptions selects Vulkan.
	Backend gputypes.Backend

	// Adapter selects the first adapter whose name contains it. Empty
	// selects the first discrete or integrated GPU.
	Adapter string
}

// Stats counts the work a Device has issued.
type Stats struct {
	Launches  int
	Submits   int
	Pipelines int
	Uploads   int
	Downloads int
}

// memory is a storage buffer allocated by a Device.
type memory struct {
	buf   hal.Buffer
	n     int
	owner *Device
}

func (m *memory) Len() int { return m.n }

func (m *memory) size() uint64 { return uint64(m.n) * bytesPerElement }

// kernelSet holds the five pipelines compiled for one work-group size.
type kernelSet struct {
	module    hal.ShaderModule
	pipelines map[string]hal.ComputePipeline
}

// Device runs the bitonic sort kernels through wgpu/hal compute pipelines.
//
// Launches are recorded as compute passes into one command encoder, one pass
// per launch. Passes over the same storage buffer are ordered, so every
// launch sees the writes of the previous one. Finish submits the encoder and
// waits for the queue to drain.
type Device struct {
	opts Options

	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	limits   gputypes.Limits
	adapter  string

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	kernels    map[int]*kernelSet

	// Recording state between Launch and Finish.
	encoder    hal.CommandEncoder
	uniforms   []hal.Buffer
	bindGroups []hal.BindGroup

	stats          Stats
	ready          bool
	externalDevice bool // true when using shared device (don't destroy on Close)
}

var _ bsort.Device = (*Device)(nil)

// DefaultOptions returns the options of the registered device: Vulkan and
// the first hardware adapter.
func DefaultOptions() Options {
	return Options{Backend: gputypes.BackendVulkan}
}

// New returns an uninitialized device on opts.Backend.
func New(opts Options) *Device {
	return &Device{opts: opts}
}

// NewWithHAL returns a device running on an already opened HAL device and
// queue. The device is not destroyed on Close.
func NewWithHAL(device hal.Device, queue hal.Queue, limits gputypes.Limits) (*Device, error) {
	d := New(Options{})
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.adoptLocked(device, queue, limits, "external"); err != nil {
		return nil, err
	}
	d.externalDevice = true
	return d, nil
}

// Name returns "wgpu".
func (d *Device) Name() string { return Name }

// Description names the adapter in use.
func (d *Device) Description() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.adapter == "" {
		return fmt.Sprintf("%s (not initialized)", d.opts.Backend)
	}
	return fmt.Sprintf("%s (%s)", d.adapter, d.opts.Backend)
}

// Init opens an adapter and creates the shared layouts. Calling Init on a
// ready device is a no-op.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if err := d.initGPU(); err != nil {
		d.releaseLocked()
		return fmt.Errorf("wgpu: %w", err)
	}
	return nil
}

func (d *Device) initGPU() error {
	backend, ok := hal.GetBackend(d.opts.Backend)
	if !ok {
		return fmt.Errorf("%s backend not available", d.opts.Backend)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	d.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	selected, err := selectAdapter(adapters, d.opts.Adapter)
	if err != nil {
		return err
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), selected.Capabilities.Limits)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	if err := d.adoptLocked(openDev.Device, openDev.Queue, selected.Capabilities.Limits, selected.Info.Name); err != nil {
		openDev.Device.Destroy()
		return err
	}
	slogger().Info("wgpu: device initialized",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType,
		"max_work_group", d.capabilityLocked().MaxWorkGroupSize)
	return nil
}

// selectAdapter returns the first adapter matching name, or the first
// discrete or integrated GPU when name is empty. Without a hardware GPU the
// first adapter is used.
func selectAdapter(adapters []hal.ExposedAdapter, name string) (*hal.ExposedAdapter, error) {
	if name != "" {
		for i := range adapters {
			if strings.Contains(adapters[i].Info.Name, name) {
				return &adapters[i], nil
			}
		}
		return nil, fmt.Errorf("no adapter matching %q", name)
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i], nil
		}
	}
	return &adapters[0], nil
}

// adoptLocked installs a device and queue and creates the layouts shared by
// all kernels. On failure d is left without a device.
func (d *Device) adoptLocked(device hal.Device, queue hal.Queue, limits gputypes.Limits, adapter string) error {
	if device == nil || queue == nil {
		return errors.New("wgpu: nil device or queue")
	}
	d.device = device
	d.queue = queue
	d.limits = limits
	d.adapter = adapter
	d.kernels = make(map[int]*kernelSet)

	if err := d.createLayouts(); err != nil {
		d.destroyPipelines()
		d.device, d.queue = nil, nil
		return fmt.Errorf("create layouts: %w", err)
	}
	d.ready = true
	return nil
}

func (d *Device) createLayouts() error {
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "bsort_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "bsort_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout
	return nil
}

// kernelsFor returns the pipelines for a work-group size, compiling them on
// first use.
func (d *Device) kernelsFor(local int) (*kernelSet, error) {
	if ks, ok := d.kernels[local]; ok {
		return ks, nil
	}
	prog, err := LoadKernels(local)
	if err != nil {
		return nil, err
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  fmt.Sprintf("bsort_wg%d", local),
		Source: hal.ShaderSource{SPIRV: prog.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	ks := &kernelSet{module: module, pipelines: make(map[string]hal.ComputePipeline)}
	for _, name := range bsort.Kernels() {
		p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label: name, Layout: d.pipeLayout,
			Compute: hal.ComputeState{Module: module, EntryPoint: name},
		})
		if err != nil {
			d.destroyKernelSet(ks)
			return nil, fmt.Errorf("create %s pipeline: %w", name, err)
		}
		ks.pipelines[name] = p
	}
	d.kernels[local] = ks
	d.stats.Pipelines += len(ks.pipelines)
	slogger().Debug("wgpu: kernels compiled", "local_size", local, "spirv_words", len(prog.SPIRV))
	return ks, nil
}

func (d *Device) destroyKernelSet(ks *kernelSet) {
	for _, p := range ks.pipelines {
		d.device.DestroyComputePipeline(p)
	}
	if ks.module != nil {
		d.device.DestroyShaderModule(ks.module)
	}
}

func (d *Device) destroyPipelines() {
	if d.device == nil {
		return
	}
	for _, ks := range d.kernels {
		d.destroyKernelSet(ks)
	}
	d.kernels = nil
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
}

// Close releases all resources. A shared device is left intact.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseLocked()
}

func (d *Device) releaseLocked() {
	d.discardLocked()
	d.destroyPipelines()
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.instance = nil
	d.queue = nil
	d.ready = false
	d.externalDevice = false
}

// SetLogger sets the logger for the WebGPU device.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// SetDeviceProvider switches the device to a shared GPU device from an
// external provider. The provider either exposes HalDevice() any and
// HalQueue() any, or is a gpucontext.DeviceProvider whose Device and Queue
// are hal types.
func (d *Device) SetDeviceProvider(provider any) error {
	device, queue, name, err := halFromProvider(provider)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Destroy own resources if we created them
	d.releaseLocked()

	if err := d.adoptLocked(device, queue, gputypes.DefaultLimits(), name); err != nil {
		return fmt.Errorf("wgpu: shared device: %w", err)
	}
	d.externalDevice = true
	slogger().Info("wgpu: switched to shared GPU device", "adapter", name)
	return nil
}

func halFromProvider(provider any) (hal.Device, hal.Queue, string, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	var devAny, queueAny any
	name := "shared"
	switch p := provider.(type) {
	case halProvider:
		devAny, queueAny = p.HalDevice(), p.HalQueue()
	case gpucontext.DeviceProvider:
		devAny, queueAny = p.Device(), p.Queue()
		if info := p.AdapterInfo(); info.Name != "" {
			name = info.Name
		}
	default:
		return nil, nil, "", fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := devAny.(hal.Device)
	if !ok || device == nil {
		return nil, nil, "", fmt.Errorf("wgpu: provider device is not hal.Device")
	}
	queue, ok := queueAny.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, "", fmt.Errorf("wgpu: provider queue is not hal.Queue")
	}
	return device, queue, name, nil
}

// Capability derives the work-group limit from the adapter limits. Every
// invocation handles bsort.ItemsPerThread elements of workgroup storage.
func (d *Device) Capability() bsort.Capability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capabilityLocked()
}

func (d *Device) capabilityLocked() bsort.Capability {
	limits := d.limits
	if !d.ready {
		limits = gputypes.DefaultLimits()
	}
	n := min(limits.MaxComputeWorkgroupSizeX, limits.MaxComputeInvocationsPerWorkgroup,
		limits.MaxComputeWorkgroupStorageSize/(bsort.ItemsPerThread*bytesPerElement))
	return bsort.Capability{MaxWorkGroupSize: int(n)}
}

// Stats returns the counters accumulated since Init.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Alloc creates a storage buffer of n elements.
func (d *Device) Alloc(n int) (*bsort.SortBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return nil, bsort.ErrNotInitialized
	}
	if n <= 0 {
		return nil, fmt.Errorf("wgpu: invalid buffer length %d", n)
	}
	size := uint64(n) * bytesPerElement
	if limit := min(d.limits.MaxStorageBufferBindingSize, d.limits.MaxBufferSize); size > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds the device limit of %d", bsort.ErrBufferSize, size, limit)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bsort_data", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create data buffer: %w", err)
	}
	return bsort.NewSortBuffer(&memory{buf: buf, n: n, owner: d}), nil
}

// Free destroys the buffer after pending launches complete.
func (d *Device) Free(buf *bsort.SortBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.own(buf)
	if !ok || m.buf == nil || !d.ready {
		return
	}
	if err := d.finishLocked(); err != nil {
		slogger().Warn("wgpu: finish before free failed", "err", err)
	}
	d.device.DestroyBuffer(m.buf)
	m.buf = nil
}

func (d *Device) own(buf *bsort.SortBuffer) (*memory, bool) {
	if buf == nil {
		return nil, false
	}
	m, ok := buf.Memory().(*memory)
	return m, ok && m.owner == d
}

func (d *Device) transfer(buf *bsort.SortBuffer, n int) (*memory, error) {
	if !d.ready {
		return nil, bsort.ErrNotInitialized
	}
	m, ok := d.own(buf)
	if !ok || m.buf == nil {
		return nil, fmt.Errorf("wgpu: buffer not allocated by this device")
	}
	if buf.Busy() {
		return nil, bsort.ErrBufferBusy
	}
	if n != m.n {
		return nil, fmt.Errorf("%w: %d elements for a buffer of %d", bsort.ErrBufferSize, n, m.n)
	}
	return m, nil
}

// Upload writes src into buf through the queue. Recorded launches are
// submitted first so the write cannot overtake them.
func (d *Device) Upload(buf *bsort.SortBuffer, src []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, err := d.transfer(buf, len(src))
	if err != nil {
		return err
	}
	if err := d.finishLocked(); err != nil {
		return err
	}
	if err := d.queue.WriteBuffer(m.buf, 0, packFloats(src)); err != nil {
		return fmt.Errorf("wgpu: write data buffer: %w", err)
	}
	d.stats.Uploads++
	return nil
}

// Download waits for pending launches and reads buf back through a staging
// buffer.
func (d *Device) Download(buf *bsort.SortBuffer, dst []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, err := d.transfer(buf, len(dst))
	if err != nil {
		return err
	}
	if err := d.finishLocked(); err != nil {
		return err
	}

	size := m.size()
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bsort_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "bsort_readback"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("bsort_readback"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(m.buf, staging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
	if err := d.submitLocked(encoder); err != nil {
		return err
	}

	mapping, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return fmt.Errorf("wgpu: map staging buffer: %w", err)
	}
	unpackFloats(unsafe.Slice((*byte)(mapping.Ptr), size), dst) //nolint:gosec // mapped range is size bytes
	if err := d.device.UnmapBuffer(staging); err != nil {
		return fmt.Errorf("wgpu: unmap staging buffer: %w", err)
	}
	d.stats.Downloads++
	return nil
}

// Launch records one kernel as a compute pass. The pass runs when Finish or
// a transfer submits the encoder.
func (d *Device) Launch(kernel string, args []bsort.Arg, globalSize, localSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return &bsort.LaunchError{Kernel: kernel, Err: bsort.ErrNotInitialized}
	}

	call, err := bsort.DecodeCall(kernel, args, globalSize, localSize)
	if err != nil {
		return err
	}
	m, ok := d.own(call.Buffer)
	if !ok || m.buf == nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "buffer not allocated by this device"}
	}
	if limit := int(d.limits.MaxComputeWorkgroupsPerDimension); call.Groups() > limit {
		return &bsort.LaunchError{Kernel: kernel,
			Reason: fmt.Sprintf("%d work-groups exceed the device limit of %d", call.Groups(), limit)}
	}
	if localSize > d.capabilityLocked().MaxWorkGroupSize {
		return &bsort.LaunchError{Kernel: kernel,
			Reason: fmt.Sprintf("work-group size %d exceeds the device limit", localSize)}
	}

	ks, err := d.kernelsFor(localSize)
	if err != nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "compile kernels", Err: err}
	}
	bg, err := d.bindLocked(m, call)
	if err != nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "bind arguments", Err: err}
	}
	if err := d.beginLocked(); err != nil {
		return &bsort.LaunchError{Kernel: kernel, Reason: "begin encoding", Err: err}
	}

	pass := d.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: kernel})
	pass.SetPipeline(ks.pipelines[kernel])
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32(call.Groups()), 1, 1) //nolint:gosec // bounded by MaxComputeWorkgroupsPerDimension
	pass.End()
	d.stats.Launches++
	return nil
}

// bindLocked creates the uniform buffer and bind group for one launch. Both
// live until the encoder is submitted.
func (d *Device) bindLocked(m *memory, c bsort.Call) (hal.BindGroup, error) {
	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bsort_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	d.uniforms = append(d.uniforms, ub)
	if err := d.queue.WriteBuffer(ub, 0, packParams(c, m.n)); err != nil {
		return nil, fmt.Errorf("write uniform buffer: %w", err)
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "bsort_bind", Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: m.buf.NativeHandle(), Offset: 0, Size: m.size()}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: paramsSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	d.bindGroups = append(d.bindGroups, bg)
	return bg, nil
}

func (d *Device) beginLocked() error {
	if d.encoder != nil {
		return nil
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "bsort_network"})
	if err != nil {
		return err
	}
	if err := encoder.BeginEncoding("bsort_network"); err != nil {
		return err
	}
	d.encoder = encoder
	return nil
}

// Finish submits the recorded launches and waits for them.
func (d *Device) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return bsort.ErrNotInitialized
	}
	return d.finishLocked()
}

func (d *Device) finishLocked() error {
	if d.encoder == nil {
		return nil
	}
	encoder := d.encoder
	d.encoder = nil
	err := d.submitLocked(encoder)
	d.releaseBindingsLocked()
	return err
}

// submitLocked ends encoding, submits and waits for the queue to go idle.
func (d *Device) submitLocked(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	d.stats.Submits++
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	return nil
}

// discardLocked drops recorded but unsubmitted launches.
func (d *Device) discardLocked() {
	if d.encoder != nil {
		d.encoder.DiscardEncoding()
		d.encoder = nil
	}
	d.releaseBindingsLocked()
}

func (d *Device) releaseBindingsLocked() {
	if d.device == nil {
		return
	}
	for _, bg := range d.bindGroups {
		d.device.DestroyBindGroup(bg)
	}
	for _, ub := range d.uniforms {
		d.device.DestroyBuffer(ub)
	}
	d.bindGroups = d.bindGroups[:0]
	d.uniforms = d.uniforms[:0]
}

// packParams encodes the Params uniform: stage, high_stage, dir, len.
func packParams(c bsort.Call, n int) []byte {
	out := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(out[0:], uint32(c.Stage))     //nolint:gosec // stage counts fit uint32
	binary.LittleEndian.PutUint32(out[4:], uint32(c.HighStage)) //nolint:gosec // stage counts fit uint32
	binary.LittleEndian.PutUint32(out[8:], uint32(c.Direction)) //nolint:gosec // read back as i32
	binary.LittleEndian.PutUint32(out[12:], uint32(n))          //nolint:gosec // bounded by buffer limits
	return out
}

func packFloats(src []float32) []byte {
	out := make([]byte, len(src)*bytesPerElement)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*bytesPerElement:], math.Float32bits(v))
	}
	return out
}

func unpackFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerElement:]))
	}
}
