package bsort

import "fmt"

// Launcher issues kernel launches on a device.
//
// Launch enqueues one kernel over globalSize work-items split into groups of
// localSize. It may return before the kernel completes, but launches on the
// same buffer must execute in the order they were issued.
type Launcher interface {
	Launch(kernel string, args []Arg, globalSize, localSize int) error
}

// LaunchFunc adapts a function to the Launcher interface.
type LaunchFunc func(kernel string, args []Arg, globalSize, localSize int) error

// Launch calls f.
func (f LaunchFunc) Launch(kernel string, args []Arg, globalSize, localSize int) error {
	return f(kernel, args, globalSize, localSize)
}

// Execute runs net against buf with one launch per descriptor.
//
// Work-groups cannot synchronize with each other inside a launch, so the end
// of a launch is the only global barrier available: every descriptor boundary
// is a barrier the next phase depends on. Launches are therefore issued
// strictly one after another, in network order, and must never be reordered,
// merged or overlapped by the launcher.
//
// The first failing launch stops the dispatch and is reported as a
// *DispatchError wrapping the launcher's error unchanged. There is no retry,
// and the buffer content is undefined after a failure.
func Execute(l Launcher, buf *SortBuffer, net Network) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrBufferSize)
	}
	if want := net.Plan.Len(); buf.Len() != want {
		return fmt.Errorf("%w: buffer holds %d elements, plan sorts %d", ErrBufferSize, buf.Len(), want)
	}
	if !buf.acquire() {
		return ErrBufferBusy
	}
	defer buf.release()

	log := Logger()
	for i, d := range net.Stages {
		args := LaunchArgs(d, buf, net.Plan, net.Direction)
		log.Debug("bsort: launch", "index", i, "stage", d.String(), "kernel", d.Kernel())
		if err := l.Launch(d.Kernel(), args, net.Plan.GlobalSize, net.Plan.LocalSize); err != nil {
			return &DispatchError{Index: i, Stage: d, Err: err}
		}
	}
	return nil
}
