package bsort

import (
	"errors"
	"fmt"
	"time"
)

// Report describes one Sort call.
type Report struct {
	Device   string
	Plan     WorkSizePlan
	Launches int

	Upload   time.Duration
	Sort     time.Duration
	Download time.Duration
	Verify   time.Duration
}

// Total returns the sum of the measured phases.
func (r Report) Total() time.Duration {
	return r.Upload + r.Sort + r.Download + r.Verify
}

// Sorter sorts float32 slices on one device.
//
// A Sorter does not own its device: closing the device is up to the caller.
// Sort may be called from several goroutines; each call works on its own
// buffer.
type Sorter struct {
	dev  Device
	opts options
}

// NewSorter returns a Sorter that runs on dev. The device must already be
// initialized.
func NewSorter(dev Device, opts ...Option) (*Sorter, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	propagateLogger(dev, Logger())
	return &Sorter{dev: dev, opts: o}, nil
}

// Device returns the device the sorter runs on.
func (s *Sorter) Device() Device { return s.dev }

// Capability returns the device capability after the sorter's cap.
func (s *Sorter) Capability() Capability {
	c := s.dev.Capability()
	if m := s.opts.maxWorkGroupSize; m > 0 && m < c.MaxWorkGroupSize {
		c.MaxWorkGroupSize = m
	}
	return c
}

// Plan returns the geometry Sort would use for n elements.
func (s *Sorter) Plan(n int) (WorkSizePlan, error) {
	return Plan(n, s.Capability())
}

// Sort orders data in place.
//
// The length of data must be a positive multiple of ItemsPerThread. Unless
// WithIncompleteNetworks was given, lengths whose plan has a work-group count
// that is not a power of two fail with ErrIncompleteNetwork before anything
// is sent to the device.
func (s *Sorter) Sort(data []float32, dir Direction) (Report, error) {
	rep := Report{Device: s.dev.Name()}
	plan, err := s.Plan(len(data))
	if err != nil {
		return rep, err
	}
	rep.Plan = plan

	log := Logger()
	if !plan.Complete() {
		log.Warn("bsort: work-group count is not a power of two, output may be unordered",
			"plan", plan.String())
		if !s.opts.allowIncomplete {
			return rep, fmt.Errorf("%w: %s", ErrIncompleteNetwork, plan)
		}
	}
	net := BuildNetwork(plan, dir)
	rep.Launches = net.Len()

	buf, err := s.dev.Alloc(plan.Len())
	if err != nil {
		return rep, fmt.Errorf("bsort: alloc: %w", err)
	}
	defer s.dev.Free(buf)

	start := time.Now()
	if err := s.dev.Upload(buf, data); err != nil {
		return rep, fmt.Errorf("bsort: upload: %w", err)
	}
	rep.Upload = time.Since(start)

	start = time.Now()
	if err := Execute(s.dev, buf, net); err != nil {
		return rep, err
	}
	if err := s.dev.Finish(); err != nil {
		return rep, fmt.Errorf("bsort: finish: %w", err)
	}
	rep.Sort = time.Since(start)

	start = time.Now()
	if err := s.dev.Download(buf, data); err != nil {
		return rep, fmt.Errorf("bsort: download: %w", err)
	}
	rep.Download = time.Since(start)

	if s.opts.verify {
		start = time.Now()
		err := Verify(data, dir)
		rep.Verify = time.Since(start)
		if err != nil {
			return rep, err
		}
	}

	log.Debug("bsort: sorted",
		"device", rep.Device,
		"n", len(data),
		"launches", rep.Launches,
		"sort", rep.Sort)
	return rep, nil
}

// Sort8 sorts eight values with the single work-item network.
func (s *Sorter) Sort8(v [8]float32, dir Direction) ([8]float32, error) {
	_, err := s.Sort(v[:], dir)
	return v, err
}

// Sort orders data on the current device. See UseDevice.
func Sort(data []float32, dir Direction, opts ...Option) (Report, error) {
	d := CurrentDevice()
	if d == nil {
		return Report{}, ErrNoDevice
	}
	s, err := NewSorter(d, opts...)
	if err != nil {
		return Report{}, err
	}
	return s.Sort(data, dir)
}

// IsIncomplete reports whether err was caused by a plan whose network cannot
// order every element.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncompleteNetwork)
}
