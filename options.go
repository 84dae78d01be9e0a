package bsort

// Option configures a Sorter during creation.
//
// Example:
//
//	// Plan with the device's full work-group size
//	s, _ := bsort.NewSorter(dev)
//
//	// Cap work-groups at 64 items and check the result
//	s, _ := bsort.NewSorter(dev, bsort.WithMaxWorkGroupSize(64), bsort.WithVerify(true))
type Option func(*options)

// options holds optional configuration for Sorter creation.
type options struct {
	maxWorkGroupSize int
	allowIncomplete  bool
	verify           bool
}

// defaultOptions returns the default sorter options.
func defaultOptions() options {
	return options{
		maxWorkGroupSize: 0, // Device capability
	}
}

// WithMaxWorkGroupSize caps the work-group size used for planning. Values
// above the device capability have no effect; zero or less restores the
// device capability.
func WithMaxWorkGroupSize(n int) Option {
	return func(o *options) {
		o.maxWorkGroupSize = n
	}
}

// WithIncompleteNetworks lets Sort run plans whose work-group count is not a
// power of two. The device still executes every launch, but the output is
// not guaranteed to be ordered.
func WithIncompleteNetworks() Option {
	return func(o *options) {
		o.allowIncomplete = true
	}
}

// WithVerify makes Sort check the order of its output with Verify.
func WithVerify(on bool) Option {
	return func(o *options) {
		o.verify = on
	}
}
