package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/bsort"
)

// registry holds registered devices.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]DeviceFactory)
	// Priority order for device selection (first that initializes wins).
	devicePriority = []string{DeviceWGPU, DeviceOpenCL, DeviceCPU}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in device packages.
// If a device with the same name is already registered, it will be replaced.
func Register(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a device from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered device names in selection order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return orderedNames()
}

// orderedNames lists priority names first, then the rest alphabetically.
// Callers hold registryMu.
func orderedNames() []string {
	names := make([]string, 0, len(factories))
	for _, name := range devicePriority {
		if _, ok := factories[name]; ok {
			names = append(names, name)
		}
	}
	var rest []string
	for name := range factories {
		if !slices.Contains(devicePriority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// IsRegistered checks if a device with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get returns a new, uninitialized device by name.
// Returns nil if the device is not registered.
func Get(name string) bsort.Device {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the highest-priority registered device without
// initializing it. Returns nil if no devices are registered.
func Default() bsort.Device {
	for _, name := range Available() {
		if d := Get(name); d != nil {
			return d
		}
	}
	return nil
}

// MustDefault returns the default device or panics.
func MustDefault() bsort.Device {
	d := Default()
	if d == nil {
		panic("backend: no device available")
	}
	return d
}

// Open creates and initializes the named device.
func Open(name string) (bsort.Device, error) {
	d := Get(name)
	if d == nil {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	if err := d.Init(); err != nil {
		return nil, fmt.Errorf("backend: init %s: %w", name, err)
	}
	return d, nil
}

// InitDefault initializes devices in priority order and returns the first
// one whose Init succeeds. Devices that fail are logged and skipped.
func InitDefault() (bsort.Device, error) {
	log := bsort.Logger()
	for _, name := range Available() {
		d, err := Open(name)
		if err != nil {
			log.Warn("backend: device unavailable, trying next", "device", name, "err", err)
			continue
		}
		log.Info("backend: device selected", "device", name)
		return d, nil
	}
	return nil, ErrBackendNotAvailable
}

// Probe initializes every registered device once and reports what it found.
// Devices are closed again before Probe returns.
func Probe() []Status {
	names := Available()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		st := Status{Name: name}
		d, err := Open(name)
		if err != nil {
			st.Err = err
			out = append(out, st)
			continue
		}
		st.Capability = d.Capability()
		if ds, ok := d.(Describer); ok {
			st.Description = ds.Description()
		}
		d.Close()
		out = append(out, st)
	}
	return out
}
