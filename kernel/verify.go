package kernel

import (
	"fmt"

	"github.com/notargets/gocca"
)

// DefaultDeviceProps tried in order when no device is specified.
var DefaultDeviceProps = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// OpenDevice creates an OCCA device from a properties JSON string, or
// walks the default backend list when props is empty.
func OpenDevice(props string) (*gocca.OCCADevice, error) {
	if props != "" {
		device, err := gocca.NewDevice(props)
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", props, err)
		}
		return device, nil
	}
	for _, p := range DefaultDeviceProps {
		if device, err := gocca.NewDevice(p); err == nil {
			return device, nil
		}
	}
	return nil, fmt.Errorf("no OCCA backend available")
}

// Verify builds every entry point of the generated source on the given
// device, confirming the emitted code compiles. The kernels are freed
// immediately; Verify does not run them.
func Verify(lk *LocalKernel, device *gocca.OCCADevice) error {
	for _, entry := range lk.Entries {
		var (
			kernel *gocca.OCCAKernel
			err    error
		)
		if device.Mode() == "OpenMP" {
			// OCCA does not pass a default optimization flag to OpenMP.
			props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
			kernel, err = device.BuildKernelFromString(lk.Source, entry.Name, props)
			props.Free()
		} else {
			kernel, err = device.BuildKernelFromString(lk.Source, entry.Name, nil)
		}
		if err != nil {
			return fmt.Errorf("building kernel %s: %w", entry.Name, err)
		}
		kernel.Free()
	}
	return nil
}
