package tensor

import "strings"

// Device represents the compute device a tensor (or a tile) resides on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// IsAccelerator reports whether the device is anything other than host memory.
func (d Device) IsAccelerator() bool {
	return d != CPU
}

// ParseDevice parses a device name as printed by Device.String, case-insensitively.
// The aliases "host" and "gpu" map to CPU and WebGPU.
func ParseDevice(name string) (Device, bool) {
	switch strings.ToLower(name) {
	case "cpu", "host":
		return CPU, true
	case "cuda":
		return CUDA, true
	case "vulkan":
		return Vulkan, true
	case "metal":
		return Metal, true
	case "webgpu", "gpu":
		return WebGPU, true
	default:
		return CPU, false
	}
}
