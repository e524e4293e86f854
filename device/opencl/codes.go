package opencl

import "github.com/vuvietnguyenit/dag-bench/device"

// OpenCL status codes the harness distinguishes.
const (
	clOutOfResources       = -5
	clOutOfHostMemory      = -6
	clMemAllocationFailure = -4
	clInvalidBufferSize    = -61
	clDeviceNotFound       = -1
	clInvalidPlatform      = -32
	clInvalidDevice        = -33
	clBuildProgramFailure  = -11
	clPlatformNotFoundKHR  = -1001
)

func classify(code int) error {
	switch code {
	case clMemAllocationFailure, clOutOfResources, clOutOfHostMemory, clInvalidBufferSize:
		return device.ErrOutOfMemory
	case clDeviceNotFound, clInvalidPlatform, clInvalidDevice:
		return device.ErrNotFound
	case clBuildProgramFailure:
		return device.ErrCompile
	default:
		return device.ErrInvalid
	}
}
