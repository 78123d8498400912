//go:build !cuda

package compute

// systemDeviceRuntime is nil: CUDA was not compiled in.
var systemDeviceRuntime func() deviceRuntime

var cudaRuntimeVersion = 0
