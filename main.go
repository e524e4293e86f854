package main

import (
	// backends register themselves
	_ "github.com/vuvietnguyenit/dag-bench/device/host"
	_ "github.com/vuvietnguyenit/dag-bench/device/opencl"
	// registers the host rendition of the kernel
	_ "github.com/vuvietnguyenit/dag-bench/kernel/hostsim"
)

func main() {
	Execute()
}
