package main

import "github.com/spf13/cobra"

func addDebugFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&FlagTraceAllocs, "trace-allocs", false, "Count clCreateBuffer/clReleaseMemObject calls with eBPF uprobes (linux, needs privileges)")
	cmd.Flags().StringVar(&FlagLibOpenCLPath, "libopencl-path", "/usr/lib/x86_64-linux-gnu/libOpenCL.so.1", "Path to the OpenCL loader traced by --trace-allocs")

	cmd.PersistentFlags().Uint64Var(&FlagHostCapacityMB, "host-capacity", 0, "Memory of the host backend device in MB (0 = 4096)")
	cmd.PersistentFlags().Uint64Var(&FlagHostMaxAllocMB, "host-max-alloc", 0, "Largest single allocation on the host backend in MB (0 = 1024)")
}
