package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	FlagVerbose    string
	FlagNoProgress bool

	// Debug flags
	FlagTraceAllocs    bool
	FlagLibOpenCLPath  string
	FlagHostCapacityMB uint64
	FlagHostMaxAllocMB uint64

	// Prod/runtime flags
	FlagChunkMB   uint64
	FlagMaxMB     uint64
	FlagStartMB   uint64
	FlagStepMB    uint64
	FlagSingleMB  uint64
	FlagDevice    int
	FlagPlatform  int
	FlagBackend   string
	FlagKernel    string
	FlagOutput    string
	FlagSeed      uint64
	FlagGridSize  int
	FlagBlockSize int
)

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dag-bench [chunk-MB] [max-MB] [device] [platform]",
		Short: "Sweep DAG sizes on an accelerator and measure memory-bound hashrate",
		Long: `dag-bench fills a host buffer with random data, uploads growing prefixes of it
to the selected device as a set of fixed-capacity chunks and times one kernel
launch per size. The sweep stops at the first size the device cannot hold.`,
		Args:          cobra.MaximumNArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFlags(cmd, args); err != nil {
				return err
			}
			if err := initLogger(); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logFlags(cmd.Flags())
			return appRun(cmd.Context(), cmd.OutOrStdout())
		},
	}

	addDebugFlags(rootCmd)
	addProdFlags(rootCmd)
	rootCmd.AddCommand(devicesCmd())

	return rootCmd
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the platforms and devices of the selected backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices(cmd.OutOrStdout())
		},
	}
}

func Execute() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
