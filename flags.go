package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vuvietnguyenit/dag-bench/kernel"
)

// positional arguments in order, each the name of the flag it stands for
var positionalFlags = []string{"chunk-size", "max-size", "device", "platform"}

// validateFlags folds positional arguments into their flags and checks the
// combination. An explicitly set flag wins over its positional argument.
func validateFlags(cmd *cobra.Command, args []string) error {
	if cmd.HasParent() {
		args = nil
	}
	if len(args) > len(positionalFlags) {
		return fmt.Errorf("at most %d positional arguments, got %d", len(positionalFlags), len(args))
	}
	for i, arg := range args {
		name := positionalFlags[i]
		if cmd.Flags().Changed(name) {
			slog.Debug("positional argument overridden by flag", "flag", name, "arg", arg)
			continue
		}
		if _, err := strconv.ParseInt(arg, 10, 64); err != nil {
			return fmt.Errorf("argument %d (%s): %q is not an integer", i+1, name, arg)
		}
		if err := cmd.Flags().Set(name, arg); err != nil {
			return fmt.Errorf("argument %d (%s): %w", i+1, name, err)
		}
	}

	var errs []error
	if FlagChunkMB == 0 {
		errs = append(errs, errors.New("--chunk-size must be positive"))
	}
	if cmd.Flags().Changed("single") {
		if FlagSingleMB == 0 {
			errs = append(errs, errors.New("--single must be positive"))
		}
		for _, f := range []string{"start", "step", "max-size"} {
			if cmd.Flags().Changed(f) {
				errs = append(errs, fmt.Errorf("--%s cannot be combined with --single", f))
			}
		}
	} else {
		if FlagStartMB == 0 {
			errs = append(errs, errors.New("--start must be positive"))
		}
		if FlagStepMB == 0 {
			errs = append(errs, errors.New("--step must be positive"))
		}
	}
	if FlagDevice < 0 || FlagPlatform < 0 {
		errs = append(errs, errors.New("--device and --platform must not be negative"))
	}
	if FlagGridSize <= 0 || FlagBlockSize <= 0 {
		errs = append(errs, errors.New("--grid-size and --block-size must be positive"))
	}
	if FlagTraceAllocs && FlagBackend != "opencl" {
		errs = append(errs, errors.New("--trace-allocs needs --backend opencl"))
	}
	return errors.Join(errs...)
}

func addProdFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&FlagVerbose, "log-verbose", slog.LevelInfo.String(), "Log verbosity level (DEBUG, INFO, WARN, ERROR)")
	cmd.PersistentFlags().StringVar(&FlagBackend, "backend", "host", "Device backend (host, opencl)")
	cmd.PersistentFlags().IntVar(&FlagPlatform, "platform", 0, "Platform index")
	cmd.PersistentFlags().IntVar(&FlagDevice, "device", 0, "Device index on the platform")

	cmd.Flags().Uint64Var(&FlagChunkMB, "chunk-size", 256, "Capacity of one device chunk in MB")
	cmd.Flags().Uint64Var(&FlagMaxMB, "max-size", 0, "Upper end of the sweep in MB (0 = device memory)")
	cmd.Flags().Uint64Var(&FlagStartMB, "start", 128, "First DAG size in MB")
	cmd.Flags().Uint64Var(&FlagStepMB, "step", 128, "DAG size increment in MB")
	cmd.Flags().Uint64Var(&FlagSingleMB, "single", 0, "Run only this DAG size in MB")
	cmd.Flags().StringVar(&FlagKernel, "kernel", "", "Kernel source file (default: built-in dagsim.cl)")
	cmd.Flags().StringVarP(&FlagOutput, "output", "o", "", "Write results as tab-separated values to this file")
	cmd.Flags().Uint64Var(&FlagSeed, "seed", 0, "Random seed for the DAG and targets (0 = time based)")
	cmd.Flags().IntVar(&FlagGridSize, "grid-size", kernel.GridSize, "Work-groups per launch")
	cmd.Flags().IntVar(&FlagBlockSize, "block-size", kernel.BlockSize, "Work-items per work-group")
	cmd.Flags().BoolVar(&FlagNoProgress, "no-progress", false, "Disable the progress bar while generating the DAG")
}

// logFlags records every flag the user set, after positional folding.
func logFlags(fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		slog.Debug("flag", "name", f.Name, "value", f.Value.String())
	})
}
