// Command oksctl is a thin CLI over internal/kernel: load a set of
// schema/data files, validate them, or re-serialize a loaded file to a
// chosen path.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"oks/internal/config"
	"oks/internal/kernel"
	"oks/internal/oklog"
)

func main() {
	var configPath string

	logCfg := oklog.NewConfig()

	rootCmd := &cobra.Command{
		Use:           "oksctl",
		Short:         "Load, validate, and re-serialize OKS configuration databases",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an oks.yaml profile")
	logCfg.RegisterFlags(rootCmd.PersistentFlags())

	buildKernel := func(flags *pflag.FlagSet) (*kernel.Kernel, error) {
		settings, fileLogCfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if flags.Changed("log-level") {
			fileLogCfg.Level = logCfg.Level
		}
		if flags.Changed("log-format") {
			fileLogCfg.Format = logCfg.Format
		}
		logger, err := fileLogCfg.NewLogger(os.Stderr)
		if err != nil {
			return nil, err
		}
		return kernel.NewKernel(settings, logger), nil
	}

	rootCmd.AddCommand(
		newLoadCmd(buildKernel),
		newValidateCmd(buildKernel),
		newDumpSchemaCmd(buildKernel),
		newDumpDataCmd(buildKernel),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "oksctl: %v\n", err)
		os.Exit(1)
	}
}

type kernelBuilder func(flags *pflag.FlagSet) (*kernel.Kernel, error)

func newLoadCmd(build kernelBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>...",
		Short: "Load and bind one or more schema/data files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := build(cmd.Flags())
			if err != nil {
				return err
			}
			if err := k.Load(args); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "load ok")
			return nil
		},
	}
}

func newValidateCmd(build kernelBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema-file> <data-file>...",
		Short: "Load files and print the accumulated errors and warnings if the load fails",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := build(cmd.Flags())
			if err != nil {
				return err
			}
			if err := k.Load(args); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "validate ok")
			return nil
		},
	}
}

func newDumpSchemaCmd(build kernelBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "dump-schema <file> <out>",
		Short: "Load a schema file and re-serialize it to a new path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := build(cmd.Flags())
			if err != nil {
				return err
			}
			in, out := args[0], args[1]
			if err := k.Load([]string{in}); err != nil {
				return err
			}
			abs, err := k.ResolveFilePath(in, "")
			if err != nil {
				return err
			}
			return k.SaveSchemaAs(abs, out)
		},
	}
}

func newDumpDataCmd(build kernelBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   "dump-data <file> <out>",
		Short: "Load a data file and re-serialize it to a new path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := build(cmd.Flags())
			if err != nil {
				return err
			}
			in, out := args[0], args[1]
			if err := k.Load([]string{in}); err != nil {
				return err
			}
			abs, err := k.ResolveFilePath(in, "")
			if err != nil {
				return err
			}
			return k.SaveDataAs(abs, out)
		},
	}
}
