// Package main provides the tinygraph converter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinygraph-ml/tinygraph/internal/graphio"
	"github.com/tinygraph-ml/tinygraph/internal/transform"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "tinygraph",
		Short:         "Convert and quantize model graphs for on-device inference",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newConvertCmd())
	root.AddCommand(newPassesCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newConvertCmd() *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		optionsPath string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Run the optimization and quantization pipeline on a debug-JSON graph",
		RunE: func(_ *cobra.Command, _ []string) error {
			opts := transform.DefaultOptions()
			if optionsPath != "" {
				var err error
				if opts, err = transform.LoadOptions(optionsPath); err != nil {
					return err
				}
			}

			in, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = in.Close()
			}()

			g, err := graphio.Read(in)
			if err != nil {
				return fmt.Errorf("load %s: %w", inputPath, err)
			}

			g, err = transform.Transform(g, opts)
			if err != nil {
				return err
			}

			out, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = out.Close()
			}()

			if err := graphio.Write(out, g); err != nil {
				return fmt.Errorf("write %s: %w", outputPath, err)
			}
			fmt.Printf("converted %s -> %s (%d nodes)\n", inputPath, outputPath, g.NumNodes())
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "input graph (debug JSON)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output graph (debug JSON)")
	cmd.Flags().StringVarP(&optionsPath, "options", "c", "", "conversion options YAML")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newPassesCmd() *cobra.Command {
	var optionsPath string

	cmd := &cobra.Command{
		Use:   "passes",
		Short: "List the optimizer pass pipeline for the given options",
		RunE: func(_ *cobra.Command, _ []string) error {
			opts := transform.DefaultOptions()
			if optionsPath != "" {
				var err error
				if opts, err = transform.LoadOptions(optionsPath); err != nil {
					return err
				}
			}
			for i, name := range transform.PassNames(opts) {
				fmt.Printf("%2d. %s\n", i+1, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&optionsPath, "options", "c", "", "conversion options YAML")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("tinygraph %s\n", version)
		},
	}
}
