// Command bisim reduces a labelled transition system to its coarsest
// branching-bisimulation quotient.
package main

import (
	"fmt"
	"os"

	"github.com/jaxan/branching-bisim/lts"
	"github.com/jaxan/branching-bisim/partition"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bisim",
		Short: "Reduce a labelled transition system modulo branching bisimulation",
	}
	root.AddCommand(newReduceCmd())
	return root
}

func newReduceCmd() *cobra.Command {
	var (
		input              string
		output             string
		strong             bool
		preserveDivergence bool
		verbose            bool
	)

	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Compute the branching-bisimulation quotient of an .aut file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReduce(input, output, strong, preserveDivergence, verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input, "input", "", "input .aut file (required)")
	flags.StringVar(&output, "output", "", "output .aut file (default: stdout)")
	flags.BoolVar(&strong, "strong", false, "compute strong bisimulation instead of branching bisimulation")
	flags.BoolVar(&preserveDivergence, "preserve-divergence", false, "preserve divergence (tau loops) while reducing")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log stabilizer progress to stderr")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runReduce(input, output string, strong, preserveDivergence, verbose bool) error {
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	l, err := lts.ReadAUT(in)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	reduced, err := partition.Reduce(l, partition.Options{
		Branching:          !strong,
		PreserveDivergence: preserveDivergence,
		Logger:             log,
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return lts.WriteAUT(out, reduced)
}
