// Package main implements orefctl, the command-line entry point for the
// oref-ng decision engine: a one-shot "determine", a continuously ticking
// "serve", and a fixture "replay" runner.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orefctl",
		Short: "oref-ng closed-loop decision engine CLI",
	}
	cmd.AddCommand(newDetermineCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReplayCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
