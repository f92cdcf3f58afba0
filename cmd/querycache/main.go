// Command querycache is an operator CLI for inspecting and trimming the
// on-disk state of a running query cache deployment: the per-definition LRU
// sets and ref-counted documents the Store Façade maintains, independent of
// any single process's in-memory Query Client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "querycache",
	Short: "Inspect and trim a query cache deployment's on-disk LRU/ref-count state",
}

var inMemory bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "use a scratch in-memory store instead of Redis (smoke-testing only; shares no state with a running server)")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(gcSweepCmd)
}
