package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var gcSweepMaxCount int

var gcSweepCmd = &cobra.Command{
	Use:   "gc-sweep <defId>",
	Short: "Evict a query definition's LRU set down to --max-count, cascading to referenced entities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defId := args[0]
		if gcSweepMaxCount <= 0 {
			return fmt.Errorf("querycache: --max-count must be positive")
		}

		sf, err := openStore()
		if err != nil {
			return fmt.Errorf("querycache: %w", err)
		}

		ctx := context.Background()
		evicted, err := sf.Sweep(ctx, defId, gcSweepMaxCount)
		if err != nil {
			return fmt.Errorf("querycache: %w", err)
		}

		_, remaining, err := sf.Inspect(ctx, defId, 0)
		if err != nil {
			return fmt.Errorf("querycache: %w", err)
		}

		fmt.Printf("%s: evicted %d member(s), %d remaining\n", defId, evicted, remaining)
		return nil
	},
}

func init() {
	gcSweepCmd.Flags().IntVar(&gcSweepMaxCount, "max-count", 0, "target LRU set size after eviction (required)")
}
