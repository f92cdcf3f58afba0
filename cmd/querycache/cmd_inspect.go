package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var inspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect <defId>",
	Short: "Show a query definition's LRU set size and its oldest members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defId := args[0]

		sf, err := openStore()
		if err != nil {
			return fmt.Errorf("querycache: %w", err)
		}

		members, total, err := sf.Inspect(context.Background(), defId, parseLimit(inspectLimit))
		if err != nil {
			return fmt.Errorf("querycache: %w", err)
		}

		fmt.Printf("%s: %d member(s) in LRU set\n", defId, total)
		if len(members) == 0 {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KEY\tREFCOUNT\tUPDATED")
		for _, m := range members {
			updated := "-"
			if m.UpdatedAt > 0 {
				updated = time.UnixMilli(m.UpdatedAt).Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\n", m.Key, m.RefCount, updated)
		}
		w.Flush() //nolint:errcheck
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 20, "maximum number of oldest members to list")
}
