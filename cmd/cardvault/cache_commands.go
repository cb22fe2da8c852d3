package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardvault/internal/library"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Card cache operations",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show card cache composition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				stats := svc.CacheStats()
				if jsonOut {
					return writeJSON(cmd, stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Entries", "Names", "Prints", "Document"},
					[][]string{{
						fmt.Sprintf("%d", stats.Entries),
						fmt.Sprintf("%d", stats.Names),
						fmt.Sprintf("%d", stats.Prints),
						stats.Path,
					}}, 1, 2, 3))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit stats as JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached card record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the cache without --yes")
			}
			return ctx.withService(func(svc *library.Service) error {
				before := svc.CacheStats().Entries
				if err := svc.ClearCache(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", before)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the clear")
	return cmd
}
