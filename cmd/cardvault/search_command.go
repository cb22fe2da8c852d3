package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cardvault/internal/cards"
	"cardvault/internal/library"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var remote bool
	var page int
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cards by name (local) or full-text query (remote)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				if remote {
					result, err := svc.SearchRemote(cmd.Context(), args[0], page)
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, result.Cards)
					}
					printCardTable(cmd, result.Cards)
					fmt.Fprintf(cmd.OutOrStdout(), "%d of %d cards", len(result.Cards), result.TotalCards)
					if result.HasMore {
						fmt.Fprintf(cmd.OutOrStdout(), " (more on page %d)", page+1)
					}
					fmt.Fprintln(cmd.OutOrStdout())
					return nil
				}

				results := svc.SearchLocal(args[0], limit)
				if jsonOut {
					return writeJSON(cmd, results)
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cached cards match; try --remote")
					return nil
				}
				printCardTable(cmd, results)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Query the remote source instead of the local cache")
	cmd.Flags().IntVar(&page, "page", 1, "Result page for remote searches")
	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum local results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit results as JSON")
	return cmd
}

func printCardTable(cmd *cobra.Command, list []cards.Card) {
	rows := make([][]string, 0, len(list))
	for _, card := range list {
		rows = append(rows, []string{
			card.Name,
			card.ManaCost,
			card.TypeLine,
			strings.ToUpper(card.SetCode),
			card.CollectorNumber,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Name", "Cost", "Type", "Set", "#"}, rows, 5))
}
