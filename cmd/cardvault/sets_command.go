package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cardvault/internal/library"
)

func newSetsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var setType string

	cmd := &cobra.Command{
		Use:   "sets",
		Short: "List card sets known to the remote source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				sets, err := svc.Sets(cmd.Context())
				if err != nil {
					return err
				}

				if setType != "" {
					filtered := sets[:0]
					for _, set := range sets {
						if strings.EqualFold(set.SetType, setType) {
							filtered = append(filtered, set)
						}
					}
					sets = filtered
				}

				if jsonOut {
					return writeJSON(cmd, sets)
				}

				rows := make([][]string, 0, len(sets))
				for _, set := range sets {
					rows = append(rows, []string{
						strings.ToUpper(set.Code),
						set.Name,
						set.SetType,
						fmt.Sprintf("%d", set.CardCount),
						set.ReleasedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Code", "Name", "Type", "Cards", "Released"}, rows, 4))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit sets as JSON")
	cmd.Flags().StringVar(&setType, "type", "", "Filter by set type (core, expansion, ...)")
	return cmd
}
