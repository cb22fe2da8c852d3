package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cardvault/internal/cards"
	"cardvault/internal/library"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var exact bool
	var byID string
	var byOracle string
	var bySet string
	var byNumber string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "lookup [name]",
		Short: "Look a card up by name, id, or set/collector-number",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				card, found, err := resolveLookup(cmd, svc, args, exact, byID, byOracle, bySet, byNumber)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no card found")
				}
				if jsonOut {
					return writeJSON(cmd, card)
				}
				printCard(cmd, card)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&exact, "exact", false, "Require a precise name match instead of fuzzy matching")
	cmd.Flags().StringVar(&byID, "id", "", "Look up by print identifier")
	cmd.Flags().StringVar(&byOracle, "oracle", "", "Look up by oracle identity (cache only)")
	cmd.Flags().StringVar(&bySet, "set", "", "Set code for a print lookup (requires --number)")
	cmd.Flags().StringVar(&byNumber, "number", "", "Collector number for a print lookup (requires --set)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the record as JSON")
	return cmd
}

func resolveLookup(cmd *cobra.Command, svc *library.Service, args []string, exact bool, byID, byOracle, bySet, byNumber string) (cards.Card, bool, error) {
	switch {
	case byID != "":
		card, found := svc.LookupID(cmd.Context(), byID)
		return card, found, nil
	case byOracle != "":
		card, found := svc.LookupKey(cards.OracleKey(byOracle))
		return card, found, nil
	case bySet != "" || byNumber != "":
		if bySet == "" || byNumber == "" {
			return cards.Card{}, false, fmt.Errorf("print lookup needs both --set and --number")
		}
		card, found := svc.LookupKey(cards.PrintKey(bySet, byNumber))
		return card, found, nil
	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		card, found := svc.LookupName(cmd.Context(), args[0], exact)
		return card, found, nil
	default:
		return cards.Card{}, false, fmt.Errorf("provide a card name, --id, or --set/--number")
	}
}

func printCard(cmd *cobra.Command, card cards.Card) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s", card.Name)
	if card.ManaCost != "" {
		fmt.Fprintf(out, "  %s", card.ManaCost)
	}
	fmt.Fprintln(out)
	if card.TypeLine != "" {
		fmt.Fprintln(out, card.TypeLine)
	}
	if card.OracleText != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, card.OracleText)
	}
	fmt.Fprintln(out)
	if card.HasPrint() {
		fmt.Fprintf(out, "Print: %s #%s (%s)\n", strings.ToUpper(card.SetCode), card.CollectorNumber, card.Rarity)
	}
	if card.Prices.USD != "" {
		fmt.Fprintf(out, "Price: $%s", card.Prices.USD)
		if card.Prices.USDFoil != "" {
			fmt.Fprintf(out, " (foil $%s)", card.Prices.USDFoil)
		}
		fmt.Fprintln(out)
	}
}
