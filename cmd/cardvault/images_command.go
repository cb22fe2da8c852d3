package main

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cardvault/internal/imagecache"
	"cardvault/internal/library"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Image cache operations",
	}

	imagesCmd.AddCommand(newImagesFetchCommand(ctx))
	imagesCmd.AddCommand(newImagesShowCommand(ctx))
	imagesCmd.AddCommand(newImagesPrefetchCommand(ctx))
	imagesCmd.AddCommand(newImagesEvictCommand(ctx))
	imagesCmd.AddCommand(newImagesStatsCommand(ctx))

	return imagesCmd
}

func newImagesFetchCommand(ctx *commandContext) *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "fetch <card name>",
		Short: "Fetch one card's image and print its cached path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := imagecache.Size(size)
			if !tier.Valid() {
				return fmt.Errorf("unknown size %q (thumbnail, medium, large, original)", size)
			}
			return ctx.withService(func(svc *library.Service) error {
				card, found := svc.LookupName(cmd.Context(), args[0], false)
				if !found {
					return fmt.Errorf("no card found for %q", args[0])
				}
				path, err := svc.FetchImagePath(cmd.Context(), card, tier)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&size, "size", string(imagecache.SizeMedium), "Display tier")
	return cmd
}

func newImagesShowCommand(ctx *commandContext) *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "show <card name>",
		Short: "Print the displayable image path without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := imagecache.Size(size)
			if !tier.Valid() {
				return fmt.Errorf("unknown size %q (thumbnail, medium, large, original)", size)
			}
			return ctx.withService(func(svc *library.Service) error {
				card, found := svc.LookupName(cmd.Context(), args[0], false)
				if !found {
					return fmt.Errorf("no card found for %q", args[0])
				}
				path, err := svc.ImageForDisplay(card, tier)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&size, "size", string(imagecache.SizeMedium), "Display tier")
	return cmd
}

func newImagesPrefetchCommand(ctx *commandContext) *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "prefetch <query>",
		Short: "Warm the image cache for every cached card matching the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := imagecache.Size(size)
			if !tier.Valid() {
				return fmt.Errorf("unknown size %q (thumbnail, medium, large, original)", size)
			}
			return ctx.withService(func(svc *library.Service) error {
				matches := svc.SearchLocal(args[0], math.MaxInt)
				if len(matches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cached cards match the query")
					return nil
				}

				err := svc.PreloadImages(cmd.Context(), matches, tier, func(completed, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d", completed, total)
				})
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Prefetched images for %d cards\n", len(matches))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&size, "size", string(imagecache.SizeThumbnail), "Display tier")
	return cmd
}

func newImagesEvictCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "evict",
		Short: "Remove cached images older than the configured age",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				removed, err := svc.EvictImages()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d images\n", removed)
				return nil
			})
		},
	}
}

func newImagesStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show image cache size and location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *library.Service) error {
				stats, err := svc.ImageStats()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Files", "Size", "Directory"},
					[][]string{{
						fmt.Sprintf("%d", stats.Files),
						humanize.Bytes(uint64(stats.Bytes)),
						stats.Dir,
					}}, 1, 2))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit stats as JSON")
	return cmd
}
