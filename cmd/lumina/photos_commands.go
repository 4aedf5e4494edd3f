package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPhotosCommand(ctx *commandContext) *cobra.Command {
	photosCmd := &cobra.Command{
		Use:   "photos",
		Short: "Browse processed photos",
	}

	photosCmd.AddCommand(newPhotosListCommand(ctx))
	photosCmd.AddCommand(newPhotosShowCommand(ctx))

	return photosCmd
}

func newPhotosListCommand(ctx *commandContext) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List photos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				page, err := client.ListPhotos(limit, offset)
				if err != nil {
					return err
				}
				if page.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No photos yet")
					return nil
				}

				rows := make([][]string, 0, len(page.Items))
				for _, photo := range page.Items {
					location := photo.City
					if location == "" {
						location = photo.Country
					}
					live := ""
					if photo.IsLivePhoto {
						live = "live"
					}
					rows = append(rows, []string{
						photo.ID,
						photo.StorageKey,
						fmt.Sprintf("%dx%d", photo.Width, photo.Height),
						photo.DateTaken,
						location,
						live,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Storage Key", "Size", "Taken", "Location", ""}, rows))
				fmt.Fprintf(out, "Showing %d of %d photo(s)\n", len(page.Items), page.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum photos to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Listing offset")
	return cmd
}

func newPhotosShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one photo's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				photo, err := client.GetPhoto(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderSectionHeader("Photo "+photo.ID, colorize))
				fmt.Fprintln(out, renderStatusLine("Storage key", statusInfo, photo.StorageKey, colorize))
				fmt.Fprintln(out, renderStatusLine("Dimensions", statusInfo, fmt.Sprintf("%dx%d", photo.Width, photo.Height), colorize))
				fmt.Fprintln(out, renderStatusLine("File size", statusInfo, strconv.FormatInt(photo.FileSize, 10), colorize))
				if photo.DateTaken != "" {
					fmt.Fprintln(out, renderStatusLine("Taken", statusInfo, photo.DateTaken, colorize))
				}
				if photo.OriginalURL != "" {
					fmt.Fprintln(out, renderStatusLine("Original", statusInfo, photo.OriginalURL, colorize))
				}
				if photo.ThumbnailURL != "" {
					fmt.Fprintln(out, renderStatusLine("Thumbnail", statusInfo, photo.ThumbnailURL, colorize))
				}
				if photo.Latitude != nil && photo.Longitude != nil {
					coords := fmt.Sprintf("%.5f, %.5f", *photo.Latitude, *photo.Longitude)
					fmt.Fprintln(out, renderStatusLine("Coordinates", statusInfo, coords, colorize))
				}
				if photo.LocationName != "" {
					fmt.Fprintln(out, renderStatusLine("Location", statusInfo, photo.LocationName, colorize))
				}
				if photo.IsLivePhoto {
					fmt.Fprintln(out, renderStatusLine("Live photo", statusOK, photo.LivePhotoVideoURL, colorize))
				}
				return nil
			})
		},
	}
}
