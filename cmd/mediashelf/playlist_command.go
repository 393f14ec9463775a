package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediashelf/internal/catalog"
	"mediashelf/internal/playlist"
	"mediashelf/internal/thumbnail"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	playlistCmd := &cobra.Command{
		Use:   "playlist",
		Short: "Playlist maintenance",
	}
	playlistCmd.AddCommand(newPlaylistSyncCommand(ctx))
	return playlistCmd
}

func newPlaylistSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Create thumbnails and playlist entries for newly checked-in media",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				var thumbs playlist.Thumbnailer
				if cfg.Thumbnail.Enabled {
					thumbs = thumbnail.NewGenerator(cfg, logger)
				}
				result, err := playlist.NewSyncer(store, thumbs, logger).Sync(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprint(result.Pending), colorize))
				fmt.Fprintln(out, renderStatusLine("Attached", statusOK, fmt.Sprint(result.Attached), colorize))
				fmt.Fprintln(out, renderStatusLine("Failed", countKind(result.Failed, statusWarn), fmt.Sprint(result.Failed), colorize))
				return nil
			})
		},
	}
}
