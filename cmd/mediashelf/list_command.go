package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediashelf/internal/catalog"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var title string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged media, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("invalid --limit %d", limit)
			}
			return ctx.withStore(func(store *catalog.Store) error {
				entries, err := store.Listing(cmd.Context(), catalog.ListingQuery{Title: title, Limit: limit})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No media cataloged")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					thumb := "-"
					if entry.Thumbnail != nil && *entry.Thumbnail != "" {
						thumb = "yes"
					}
					rows = append(rows, []string{
						entry.FileID,
						deref(entry.Title),
						entry.CheckinTime.Local().Format(time.DateTime),
						thumb,
						entry.Path,
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "File ID"},
					{title: "Title", maxWidth: 48},
					{title: "Checked In"},
					{title: "Thumb"},
					{title: "Path", maxWidth: 72},
				}, rows, []string{fmt.Sprintf("%d record(s)", len(rows))}))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "query", "q", "", "Case-insensitive title substring")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 for all)")
	return cmd
}
