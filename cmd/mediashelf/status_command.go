package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediashelf/internal/catalog"
	"mediashelf/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories, external tools, and the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, openErr := catalog.Open(cfg)
			if openErr == nil {
				defer store.Close()
			}
			var pinger preflight.Pinger
			if store != nil {
				pinger = store
			}
			results := preflight.RunAll(cmd.Context(), cfg, pinger, openErr)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Optional:
					kind = statusWarn
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if store != nil {
				if count, err := store.Count(cmd.Context()); err == nil {
					fmt.Fprintln(out, renderStatusLine("Records", statusInfo, fmt.Sprint(count), colorize))
				}
			}
			if preflight.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}
