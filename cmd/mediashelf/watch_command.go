package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediashelf/internal/catalog"
	"mediashelf/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox and check files in as they arrive",
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
				pipeline, err := newPipeline(cfg, store, logger)
				if err != nil {
					return err
				}
				extensions := cfg.ExtensionSet()
				w, err := watch.New(watch.Options{
					Dir:      cfg.Paths.InboxDir,
					Debounce: time.Duration(cfg.Watch.DebounceSeconds) * time.Second,
					Rescan:   time.Duration(cfg.Watch.RescanSeconds) * time.Second,
					Ignore: func(name string) bool {
						_, ok := extensions[strings.ToLower(filepath.Ext(name))]
						return !ok
					},
				}, func(runCtx context.Context) error {
					return runCheckinOnce(runCtx, pipeline)
				}, logger)
				if err != nil {
					return err
				}
				return w.Run(cmd.Context())
			})
		},
	}
}
