package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediashelf/internal/catalog"
	"mediashelf/internal/config"
	"mediashelf/internal/volume"
)

func newVolumeCommand(ctx *commandContext) *cobra.Command {
	volumeCmd := &cobra.Command{
		Use:   "volume",
		Short: "Removable media cataloging",
	}
	volumeCmd.AddCommand(newVolumeLabelCommand(ctx))
	volumeCmd.AddCommand(newVolumeStatusCommand(ctx))
	volumeCmd.AddCommand(newVolumeRegisterCommand(ctx))
	volumeCmd.AddCommand(newVolumeWatchCommand(ctx))
	return volumeCmd
}

func labelTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Volume.LabelTimeout) * time.Second
}

func newVolumeLabelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "label",
		Short: "Print the label of the disc in the configured drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			label, err := volume.ReadLabel(cmd.Context(), cfg.Volume.Device, labelTimeout(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
}

func newVolumeStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tray status of the configured drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := volume.CheckDriveStatus(cfg.Volume.Device)
			if err != nil {
				return err
			}
			kind := statusWarn
			if status == volume.DriveStatusDiscOK {
				kind = statusOK
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusLine(cfg.Volume.Device, kind, status.String(), shouldColorize(out)))
			return nil
		},
	}
}

type volumeFlags struct {
	label  string
	number int
	notes  string
	mount  string
}

func (f *volumeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.number, "number", "n", 0, "Human-assigned volume number")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form notes stored with the volume")
	cmd.Flags().StringVarP(&f.mount, "mount", "m", "", "Mount point to walk for media files")
}

func (f volumeFlags) request(cfg *config.Config, label string) volume.Request {
	return volume.Request{
		Label:       label,
		HumanNumber: f.number,
		Notes:       f.notes,
		MountPath:   strings.TrimSpace(f.mount),
		Extensions:  cfg.ExtensionSet(),
	}
}

func newVolumeRegisterCommand(ctx *commandContext) *cobra.Command {
	var flags volumeFlags

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Record a disc and, with --mount, the media files on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			label := strings.TrimSpace(flags.label)
			if label == "" {
				label, err = volume.ReadLabel(cmd.Context(), cfg.Volume.Device, labelTimeout(cfg))
				if err != nil {
					return fmt.Errorf("no --label given and drive label unavailable: %w", err)
				}
			}
			return ctx.withStore(func(store *catalog.Store) error {
				result, err := volume.NewCataloger(store, logger).Catalog(cmd.Context(), flags.request(cfg, label))
				if err != nil {
					return err
				}
				printVolumeResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.label, "label", "l", "", "Volume label (read from the drive when omitted)")
	flags.bind(cmd)
	return cmd
}

func newVolumeWatchCommand(ctx *commandContext) *cobra.Command {
	var flags volumeFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Register discs as they are inserted into the configured drive",
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
				cataloger := volume.NewCataloger(store, logger)
				out := cmd.OutOrStdout()
				handler := func(handlerCtx context.Context, device string) error {
					if _, err := volume.WaitForReady(handlerCtx, device, 60, time.Second); err != nil {
						return err
					}
					label, err := volume.ReadLabel(handlerCtx, device, labelTimeout(cfg))
					if err != nil {
						return err
					}
					result, err := cataloger.Catalog(handlerCtx, flags.request(cfg, label))
					if err != nil {
						return err
					}
					printVolumeResult(out, result)
					return nil
				}

				w := volume.NewWatcher(cfg.Volume.Device, handler, logger)
				if w == nil {
					return fmt.Errorf("volume.device is not configured")
				}
				if err := w.Start(cmd.Context()); err != nil {
					return err
				}
				defer w.Stop()
				fmt.Fprintf(out, "Watching %s for discs\n", cfg.Volume.Device)
				<-cmd.Context().Done()
				return nil
			})
		},
	}

	flags.bind(cmd)
	return cmd
}

func printVolumeResult(out io.Writer, result volume.Result) {
	state := "existing"
	if result.Created {
		state = "new"
	}
	rows := [][]string{{
		fmt.Sprint(result.Volume.ID),
		result.Volume.Label,
		fmt.Sprint(result.Volume.HumanNumber),
		state,
		fmt.Sprint(result.Added),
		fmt.Sprint(result.Skipped),
		fmt.Sprint(result.Failed),
	}}
	columns := []column{
		{title: "ID", right: true},
		{title: "Label", maxWidth: 32},
		{title: "Number", right: true},
		{title: "Volume"},
		{title: "Added", right: true},
		{title: "Skipped", right: true},
		{title: "Failed", right: true},
	}
	fmt.Fprintln(out, renderTable(columns, rows, nil))
}
