package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sir_venger/chunkload/internal/prefs"
	"github.com/sir_venger/chunkload/internal/termui"
)

const requestTimeout = 30 * time.Second

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List upload sessions on the server, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			list, err := e.client.Sessions(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			last, _ := e.prefs.Get(prefs.KeyLastSessionID)
			fmt.Fprint(cmd.OutOrStdout(), termui.SessionsTable(list, last))
			return nil
		},
	}
}

func previewCmd() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "preview [SESSION]",
		Short: "Show the preview of an assembled upload (defaults to the last session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			sid := ""
			if len(args) == 1 {
				sid = args[0]
			} else {
				sid, err = e.prefs.Get(prefs.KeyLastSessionID)
				if err != nil {
					return err
				}
			}
			if sid == "" {
				return fmt.Errorf("no session given and no previous upload recorded")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			p, err := e.client.Preview(ctx, sid)
			if err != nil {
				return fmt.Errorf("failed to fetch preview: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", sid)
			fmt.Fprint(cmd.OutOrStdout(), termui.PreviewTable(p, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", previewRowsShown, "rows to show")
	return cmd
}
