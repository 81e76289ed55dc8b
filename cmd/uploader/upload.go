package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/prefs"
	"github.com/sir_venger/chunkload/internal/termui"
	"github.com/sir_venger/chunkload/pkg/transfer"
)

const previewRowsShown = 10

func uploadCmd() *cobra.Command {
	var (
		chunkSize   string
		concurrency int
		retries     int
		autoResume  int
	)

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV file in chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			tcfg := transferConfig(e.cfg)
			if chunkSize != "" {
				n, err := config.ParseByteSize(chunkSize)
				if err != nil {
					return fmt.Errorf("invalid --chunk-size: %w", err)
				}
				tcfg.ChunkSize = n.Int64()
			}
			if cmd.Flags().Changed("concurrency") {
				tcfg.Concurrency = concurrency
			}
			if cmd.Flags().Changed("retries") {
				tcfg.MaxRetries = retries
			}

			file, err := transfer.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			bar := termui.NewProgress(cmd.OutOrStdout())
			ctrl := transfer.New(e.client, tcfg,
				transfer.WithLogger(e.logger),
				transfer.WithObserver(bar.Update),
			)

			// Ctrl+C останавливает загрузку, загруженные части остаются на сервере.
			sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-sigCtx.Done()
				ctrl.Cancel()
			}()

			err = ctrl.Start(context.Background(), file)
			saveLastSession(e, ctrl.State().SessionID)

			for attempt := 1; attempt <= autoResume && resumable(err) && sigCtx.Err() == nil; attempt++ {
				e.logger.Info("auto-resuming upload", zap.Int("attempt", attempt), zap.Error(err))
				fmt.Fprintf(cmd.ErrOrStderr(), "resuming (%d/%d): %s\n", attempt, autoResume, ctrl.State().Hint)
				err = ctrl.Resume(context.Background())
			}

			st := ctrl.State()
			if err != nil {
				if st.Hint != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s (session %s)\n", st.Hint, st.SessionID)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", st.SessionID)
			if st.Preview != nil {
				fmt.Fprint(cmd.OutOrStdout(), termui.PreviewTable(*st.Preview, previewRowsShown))
			}
			return nil
		},
	}

	def := transfer.DefaultConfig()
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "", "chunk size, e.g. 1MiB (default from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", def.Concurrency, "parallel chunk uploads (1-16)")
	cmd.Flags().IntVar(&retries, "retries", def.MaxRetries, "extra attempts per chunk")
	cmd.Flags().IntVar(&autoResume, "auto-resume", 0, "resume automatically this many times after a failure")

	return cmd
}

func transferConfig(cfg *config.Config) transfer.Config {
	return transfer.Config{
		ChunkSize:         cfg.Upload.ChunkSize.Int64(),
		MaxFileSize:       cfg.Upload.MaxFileSize.Int64(),
		Concurrency:       cfg.Upload.MaxConcurrency,
		MaxRetries:        cfg.Upload.MaxRetries,
		RetryBaseDelay:    cfg.Upload.RetryBaseDelay,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		AllowedMediaTypes: cfg.Upload.AllowedMediaTypes,
	}
}

// resumable: повторять имеет смысл после отказа частей или сборки, но не после
// ошибки валидации, сессии или отмены.
func resumable(err error) bool {
	var tf *transfer.TransferFailedError
	var fe *transfer.FinalizeError
	return errors.As(err, &tf) || errors.As(err, &fe)
}

func saveLastSession(e *env, sid string) {
	if sid == "" {
		return
	}
	if err := e.prefs.Set(prefs.KeyLastSessionID, sid); err != nil {
		e.logger.Warn("failed to save last session id", zap.Error(err))
	}
}
