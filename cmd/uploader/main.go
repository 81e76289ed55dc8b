package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/logging"
	"github.com/sir_venger/chunkload/internal/prefs"
	"github.com/sir_venger/chunkload/pkg/uploadclient"
)

var (
	serverURL string
	prefsPath string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uploader",
		Short: "Resumable chunked CSV uploader",
		Long: `Uploads CSV files to a chunkload server in fixed-size chunks.
Interrupted or failed uploads can be resumed without re-sending finished chunks.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server base URL (default from config or SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&prefsPath, "prefs", "", "preferences file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		uploadCmd(),
		sessionsCmd(),
		previewCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env собирает общие зависимости подкоманд.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	client *uploadclient.Client
	prefs  *prefs.Store
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New("chunkload-uploader", level)
	if err != nil {
		return nil, err
	}

	store, err := prefs.Open(prefsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		client: uploadclient.New(cfg.ServerURL,
			uploadclient.WithTimeout(cfg.Upload.ChunkTimeout),
			uploadclient.WithFinalizeTimeout(cfg.Upload.FinalizeTimeout)),
		prefs:  store,
	}, nil
}
