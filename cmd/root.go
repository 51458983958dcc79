package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/trackgrab/internal/app"
	"github.com/oshokin/trackgrab/internal/config"
	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/version"
)

var (
	// envFilenameFromFlag stores the .env filename provided via command-line flag.
	//
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	envFilenameFromFlag string

	// appConfig stores the application configuration loaded from the environment and .env file.
	//
	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	// rootCmd is the main Cobra command for the application.
	//
	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "trackgrab",
		Short: "Rank, schedule, and acquire tracks from a personal music catalog.",
		Long: `trackgrab is a personal music acquisition service. It ranks extractor search
results against a catalog of tracks, schedules and runs downloads through a
bounded worker pool, tags and files the result into a library, and keeps a
Spotify-sourced playlist catalog in sync.

Run "trackgrab serve" to start the orchestration API, or use "sync" and
"download" for one-shot CLI operations against the same catalog.`,
		PersistentPreRunE: initConfig,
	}
)

// Execute executes the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync() //nolint:errcheck // No need to check the error here, application will exit anyway.
	}()

	defer stop()

	go func() {
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.PersistentFlags().StringVarP(
		&envFilenameFromFlag,
		"env-file",
		"e",
		"",
		"path to the .env file (default is './.env')")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newDownloadCommand())
}

func initConfig(cmd *cobra.Command, _ []string) error {
	var err error

	appConfig, err = config.LoadConfig(envFilenameFromFlag)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err = config.ValidateConfig(appConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.SetLevel(appConfig.ParsedLogLevel)

	return nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunServe(cmd.Context(), appConfig)
		},
	}
}

func newSyncCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync <spotify-account-id>",
		Short: "Discover and reconcile a connected Spotify account's playlists into the catalog.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := app.RunSync(cmd.Context(), appConfig, args[0], force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), //nolint:errcheck // CLI output, no recovery action if this fails.
				"synced %d playlist(s): %d tracks created, %d tracks updated, %d links created, %d links removed, %d skipped\n",
				len(summary.Playlists), summary.TracksCreated, summary.TracksUpdated,
				summary.LinksCreated, summary.LinksRemoved, summary.Skipped)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "resync every playlist even if its snapshot token is unchanged")

	return cmd
}

func newDownloadCommand() *cobra.Command {
	var (
		candidateID string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "download <track-id>",
		Short: "Enqueue a single track's download and wait for it to finish.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid track id %q: %w", args[0], err)
			}

			var candidatePtr *int64

			if candidateID != "" {
				parsed, parseErr := strconv.ParseInt(candidateID, 10, 64)
				if parseErr != nil {
					return fmt.Errorf("invalid candidate id %q: %w", candidateID, parseErr)
				}

				candidatePtr = &parsed
			}

			download, err := app.RunDownload(cmd.Context(), appConfig, trackID, candidatePtr, force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "download %d finished with status %s\n", //nolint:errcheck // CLI output.
				download.ID, download.Status)

			return nil
		},
	}

	cmd.Flags().StringVar(&candidateID, "candidate", "", "specific search candidate id to download (defaults to the chosen one)")
	cmd.Flags().BoolVar(&force, "force", false, "re-download even if a library file already exists")

	return cmd
}
