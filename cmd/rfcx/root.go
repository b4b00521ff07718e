package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	rfcx "github.com/rfcx/rfcx-sdk-go"
	"github.com/rfcx/rfcx-sdk-go/auth"
	"github.com/rfcx/rfcx-sdk-go/internal/logger"
)

var (
	log zerolog.Logger

	flagVerbose   bool
	flagNoPersist bool
	flagCredsPath string
)

var rootCmd = &cobra.Command{
	Use:   "rfcx",
	Short: "Client for the RFCx bioacoustic monitoring platform",
	Long: `rfcx authenticates against the RFCx platform and provides access to
streams, segments, detections and audio downloads.

Configuration is read from the environment (and a .env file when present):
RFCX_CLIENT_ID, RFCX_CLIENT_SECRET, RFCX_API_URL, RFCX_AUTH_URL,
RFCX_INGEST_URL, RFCX_CREDENTIALS_PATH.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; missing file is fine.
		_ = godotenv.Load()

		log = logger.New()
		if !flagVerbose {
			log = log.Level(zerolog.InfoLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoPersist, "no-persist", false, "do not save credentials to disk")
	rootCmd.PersistentFlags().StringVar(&flagCredsPath, "credentials", "", "path to the persisted credentials file")
}

// newClient builds an authenticated SDK client for a command invocation.
func newClient(cmd *cobra.Command) (*rfcx.Client, error) {
	authOpts := []auth.Option{auth.WithPersist(!flagNoPersist)}
	if flagCredsPath != "" {
		authOpts = append(authOpts, auth.WithCredentialsPath(flagCredsPath))
	}
	client := rfcx.NewClient(
		rfcx.WithLogger(log),
		rfcx.WithAuthOptions(authOpts...),
	)
	if err := client.Authenticate(cmd.Context()); err != nil {
		return nil, err
	}
	return client, nil
}
