package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagIngestTimestamp string

var ingestCmd = &cobra.Command{
	Use:   "ingest <stream-id> <file>",
	Short: "Upload an audio file into a stream",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		timestamp, err := time.Parse(time.RFC3339, flagIngestTimestamp)
		if err != nil {
			return fmt.Errorf("invalid --timestamp: %w", err)
		}

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := client.IngestFile(cmd.Context(), args[0], args[1], timestamp); err != nil {
			return err
		}
		fmt.Println("Ingested", args[1])
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestTimestamp, "timestamp", "", "recording timestamp of the file (RFC 3339)")
	_ = ingestCmd.MarkFlagRequired("timestamp")
	rootCmd.AddCommand(ingestCmd)
}
