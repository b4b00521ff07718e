package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/rfcx/rfcx-sdk-go/audio"
)

var (
	flagStart    string
	flagEnd      string
	flagDest     string
	flagExt      string
	flagSerial   bool
	flagParallel int
)

var downloadCmd = &cobra.Command{
	Use:   "download <stream-id>",
	Short: "Download all audio segments of a stream in a time range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		start, end, err := parseRange(flagStart, flagEnd)
		if err != nil {
			return err
		}

		// The callback runs concurrently from the download workers, so
		// the bar is created exactly once. SetCurrent is atomic.
		var (
			bar     *pb.ProgressBar
			barOnce sync.Once
		)
		d := client.Downloader()
		if flagParallel > 0 {
			d.Parallelism = flagParallel
		}
		d.Progress = func(done, total int) {
			barOnce.Do(func() { bar = pb.StartNew(total) })
			bar.SetCurrent(int64(done))
		}

		err = client.DownloadSegments(cmd.Context(), audio.BatchParams{
			StreamID:      args[0],
			Dest:          flagDest,
			Start:         start,
			End:           end,
			FileExtension: flagExt,
			Parallel:      !flagSerial,
		})
		if bar != nil {
			bar.Finish()
		}
		return err
	},
}

// addRangeFlags registers the shared --start/--end flags on a command.
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagStart, "start", "", "range start (RFC 3339, default 30 days ago)")
	cmd.Flags().StringVar(&flagEnd, "end", "", "range end (RFC 3339, default now)")
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = time.Parse(time.RFC3339, start); err != nil {
			return s, e, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if end != "" {
		if e, err = time.Parse(time.RFC3339, end); err != nil {
			return s, e, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return s, e, nil
}

func init() {
	addRangeFlags(downloadCmd)
	downloadCmd.Flags().StringVar(&flagDest, "dest", "./audios", "destination directory")
	downloadCmd.Flags().StringVar(&flagExt, "ext", audio.DefaultFileExtension, "audio file extension")
	downloadCmd.Flags().BoolVar(&flagSerial, "serial", false, "download one segment at a time")
	downloadCmd.Flags().IntVar(&flagParallel, "parallel", 0, "max concurrent downloads (default 100)")
	rootCmd.AddCommand(downloadCmd)
}
