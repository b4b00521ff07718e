package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rfcx/rfcx-sdk-go/api"
)

var (
	flagStreamsProjects []string
	flagStreamsKeyword  string
	flagStreamsPublic   bool
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "List streams you have access to",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		streams, err := client.Streams(cmd.Context(), api.StreamsParams{
			Projects:      flagStreamsProjects,
			Keyword:       flagStreamsKeyword,
			IncludePublic: flagStreamsPublic,
		})
		if err != nil {
			return err
		}
		if len(streams) == 0 {
			fmt.Println("No streams found")
			return nil
		}
		for _, s := range streams {
			fmt.Printf("%s\t%s\t(%s)\n", s.ID, s.Name, s.CountryName)
		}
		return nil
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments <stream-id>",
	Short: "List audio segments of a stream in a time range",
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
		segments, err := client.StreamSegments(cmd.Context(), args[0], start, end)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			fmt.Println("No data in this range")
			return nil
		}
		for _, s := range segments {
			fmt.Printf("%s\t%s\t%s\n", s.Start, s.End, s.FileExtension)
		}
		return nil
	},
}

func init() {
	streamsCmd.Flags().StringSliceVar(&flagStreamsProjects, "project", nil, "limit to project ids")
	streamsCmd.Flags().StringVar(&flagStreamsKeyword, "keyword", "", "match stream name with keyword")
	streamsCmd.Flags().BoolVar(&flagStreamsPublic, "include-public", false, "include streams from public projects")
	addRangeFlags(segmentsCmd)
	rootCmd.AddCommand(streamsCmd)
	rootCmd.AddCommand(segmentsCmd)
}
