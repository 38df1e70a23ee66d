// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/JarvusInnovations/transit-archiver/decode"
	"github.com/JarvusInnovations/transit-archiver/feed"
	"github.com/JarvusInnovations/transit-archiver/gcs"
	"github.com/JarvusInnovations/transit-archiver/parse"
	"github.com/JarvusInnovations/transit-archiver/util/secret"
	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

var (
	dayInclude   []string
	dayExclude   []string
	dayBucket    string
	dayBase64URL string
	dayWorkers   int
	dayTimeout   int
)

var dayCmd = &cobra.Command{
	Use:   "day YYYY-MM-DD",
	Short: "Aggregate every hour of one UTC day",
	Long: `Aggregate every hour of one UTC day.

Raw snapshots are read from the raw bucket, grouped by feed type, hour
and fingerprint, decoded, and written to the parsed bucket as one
gzipped JSONL file per table, plus a parse-outcomes ledger per hour.
Re-running a day replaces its aggregations.`,
	Args: cobra.ExactArgs(1),
	RunE: runDay,
}

func init() {
	dayCmd.Flags().StringArrayVar(&dayInclude, "include", nil, "feed types to aggregate (default: all)")
	dayCmd.Flags().StringArrayVar(&dayExclude, "exclude", nil, "feed types to skip")
	dayCmd.Flags().StringVar(&dayBucket, "bucket", "", "raw bucket (default: $RAW_BUCKET)")
	dayCmd.Flags().StringVar(&dayBase64URL, "base64url", "", "aggregate a single feed fingerprint only")
	dayCmd.Flags().IntVar(&dayWorkers, "workers", parse.DefaultWorkers, "concurrent groups per feed type")
	dayCmd.Flags().IntVar(&dayTimeout, "timeout", 60, "storage operation timeout in seconds")
	rootCmd.AddCommand(dayCmd)
}

func runDay(cmd *cobra.Command, args []string) error {
	date, err := time2.ParseDate(args[0])
	if err != nil {
		return err
	}
	include, err := parseFeedTypes(dayInclude)
	if err != nil {
		return err
	}
	exclude, err := parseFeedTypes(dayExclude)
	if err != nil {
		return err
	}

	rawBucket := dayBucket
	if rawBucket == "" {
		if rawBucket, err = secret.FromEnvironment("RAW_BUCKET"); err != nil {
			return err
		}
	}
	parsedBucket, err := secret.FromEnvironment("PARSED_BUCKET")
	if err != nil {
		return err
	}

	registry, err := decode.NewRegistry()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	timeout := time.Duration(dayTimeout) * time.Second
	rawStore, err := gcs.NewClient(ctx, rawBucket, timeout)
	if err != nil {
		return err
	}
	parsedStore, err := gcs.NewClient(ctx, parsedBucket, timeout)
	if err != nil {
		return err
	}

	agg := parse.NewAggregator(rawStore, parsedStore, registry, dayWorkers)
	return agg.Day(ctx, date, include, exclude, dayBase64URL)
}

func parseFeedTypes(names []string) ([]feed.FeedType, error) {
	types := make([]feed.FeedType, 0, len(names))
	for _, name := range names {
		ft, err := feed.ParseFeedType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, ft)
	}
	return types, nil
}
