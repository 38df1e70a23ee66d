// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JarvusInnovations/transit-archiver/decode"
	"github.com/JarvusInnovations/transit-archiver/gcs"
	"github.com/JarvusInnovations/transit-archiver/parse"
)

var fileCmd = &cobra.Command{
	Use:   "file gs://bucket/key",
	Short: "Decode a single raw snapshot and report its record counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

func init() {
	rootCmd.AddCommand(fileCmd)
}

func runFile(cmd *cobra.Command, args []string) error {
	bucket, name, err := gcs.ParseURI(args[0])
	if err != nil {
		return err
	}

	registry, err := decode.NewRegistry()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := gcs.NewClient(ctx, bucket, gcs.DefaultTimeout)
	if err != nil {
		return err
	}

	counts, err := parse.File(ctx, store, name, registry)
	if err != nil {
		return err
	}

	total := 0
	for table, count := range counts {
		slog.Info("Decoded table", "table", table, "records", count)
		total += count
	}
	slog.Info("Decoded file", "name", name, "tables", len(counts), "records", total)
	return nil
}
