// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package parse aggregates raw feed snapshots into hourly gzipped JSONL
// tables, one aggregation per (table, hour, fingerprint).
package parse

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/JarvusInnovations/transit-archiver/decode"
	"github.com/JarvusInnovations/transit-archiver/feed"
	"github.com/JarvusInnovations/transit-archiver/gcs"
	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

const DefaultWorkers = 8

// HourKey identifies one aggregation group: all snapshots of one feed
// fingerprint within one hour.
type HourKey struct {
	FeedType  feed.FeedType
	Hour      time2.Time
	Base64URL string
}

type ErrMalformedBlobName string

func (e ErrMalformedBlobName) Error() string {
	return fmt.Sprintf("malformed raw blob name: %q", string(e))
}

// hourKeyFromBlobName recovers the group key from a raw blob name of
// the form {feed_type}/dt=.../hour=.../ts=.../base64url=.../{file}.
func hourKeyFromBlobName(name string) (HourKey, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 6 {
		return HourKey{}, ErrMalformedBlobName(name)
	}

	ft, err := feed.ParseFeedType(parts[0])
	if err != nil {
		return HourKey{}, ErrMalformedBlobName(name)
	}
	rawHour, ok := strings.CutPrefix(parts[2], "hour=")
	if !ok {
		return HourKey{}, ErrMalformedBlobName(name)
	}
	hour, err := time2.Parse(rawHour)
	if err != nil {
		return HourKey{}, ErrMalformedBlobName(name)
	}
	base64url, ok := strings.CutPrefix(parts[4], "base64url=")
	if !ok || base64url == "" {
		return HourKey{}, ErrMalformedBlobName(name)
	}

	return HourKey{FeedType: ft, Hour: hour, Base64URL: base64url}, nil
}

// Aggregator builds hourly aggregations from a raw bucket into a
// parsed bucket.
type Aggregator struct {
	raw      gcs.Store
	parsed   gcs.Store
	registry decode.Registry
	workers  int
}

func NewAggregator(raw, parsed gcs.Store, registry decode.Registry, workers int) *Aggregator {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Aggregator{raw: raw, parsed: parsed, registry: registry, workers: workers}
}

// Day aggregates every hour of one UTC day. include narrows the feed
// types (empty means all), exclude removes from that set, and base64url
// narrows to a single fingerprint when non-empty. Feed types are
// independent: one failing does not stop the others.
func (a *Aggregator) Day(ctx context.Context, date time2.Time, include, exclude []feed.FeedType, base64url string) error {
	var errs []error
	for _, ft := range selectFeedTypes(include, exclude) {
		if err := a.feedTypeDay(ctx, ft, date, base64url); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ft, err))
		}
	}
	return errors.Join(errs...)
}

func selectFeedTypes(include, exclude []feed.FeedType) []feed.FeedType {
	if len(include) == 0 {
		include = feed.AllFeedTypes
	}
	var types []feed.FeedType
	for _, ft := range include {
		if !slices.Contains(exclude, ft) {
			types = append(types, ft)
		}
	}
	return types
}

type groupResult struct {
	outcomes []feed.ParseOutcome
	err      error
}

func (a *Aggregator) feedTypeDay(ctx context.Context, ft feed.FeedType, date time2.Time, base64url string) error {
	prefix := fmt.Sprintf("%s/dt=%s/", ft, date.DateString())
	blobs, err := a.raw.List(ctx, prefix)
	if err != nil {
		return err
	}

	groups := make(map[HourKey][]gcs.BlobRef)
	for _, blob := range blobs {
		key, err := hourKeyFromBlobName(blob.Name)
		if err != nil {
			slog.Warn("Skipping blob", "name", blob.Name, "error", err)
			continue
		}
		if base64url != "" && key.Base64URL != base64url {
			continue
		}
		groups[key] = append(groups[key], blob)
	}
	if len(groups) == 0 {
		slog.Info("Nothing to aggregate", "feed_type", ft, "dt", date.DateString())
		return nil
	}

	keys := make([]HourKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b HourKey) int {
		if c := a.Hour.Compare(b.Hour.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Base64URL, b.Base64URL)
	})

	// Groups are independent; workers write disjoint result slots.
	results := make([]groupResult, len(keys))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes, err := a.handleGroup(ctx, keys[i], groups[keys[i]])
				results[i] = groupResult{outcomes: outcomes, err: err}
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// The ledger for an hour spans all of its fingerprint groups, in
	// group order so reruns produce identical files.
	var errs []error
	byHour := make(map[time2.Time][]feed.ParseOutcome)
	var hours []time2.Time
	for i, key := range keys {
		if _, seen := byHour[key.Hour]; !seen {
			hours = append(hours, key.Hour)
		}
		byHour[key.Hour] = append(byHour[key.Hour], results[i].outcomes...)
		if results[i].err != nil {
			errs = append(errs, fmt.Errorf("group %s hour %s: %w", key.Base64URL, key.Hour, results[i].err))
		}
	}
	for _, hour := range hours {
		if err := a.saveOutcomes(ctx, ft, hour, byHour[hour]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handleGroup decodes every snapshot in one group and writes one
// aggregation per emitted table. A snapshot that fails to decode gets a
// failed outcome and the rest of the group continues; corrupt envelopes
// and storage failures abort the whole group.
func (a *Aggregator) handleGroup(ctx context.Context, key HourKey, blobs []gcs.BlobRef) ([]feed.ParseOutcome, error) {
	slices.SortFunc(blobs, func(a, b gcs.BlobRef) int {
		return strings.Compare(a.Name, b.Name)
	})

	var (
		outcomes   []feed.ParseOutcome
		decodeErrs []error
		tables     = make(map[string][]feed.ParsedRecord)
		tableOrder []feed.Table
	)
	for _, blob := range blobs {
		data, err := a.raw.Get(ctx, blob.Name)
		if err != nil {
			return outcomes, err
		}
		raw, err := feed.DecodeRaw(data)
		if err != nil {
			return outcomes, fmt.Errorf("%s: %w", blob.Name, err)
		}
		stripped := raw.StripContents()

		if raw.Exception != "" {
			outcomes = append(outcomes, feed.ParseOutcome{File: stripped, Exception: raw.Exception})
			continue
		}

		files, err := a.registry.Decode(key.FeedType, raw.Contents)
		if err != nil {
			outcomes = append(outcomes, feed.ParseOutcome{File: stripped, Exception: err.Error()})
			decodeErrs = append(decodeErrs, fmt.Errorf("decode %s: %w", blob.Name, err))
			continue
		}

		hash := md5.New()
		for _, pf := range files {
			if len(pf.Records) == 0 {
				slog.Warn("Skipping empty sub-file", "blob", blob.Name, "table", pf.Table.TableName())
				continue
			}
			hash.Write(pf.Digest[:])

			name := pf.Table.TableName()
			if _, seen := tables[name]; !seen {
				tableOrder = append(tableOrder, pf.Table)
			}
			for i, record := range pf.Records {
				tables[name] = append(tables[name], feed.ParsedRecord{
					File:     stripped,
					Record:   record,
					Metadata: feed.LineMetadata{LineNumber: i},
				})
			}
		}
		outcomes = append(outcomes, feed.ParseOutcome{
			File:     stripped,
			Metadata: feed.OutcomeMetadata{Hash: hex.EncodeToString(hash.Sum(nil))},
			Success:  true,
		})
	}

	for _, table := range tableOrder {
		agg := feed.HourAgg{Table: table, Base64URL: key.Base64URL, Hour: key.Hour}
		if err := a.saveAgg(ctx, agg, tables[table.TableName()]); err != nil {
			return outcomes, err
		}
	}
	return outcomes, errors.Join(decodeErrs...)
}

func (a *Aggregator) saveAgg(ctx context.Context, agg feed.HourAgg, records []feed.ParsedRecord) error {
	key := agg.GCSKey()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for i, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record for %s: %w", key, err)
		}
		if i > 0 {
			zw.Write([]byte("\n"))
		}
		zw.Write(line)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}

	// Replace rather than overwrite, so a rerun of an hour never leaves
	// a stale generation behind a metadata mismatch.
	exists, err := a.parsed.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		if err := a.parsed.Delete(ctx, key); err != nil {
			return err
		}
	}
	if err := a.parsed.Put(ctx, key, buf.Bytes()); err != nil {
		return err
	}

	slog.Info("Saved aggregation", "key", key, "records", len(records))
	return nil
}

func (a *Aggregator) saveOutcomes(ctx context.Context, ft feed.FeedType, hour time2.Time, outcomes []feed.ParseOutcome) error {
	key := feed.OutcomesKey(ft, hour)

	var buf bytes.Buffer
	for i, outcome := range outcomes {
		line, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("marshal outcome for %s: %w", key, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
	}
	if err := a.parsed.Put(ctx, key, buf.Bytes()); err != nil {
		return err
	}

	slog.Info("Saved parse outcomes", "key", key, "outcomes", len(outcomes))
	return nil
}

// File decodes a single raw blob and reports record counts per table.
// It writes nothing; it exists to inspect one snapshot by hand.
func File(ctx context.Context, store gcs.Store, name string, registry decode.Registry) (map[string]int, error) {
	key, err := hourKeyFromBlobName(name)
	if err != nil {
		return nil, err
	}
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	raw, err := feed.DecodeRaw(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if raw.Exception != "" {
		return nil, fmt.Errorf("%s: archived fetch failed: %s", name, raw.Exception)
	}

	files, err := registry.Decode(key.FeedType, raw.Contents)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	counts := make(map[string]int, len(files))
	for _, pf := range files {
		counts[pf.Table.TableName()] += len(pf.Records)
	}
	return counts, nil
}
