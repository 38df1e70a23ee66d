// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package fetch downloads one feed snapshot and archives it as a raw
// envelope in the object store.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JarvusInnovations/transit-archiver/feed"
	"github.com/JarvusInnovations/transit-archiver/gcs"
	"github.com/JarvusInnovations/transit-archiver/metrics"
	"github.com/JarvusInnovations/transit-archiver/queue"
	"github.com/JarvusInnovations/transit-archiver/util/http2"
	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

// TaskName is the queue task name for fetch work.
const TaskName = "fetch_feed"

const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

// Payload is the task body for one fetch: which feed, which page of it,
// and the minute tick it was scheduled for.
type Payload struct {
	Tick   time2.Time      `json:"tick"`
	Config feed.FeedConfig `json:"config"`
	Page   []feed.KeyValue `json:"page"`
	Dry    bool            `json:"dry"`
}

// Labels returns the metric label values identifying this feed.
func (p *Payload) Labels() []string {
	return []string{p.Config.Name, p.Config.URL, string(p.Config.FeedType)}
}

// Fetcher executes fetch tasks against one raw bucket.
type Fetcher struct {
	store  gcs.Store
	client *http.Client
}

// New builds a Fetcher. A nil client gets a 60-second overall timeout.
func New(store gcs.Store, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{store: store, client: client}
}

// Handler adapts the Fetcher to the queue.
func (f *Fetcher) Handler() queue.Handler {
	return func(ctx context.Context, task *queue.Task) error {
		var p Payload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decode fetch payload: %w", err)
		}
		return f.Fetch(ctx, &p)
	}
}

// Fetch downloads the feed and writes the raw envelope under its
// partition key. Request failures propagate so the queue can retry
// transient ones; the key depends only on (tick, config, page), so a
// retried task overwrites its own slot.
func (f *Fetcher) Fetch(ctx context.Context, p *Payload) error {
	labels := p.Labels()
	metrics.FetchRequestDelay.WithLabelValues(labels...).Observe(time.Since(p.Tick.Time).Seconds())

	url, err := feed.FetchURL(p.Config, p.Page)
	if err != nil {
		return fmt.Errorf("build fetch url for %s: %w", p.Config.Name, err)
	}

	headers := make(map[string]string, len(p.Config.Headers))
	for _, kv := range p.Config.Headers {
		value, err := kv.Resolve()
		if err != nil {
			return fmt.Errorf("resolve header %s for %s: %w", kv.Key, p.Config.Name, err)
		}
		headers[kv.Key] = value
	}

	start := time.Now()
	resp, err := http2.Get(ctx, f.client, url, headers)
	metrics.FetchRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("fetch %s: %w", p.Config.Name, err)
	}

	raw := feed.RawFetchedFile{
		Ts:              p.Tick,
		Config:          p.Config,
		Page:            p.Page,
		ResponseCode:    resp.StatusCode,
		ResponseHeaders: flattenHeaders(resp.Headers),
		Contents:        resp.Body,
	}
	// An empty 2xx body would store an envelope the aggregator cannot
	// decode; fail the task here instead.
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("fetch %s: %w", p.Config.Name, err)
	}
	key, err := raw.GCSKey()
	if err != nil {
		return fmt.Errorf("build raw key for %s: %w", p.Config.Name, err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal raw envelope for %s: %w", p.Config.Name, err)
	}

	if p.Dry {
		slog.Info("Dry run, not saving fetched data", "key", key, "bytes", len(resp.Body))
		return nil
	}

	start = time.Now()
	err = f.store.Put(ctx, key, data)
	metrics.FetchSaveDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	slog.Info("Saved fetched data", "key", key, "bytes", len(resp.Body))
	return nil
}

// flattenHeaders keeps the first value of each response header, which
// is all the archived envelope records.
func flattenHeaders(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return flat
}

// ObserveSignal records task lifecycle signals for fetch tasks in the
// huey_task_signals counter.
func ObserveSignal(sig queue.Signal, task *queue.Task, err error) {
	var p Payload
	if task.Name != TaskName || json.Unmarshal(task.Payload, &p) != nil {
		metrics.TaskSignals.WithLabelValues(task.Name, "", "", string(sig), metrics.ErrType(err)).Inc()
		return
	}
	metrics.TaskSignals.WithLabelValues(
		p.Config.Name, p.Config.URL, string(p.Config.FeedType),
		string(sig), metrics.ErrType(err),
	).Inc()
}
