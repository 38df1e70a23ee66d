// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package ticker schedules fetch tasks: every feed once a minute,
// except GTFS schedule archives once a day.
package ticker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JarvusInnovations/transit-archiver/feed"
	"github.com/JarvusInnovations/transit-archiver/fetch"
	"github.com/JarvusInnovations/transit-archiver/queue"
	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

// Ticker dispatches fetch tasks for a set of feed configs.
type Ticker struct {
	queue    *queue.Queue
	configs  []feed.FeedConfig
	ttl      time.Duration
	dry      bool
	onSignal queue.SignalFunc
}

func New(q *queue.Queue, configs []feed.FeedConfig, ttl time.Duration, dry bool, onSignal queue.SignalFunc) *Ticker {
	return &Ticker{queue: q, configs: configs, ttl: ttl, dry: dry, onSignal: onSignal}
}

// Run dispatches on the minute for live feeds and at midnight UTC for
// schedule archives, until ctx is canceled. Cron fires at :00 seconds,
// so the truncated wall clock inside each tick is the scheduled time.
func (t *Ticker) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc("* * * * *", func() {
		if err := t.Tick(ctx, feed.MinutelyFeedTypes()); err != nil {
			slog.Error("Minutely tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule minutely tick: %w", err)
	}
	if _, err := c.AddFunc("0 0 * * *", func() {
		if err := t.Tick(ctx, []feed.FeedType{feed.GtfsSchedule}); err != nil {
			slog.Error("Daily tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule daily tick: %w", err)
	}

	slog.Info("Ticker starting", "feeds", len(t.configs), "ttl", t.ttl, "dry", t.dry)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("Ticker stopped")
	return ctx.Err()
}

// Tick enqueues one fetch task per (config, page) for every config
// whose feed type is in types. A failing config does not block the
// others; their errors come back joined.
func (t *Ticker) Tick(ctx context.Context, types []feed.FeedType) error {
	tick := time2.Now().TruncateMinute()

	var errs []error
	tasks := 0
	for _, config := range t.configs {
		if !slices.Contains(types, config.FeedType) {
			continue
		}

		pages, err := feed.Expand(config)
		if err != nil {
			errs = append(errs, fmt.Errorf("expand %s: %w", config.Name, err))
			continue
		}
		for _, page := range pages {
			task, err := t.queue.Enqueue(ctx, fetch.TaskName, fetch.Payload{
				Tick:   tick,
				Config: config,
				Page:   page,
				Dry:    t.dry,
			}, queue.TaskOptions{
				TTL:        t.ttl,
				Retries:    fetch.DefaultRetries,
				RetryDelay: fetch.DefaultRetryDelay,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("enqueue %s: %w", config.Name, err))
				continue
			}
			if t.onSignal != nil {
				t.onSignal(queue.SignalEnqueued, task, nil)
			}
			tasks++
		}
	}

	slog.Info("Tick dispatched", "tick", tick, "tasks", tasks, "failed", len(errs))
	return errors.Join(errs...)
}
