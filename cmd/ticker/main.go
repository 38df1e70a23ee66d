// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Command ticker enqueues fetch tasks on a fixed cadence: live feeds
// every minute, GTFS schedule archives every midnight UTC.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JarvusInnovations/transit-archiver/feed"
	"github.com/JarvusInnovations/transit-archiver/fetch"
	"github.com/JarvusInnovations/transit-archiver/metrics"
	"github.com/JarvusInnovations/transit-archiver/queue"
	"github.com/JarvusInnovations/transit-archiver/ticker"
)

var (
	flagDry     = flag.Bool("dry", false, "enqueue tasks that log instead of saving")
	flagFeeds   = flag.String("feeds", "feeds.yaml", "path to the feed configuration file")
	flagMetrics = flag.String("metrics", ":8000", "prometheus listen address")
	flagVerbose = flag.Bool("verbose", false, "show DEBUG logging")
)

func main() {
	flag.Parse()
	if *flagVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	configs, err := feed.LoadConfigs(*flagFeeds)
	if err != nil {
		log.Fatal(err)
	}

	broker, err := queue.BrokerFromEnvironment()
	if err != nil {
		log.Fatal(err)
	}
	ttl, err := queue.FetchTTLFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	metrics.Serve(*flagMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := ticker.New(queue.New(broker, queue.DefaultName), configs, ttl, *flagDry, fetch.ObserveSignal)
	if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
