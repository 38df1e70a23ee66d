// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Command consumer runs fetch workers: it pops fetch tasks off the
// queue, downloads each feed and archives the snapshots in the raw
// bucket.
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

	"github.com/JarvusInnovations/transit-archiver/fetch"
	"github.com/JarvusInnovations/transit-archiver/gcs"
	"github.com/JarvusInnovations/transit-archiver/metrics"
	"github.com/JarvusInnovations/transit-archiver/queue"
	"github.com/JarvusInnovations/transit-archiver/util/secret"
)

var (
	flagMetrics = flag.String("metrics", ":8000", "prometheus listen address")
	flagVerbose = flag.Bool("verbose", false, "show DEBUG logging")
)

func main() {
	flag.Parse()
	if *flagVerbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	opts, err := queue.ConsumerOptionsFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	bucket, err := secret.FromEnvironment("RAW_BUCKET")
	if err != nil {
		log.Fatal(err)
	}
	broker, err := queue.BrokerFromEnvironment()
	if err != nil {
		log.Fatal(err)
	}

	metrics.Serve(*flagMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := gcs.NewClient(ctx, bucket, gcs.DefaultTimeout)
	if err != nil {
		log.Fatal(err)
	}

	consumer := queue.NewConsumer(queue.New(broker, queue.DefaultName), opts, fetch.ObserveSignal)
	consumer.Register(fetch.TaskName, fetch.New(store, nil).Handler())
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
