// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package queue implements a small Redis-backed task queue: a list for
// ready tasks and a sorted set for tasks scheduled into the future.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JarvusInnovations/transit-archiver/util/secret"
	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

// DefaultName is the queue namespace shared by the ticker and the
// fetch consumers.
const DefaultName = "transit-archiver"

const fetchTTLKey = "HUEY_FETCH_CONFIG_EXPIRES"

// Task is the wire envelope for one unit of work.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time2.Time      `json:"enqueued_at"`
	ExpiresAt  *time2.Time     `json:"expires_at,omitempty"`
	Retries    int             `json:"retries,omitempty"`
	RetryDelay float64         `json:"retry_delay,omitempty"`
	Attempts   int             `json:"attempts,omitempty"`
}

// Expired reports whether the task's deadline has passed. Tasks with no
// deadline never expire.
func (t *Task) Expired(now time2.Time) bool {
	return t.ExpiresAt != nil && !now.Before(t.ExpiresAt.Time)
}

// Broker moves serialized tasks in and out of storage.
type Broker interface {
	// Push appends a task to the ready list.
	Push(ctx context.Context, queue string, data []byte) error
	// Pop blocks briefly for the next ready task, returning nil with no
	// error when none arrives in time.
	Pop(ctx context.Context, queue string) ([]byte, error)
	// Schedule files a task to become ready at the given time.
	Schedule(ctx context.Context, queue string, data []byte, at time.Time) error
	// Due claims every scheduled task whose time has come.
	Due(ctx context.Context, queue string, until time.Time) ([][]byte, error)
}

// RedisBroker stores ready tasks in a list and scheduled tasks in a
// sorted set keyed by due time.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to host, which may omit the port.
func NewRedisBroker(host string) *RedisBroker {
	if !strings.Contains(host, ":") {
		host += ":6379"
	}
	return &RedisBroker{client: redis.NewClient(&redis.Options{Addr: host})}
}

// BrokerFromEnvironment reads the Redis host from HUEY_REDIS_HOST.
func BrokerFromEnvironment() (*RedisBroker, error) {
	host, err := secret.FromEnvironment("HUEY_REDIS_HOST")
	if err != nil {
		return nil, err
	}
	return NewRedisBroker(host), nil
}

func (b *RedisBroker) Push(ctx context.Context, queue string, data []byte) error {
	return b.client.LPush(ctx, queue, data).Err()
}

func (b *RedisBroker) Pop(ctx context.Context, queue string) ([]byte, error) {
	res, err := b.client.BRPop(ctx, time.Second, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value].
	return []byte(res[1]), nil
}

func (b *RedisBroker) Schedule(ctx context.Context, queue string, data []byte, at time.Time) error {
	return b.client.ZAdd(ctx, queue, redis.Z{
		Score:  float64(at.Unix()),
		Member: data,
	}).Err()
}

func (b *RedisBroker) Due(ctx context.Context, queue string, until time.Time) ([][]byte, error) {
	members, err := b.client.ZRangeByScore(ctx, queue, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", until.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}

	var due [][]byte
	for _, m := range members {
		// Claim each member before handing it out so two pollers never
		// release the same task.
		removed, err := b.client.ZRem(ctx, queue, m).Result()
		if err != nil {
			return due, err
		}
		if removed > 0 {
			due = append(due, []byte(m))
		}
	}
	return due, nil
}

// Queue names one task stream on a broker.
type Queue struct {
	broker Broker
	name   string

	now func() time2.Time
}

func New(broker Broker, name string) *Queue {
	if name == "" {
		name = DefaultName
	}
	return &Queue{broker: broker, name: name, now: time2.Now}
}

func (q *Queue) readyKey() string    { return "huey.redis." + q.name }
func (q *Queue) scheduleKey() string { return "huey.schedule." + q.name }

// TaskOptions control the lifetime and retry behavior of one task.
type TaskOptions struct {
	// TTL discards the task if no worker starts it in time. Zero means
	// no deadline.
	TTL time.Duration
	// Retries is how many times a transient failure may be retried.
	Retries int
	// RetryDelay is the base delay before the first retry; it doubles
	// with each subsequent attempt.
	RetryDelay time.Duration
}

// Enqueue serializes payload into a new task and pushes it.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any, opts TaskOptions) (*Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}

	task := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    body,
		EnqueuedAt: q.now(),
		Retries:    opts.Retries,
		RetryDelay: opts.RetryDelay.Seconds(),
	}
	if opts.TTL > 0 {
		expires := time2.New(task.EnqueuedAt.Add(opts.TTL))
		task.ExpiresAt = &expires
	}

	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task %s: %w", name, err)
	}
	if err := q.broker.Push(ctx, q.readyKey(), data); err != nil {
		return nil, fmt.Errorf("push task %s: %w", name, err)
	}
	return task, nil
}

// Retryable reports whether err is worth another attempt: anything that
// self-identifies as transient or as a timeout.
func Retryable(err error) bool {
	var transient interface{ Transient() bool }
	if errors.As(err, &transient) {
		return transient.Transient()
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) {
		return timeout.Timeout()
	}
	return false
}

// FetchTTLFromEnv reads the fetch-task deadline from
// HUEY_FETCH_CONFIG_EXPIRES (seconds).
func FetchTTLFromEnv() (time.Duration, error) {
	raw := secret.Optional(fetchTTLKey, "5")
	seconds, err := time.ParseDuration(raw + "s")
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", fetchTTLKey, err)
	}
	return seconds, nil
}
