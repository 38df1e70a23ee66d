// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"
)

// Signal is a task lifecycle event.
type Signal string

const (
	SignalEnqueued  Signal = "enqueued"
	SignalExecuting Signal = "executing"
	SignalComplete  Signal = "complete"
	SignalError     Signal = "error"
	SignalRetrying  Signal = "retrying"
	SignalExpired   Signal = "expired"
)

// SignalFunc observes task lifecycle events. err is non-nil only for
// error and retrying signals.
type SignalFunc func(sig Signal, task *Task, err error)

// Handler executes one task.
type Handler func(ctx context.Context, task *Task) error

type ErrUnknownTask string

func (e ErrUnknownTask) Error() string {
	return fmt.Sprintf("no handler registered for task %q", string(e))
}

// ConsumerOptions size the worker pool and its idle-poll backoff.
type ConsumerOptions struct {
	Workers      int
	WorkerType   string
	InitialDelay time.Duration
	Backoff      float64
	MaxDelay     time.Duration
}

func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		Workers:      1,
		WorkerType:   "thread",
		InitialDelay: 100 * time.Millisecond,
		Backoff:      1.15,
		MaxDelay:     10 * time.Second,
	}
}

// ConsumerOptionsFromEnv layers HUEY_WORKERS, HUEY_WORKER_TYPE,
// HUEY_BACKOFF and HUEY_MAX_DELAY over the defaults.
func ConsumerOptionsFromEnv() (ConsumerOptions, error) {
	opts := DefaultConsumerOptions()

	if raw := os.Getenv("HUEY_WORKERS"); raw != "" {
		workers, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("parse HUEY_WORKERS %q: %w", raw, err)
		}
		if workers < 1 {
			return opts, fmt.Errorf("parse HUEY_WORKERS %q: must be at least 1", raw)
		}
		opts.Workers = workers
	}
	if raw := os.Getenv("HUEY_WORKER_TYPE"); raw != "" {
		opts.WorkerType = raw
	}
	if raw := os.Getenv("HUEY_BACKOFF"); raw != "" {
		factor, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, fmt.Errorf("parse HUEY_BACKOFF %q: %w", raw, err)
		}
		if factor < 1 {
			return opts, fmt.Errorf("parse HUEY_BACKOFF %q: must be at least 1", raw)
		}
		opts.Backoff = factor
	}
	if raw := os.Getenv("HUEY_MAX_DELAY"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, fmt.Errorf("parse HUEY_MAX_DELAY %q: %w", raw, err)
		}
		if seconds <= 0 {
			return opts, fmt.Errorf("parse HUEY_MAX_DELAY %q: must be positive", raw)
		}
		opts.MaxDelay = time.Duration(seconds * float64(time.Second))
	}
	return opts, nil
}

// Consumer pulls tasks off a queue and runs registered handlers.
type Consumer struct {
	queue    *Queue
	opts     ConsumerOptions
	handlers map[string]Handler
	onSignal SignalFunc
}

func NewConsumer(queue *Queue, opts ConsumerOptions, onSignal SignalFunc) *Consumer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Consumer{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]Handler),
		onSignal: onSignal,
	}
}

// Register binds a handler to a task name. Last registration wins.
func (c *Consumer) Register(name string, handler Handler) {
	c.handlers[name] = handler
}

func (c *Consumer) signal(sig Signal, task *Task, err error) {
	if c.onSignal != nil {
		c.onSignal(sig, task, err)
	}
}

// Run polls until ctx is canceled. One goroutine releases scheduled
// tasks that have come due; the rest pop and execute ready tasks.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Consumer starting", "workers", c.opts.Workers, "worker_type", c.opts.WorkerType)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.releaseDue(ctx)
	}()

	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.work(ctx, worker)
		}(i)
	}

	wg.Wait()
	slog.Info("Consumer stopped")
	return ctx.Err()
}

// releaseDue moves scheduled tasks back onto the ready list once their
// time arrives.
func (c *Consumer) releaseDue(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := c.queue.broker.Due(ctx, c.queue.scheduleKey(), now)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Reading schedule failed", "error", err)
				continue
			}
			for _, data := range due {
				if err := c.queue.broker.Push(ctx, c.queue.readyKey(), data); err != nil {
					slog.Error("Releasing scheduled task failed", "error", err)
				}
			}
		}
	}
}

func (c *Consumer) work(ctx context.Context, worker int) {
	delay := newPollDelay(c.opts.InitialDelay, c.opts.Backoff, c.opts.MaxDelay)

	for ctx.Err() == nil {
		data, err := c.queue.broker.Pop(ctx, c.queue.readyKey())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Popping task failed", "worker", worker, "error", err)
			delay.Sleep(ctx)
			continue
		}
		if data == nil {
			delay.Sleep(ctx)
			continue
		}
		delay.Reset()
		c.execute(ctx, data)
	}
}

func (c *Consumer) execute(ctx context.Context, data []byte) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		// Nothing to retry: a task that cannot be decoded cannot be
		// rescheduled either.
		slog.Warn("Dropping undecodable task", "error", err)
		return
	}

	if task.Expired(c.queue.now()) {
		slog.Warn("Dropping expired task", "task", task.Name, "id", task.ID, "expires_at", task.ExpiresAt)
		c.signal(SignalExpired, &task, nil)
		return
	}

	handler, ok := c.handlers[task.Name]
	if !ok {
		err := ErrUnknownTask(task.Name)
		slog.Error("Dropping unknown task", "task", task.Name, "id", task.ID)
		c.signal(SignalError, &task, err)
		return
	}

	c.signal(SignalExecuting, &task, nil)
	err := handler(ctx, &task)
	if err == nil {
		c.signal(SignalComplete, &task, nil)
		return
	}

	if Retryable(err) && task.Retries > 0 {
		if retryErr := c.scheduleRetry(ctx, &task); retryErr != nil {
			slog.Error("Scheduling retry failed", "task", task.Name, "id", task.ID, "error", retryErr)
			c.signal(SignalError, &task, err)
			return
		}
		slog.Warn("Task failed, retrying", "task", task.Name, "id", task.ID, "attempts", task.Attempts, "error", err)
		c.signal(SignalRetrying, &task, err)
		return
	}

	slog.Error("Task failed", "task", task.Name, "id", task.ID, "error", err)
	c.signal(SignalError, &task, err)
}

// scheduleRetry files the task for another attempt, doubling the delay
// each time. The expiry deadline only guards tasks that never started,
// so it is cleared here.
func (c *Consumer) scheduleRetry(ctx context.Context, task *Task) error {
	task.Retries--
	task.Attempts++
	task.ExpiresAt = nil

	delay := time.Duration(task.RetryDelay * float64(time.Second))
	if task.Attempts > 1 {
		delay <<= task.Attempts - 1
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.Name, err)
	}
	return c.queue.broker.Schedule(ctx, c.queue.scheduleKey(), data, c.queue.now().Add(delay))
}

// pollDelay grows the idle wait geometrically so an empty queue is not
// hammered, and snaps back to the floor as soon as work appears.
type pollDelay struct {
	initial time.Duration
	factor  float64
	max     time.Duration
	current time.Duration
}

func newPollDelay(initial time.Duration, factor float64, max time.Duration) *pollDelay {
	return &pollDelay{initial: initial, factor: factor, max: max, current: initial}
}

func (p *pollDelay) Reset() {
	p.current = p.initial
}

// Sleep waits for the current delay or ctx, whichever ends first, then
// grows the delay for next time.
func (p *pollDelay) Sleep(ctx context.Context) {
	timer := time.NewTimer(p.current)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	p.current = time.Duration(float64(p.current) * p.factor)
	if p.current > p.max {
		p.current = p.max
	}
}
