// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JarvusInnovations/transit-archiver/util/http2"
	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

type scheduledEntry struct {
	data []byte
	at   time.Time
}

// memBroker is an in-memory stand-in for Redis: a FIFO list per ready
// queue and a time-ordered slice per schedule queue.
type memBroker struct {
	mu        sync.Mutex
	ready     map[string][][]byte
	scheduled map[string][]scheduledEntry
}

func newMemBroker() *memBroker {
	return &memBroker{
		ready:     make(map[string][][]byte),
		scheduled: make(map[string][]scheduledEntry),
	}
}

func (b *memBroker) Push(ctx context.Context, queue string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready[queue] = append(b.ready[queue], data)
	return nil
}

func (b *memBroker) Pop(ctx context.Context, queue string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.ready[queue]
	if len(list) == 0 {
		return nil, nil
	}
	b.ready[queue] = list[1:]
	return list[0], nil
}

func (b *memBroker) Schedule(ctx context.Context, queue string, data []byte, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled[queue] = append(b.scheduled[queue], scheduledEntry{data, at})
	return nil
}

func (b *memBroker) Due(ctx context.Context, queue string, until time.Time) ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var due [][]byte
	var rest []scheduledEntry
	for _, entry := range b.scheduled[queue] {
		if !entry.at.After(until) {
			due = append(due, entry.data)
		} else {
			rest = append(rest, entry)
		}
	}
	b.scheduled[queue] = rest
	return due, nil
}

func fixedQueue(b Broker) (*Queue, time2.Time) {
	now := time2.Date(2024, time.January, 2, 3, 4, 0)
	q := New(b, "test")
	q.now = func() time2.Time { return now }
	return q, now
}

func TestEnqueue(t *testing.T) {
	broker := newMemBroker()
	q, now := fixedQueue(broker)

	task, err := q.Enqueue(context.Background(), "fetch_feed", map[string]string{"k": "v"}, TaskOptions{
		TTL:        5 * time.Second,
		Retries:    3,
		RetryDelay: time.Second,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if task.ID == "" {
		t.Error("task has no ID")
	}
	if task.Name != "fetch_feed" {
		t.Errorf("Name = %q", task.Name)
	}
	if !task.EnqueuedAt.Equal(now.Time) {
		t.Errorf("EnqueuedAt = %v, want %v", task.EnqueuedAt, now)
	}
	if task.ExpiresAt == nil || !task.ExpiresAt.Equal(now.Add(5*time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", task.ExpiresAt, now.Add(5*time.Second))
	}
	if task.Retries != 3 || task.RetryDelay != 1.0 {
		t.Errorf("Retries = %d, RetryDelay = %v", task.Retries, task.RetryDelay)
	}

	list := broker.ready["huey.redis.test"]
	if len(list) != 1 {
		t.Fatalf("ready list has %d entries, want 1", len(list))
	}
	var stored Task
	if err := json.Unmarshal(list[0], &stored); err != nil {
		t.Fatalf("Unmarshal stored task: %v", err)
	}
	if stored.ID != task.ID || string(stored.Payload) != `{"k":"v"}` {
		t.Errorf("stored = %+v", stored)
	}
}

func TestEnqueueWithoutTTL(t *testing.T) {
	q, _ := fixedQueue(newMemBroker())

	task, err := q.Enqueue(context.Background(), "fetch_feed", nil, TaskOptions{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if task.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", task.ExpiresAt)
	}
	if task.Expired(time2.Date(2999, time.January, 1, 0, 0, 0)) {
		t.Error("task without TTL expired")
	}
}

func TestTaskExpired(t *testing.T) {
	deadline := time2.Date(2024, time.January, 2, 3, 4, 5)
	task := Task{ExpiresAt: &deadline}

	if task.Expired(time2.Date(2024, time.January, 2, 3, 4, 4)) {
		t.Error("task expired before its deadline")
	}
	if !task.Expired(deadline) {
		t.Error("task not expired at its deadline")
	}
	if !task.Expired(time2.Date(2024, time.January, 2, 3, 4, 6)) {
		t.Error("task not expired after its deadline")
	}
}

type transientError struct{}

func (transientError) Error() string   { return "try again" }
func (transientError) Transient() bool { return true }

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", transientError{}, true},
		{"wrapped transient", fmt.Errorf("fetch: %w", transientError{}), true},
		{"timeout", timeoutError{}, true},
		{"http 503", &http2.Error{StatusCode: 503}, true},
		{"http 404", &http2.Error{StatusCode: 404}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Errorf("%s: Retryable = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFetchTTLFromEnv(t *testing.T) {
	ttl, err := FetchTTLFromEnv()
	if err != nil {
		t.Fatalf("FetchTTLFromEnv: %v", err)
	}
	if ttl != 5*time.Second {
		t.Errorf("default ttl = %v, want 5s", ttl)
	}

	t.Setenv("HUEY_FETCH_CONFIG_EXPIRES", "30")
	ttl, err = FetchTTLFromEnv()
	if err != nil {
		t.Fatalf("FetchTTLFromEnv: %v", err)
	}
	if ttl != 30*time.Second {
		t.Errorf("ttl = %v, want 30s", ttl)
	}

	t.Setenv("HUEY_FETCH_CONFIG_EXPIRES", "soon")
	if _, err := FetchTTLFromEnv(); err == nil {
		t.Error("FetchTTLFromEnv accepted a non-numeric value")
	}
}
