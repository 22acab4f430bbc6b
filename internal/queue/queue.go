// Package queue is the at-least-once, topic-based work queue the core
// publishes to and consumes from. It is backed by Redis Streams consumer
// groups, which already give per-message XACK and crash-recovery via
// XAUTOCLAIM — the natural go-redis analogue of the broker this system
// treats as an external collaborator.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TopicChecker    = "checker"
	TopicCalculator = "calculator"
	TopicEmail      = "email"
)

const streamPrefix = "cdsctf:queue:"

// Default cadence for ReclaimLoop: scan for abandoned entries every 30s,
// reclaiming anything idle for more than a minute (long enough that a
// consumer still actively working a message is never double-delivered).
const (
	DefaultReclaimInterval = 30 * time.Second
	DefaultReclaimMinIdle  = time.Minute
)

func streamKey(topic string) string {
	return streamPrefix + topic
}

// Message is one delivered queue entry.
type Message struct {
	ID      string
	Payload []byte
}

// Handler processes one message. Returning an error leaves the message
// unacked so a future Reclaim pass redelivers it.
type Handler func(ctx context.Context, msg Message) error

// Queue is a Redis Streams-backed work queue client.
type Queue struct {
	rdb      *redis.Client
	group    string
	consumer string
}

// New creates a Queue. group identifies the durable consumer group (e.g.
// "adjudicator"); consumer identifies this process instance within the
// group.
func New(rdb *redis.Client, group, consumer string) *Queue {
	return &Queue{rdb: rdb, group: group, consumer: consumer}
}

// Publish appends payload to topic.
func (q *Queue) Publish(ctx context.Context, topic string, payload []byte) error {
	err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// ensureGroup creates the consumer group (and backing stream) if absent.
func (q *Queue) ensureGroup(ctx context.Context, topic string) error {
	err := q.rdb.XGroupCreateMkStream(ctx, streamKey(topic), q.group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		if isBusyGroup(err) {
			return nil
		}
		return err
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Subscribe blocks, delivering messages from topic to handler until ctx is
// done. Each successfully handled message is XACKed; a handler error
// leaves it pending for a later Reclaim pass.
func (q *Queue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if err := q.ensureGroup(ctx, topic); err != nil {
		return fmt.Errorf("ensuring consumer group for %s: %w", topic, err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{streamKey(topic), ">"},
			Count:    16,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			return fmt.Errorf("reading from %s: %w", topic, err)
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				q.deliver(ctx, topic, entry, handler)
			}
		}
	}
}

func (q *Queue) deliver(ctx context.Context, topic string, entry redis.XMessage, handler Handler) {
	msg := Message{ID: entry.ID}
	if payload, ok := entry.Values["payload"].(string); ok {
		msg.Payload = []byte(payload)
	}
	if err := handler(ctx, msg); err != nil {
		return
	}
	q.rdb.XAck(ctx, streamKey(topic), q.group, entry.ID)
}

// ReclaimLoop periodically calls Reclaim for topic until ctx is done,
// redelivering messages abandoned by a crashed consumer. It is meant to run
// alongside Subscribe in its own goroutine.
func (q *Queue) ReclaimLoop(ctx context.Context, topic string, interval, minIdle time.Duration, handler Handler, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.Reclaim(ctx, topic, minIdle, handler); err != nil {
				logger.Error("reclaiming abandoned messages", "topic", topic, "error", err)
			}
		}
	}
}

// Reclaim scans topic's pending entries list for messages idle longer than
// minIdle (abandoned by a crashed consumer), redelivers them to handler,
// and ACKs on success. Intended to run periodically alongside Subscribe.
func (q *Queue) Reclaim(ctx context.Context, topic string, minIdle time.Duration, handler Handler) error {
	cursor := "0"
	for {
		entries, next, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   streamKey(topic),
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  minIdle,
			Start:    cursor,
			Count:    16,
		}).Result()
		if err != nil {
			return fmt.Errorf("autoclaiming %s: %w", topic, err)
		}

		for _, entry := range entries {
			q.deliver(ctx, topic, entry, handler)
		}

		if next == "0" || len(entries) == 0 {
			return nil
		}
		cursor = next
	}
}
