// SPDX-License-Identifier: MIT

// Package notify forwards record changes to redis so other processes can follow
// upload progress.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultChannel = "pixup:uploads"
	keyPrefix      = "pixup:upload:"
	stateTTL       = 24 * time.Hour
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	Channel  string // pub/sub channel, default "pixup:uploads"
}

// Message is the JSON document published for every change.
type Message struct {
	Seq                 uint64    `json:"seq"`
	Kind                string    `json:"kind"`
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Status              string    `json:"status"`
	Attempt             int       `json:"attempt"`
	OriginalSizeBytes   int64     `json:"original_size_bytes"`
	CompressedSizeBytes *int64    `json:"compressed_size_bytes,omitempty"`
	SentBytes           int64     `json:"sent_bytes"`
	Progress            int       `json:"progress"`
	RemoteLocation      string    `json:"remote_location,omitempty"`
	Reason              string    `json:"reason,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func messageFor(ev store.Event) Message {
	r := ev.Record
	return Message{
		Seq:                 ev.Seq,
		Kind:                string(ev.Kind),
		ID:                  r.ID,
		Name:                r.DisplayName,
		Status:              string(r.Status),
		Attempt:             r.Attempt,
		OriginalSizeBytes:   r.OriginalSizeBytes,
		CompressedSizeBytes: r.CompressedSizeBytes,
		SentBytes:           r.TransportSentBytes,
		Progress:            r.ItemProgress(),
		RemoteLocation:      r.RemoteLocation,
		Reason:              string(r.Reason),
		UpdatedAt:           r.UpdatedAt,
	}
}

// StateKey is where the latest message for an upload is kept.
func StateKey(id string) string {
	return keyPrefix + id
}

// RedisPublisher publishes record changes and keeps the latest state per upload.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisPublisher connects to redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig, logger zerolog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("channel", channelOrDefault(cfg.Channel)).
		Msg("connected to redis for upload notifications")

	return newRedisPublisher(client, cfg.Channel, logger), nil
}

func newRedisPublisher(client *redis.Client, channel string, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channelOrDefault(channel), logger: logger}
}

func channelOrDefault(ch string) string {
	if ch == "" {
		return DefaultChannel
	}
	return ch
}

// Publish sends one event and stores it as the upload's latest state.
func (p *RedisPublisher) Publish(ctx context.Context, ev store.Event) error {
	data, err := json.Marshal(messageFor(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.Set(ctx, StateKey(ev.Record.ID), data, stateTTL)
	pipe.Publish(ctx, p.channel, data)
	_, err = pipe.Exec(ctx)
	metrics.IncNotifyPublished(err == nil)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Record.ID, err)
	}
	return nil
}

// Run forwards events from sub until ctx is done or the subscription closes.
// Progress ticks of an upload are only forwarded when its percentage changes.
// Publish failures are logged and do not stop the loop.
func (p *RedisPublisher) Run(ctx context.Context, sub store.Subscription) error {
	lastProgress := make(map[string]int)
	lastStatus := make(map[string]model.Status)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			id := ev.Record.ID
			pct := ev.Record.ItemProgress()
			if ev.Kind == store.EventPatched && lastStatus[id] == ev.Record.Status && lastProgress[id] == pct {
				continue
			}
			lastStatus[id] = ev.Record.Status
			lastProgress[id] = pct

			if err := p.Publish(ctx, ev); err != nil {
				p.logger.Warn().Err(err).Str(log.FieldUploadID, id).Msg("upload notification failed")
			}
		}
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
