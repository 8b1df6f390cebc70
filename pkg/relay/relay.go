// Package relay publishes sensor snapshots to Redis.
//
// Each snapshot is published on a Pub/Sub channel for live consumers and
// pushed onto a capped list for late joiners.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sousvide-ble/nano-go/pkg/sensor"
)

// Publisher is the subset of the Redis client the relay uses.
// *redis.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Options configures a Relay.
type Options struct {
	// Channel is the Pub/Sub channel. Empty disables publishing.
	Channel string

	// ListKey is the history list key. Empty disables the list.
	ListKey string

	// ListLen caps the history list. Zero keeps everything.
	ListLen int64

	Logger *slog.Logger
}

// Message is the JSON document sent for each snapshot.
type Message struct {
	Address      string    `json:"address"`
	TakenAt      time.Time `json:"taken_at"`
	Status       string    `json:"status"`
	Unit         string    `json:"unit"`
	WaterTemp    float64   `json:"water_temp"`
	HeaterTemp   float64   `json:"heater_temp"`
	TriacTemp    float64   `json:"triac_temp"`
	InternalTemp float64   `json:"internal_temp"`
	WaterLow     bool      `json:"water_low"`
	WaterLeak    bool      `json:"water_leak"`
	MotorSpeed   int32     `json:"motor_speed"`
}

// NewMessage builds the message for one snapshot.
func NewMessage(address string, takenAt time.Time, v sensor.Values) Message {
	return Message{
		Address:      address,
		TakenAt:      takenAt,
		Status:       v.Status(),
		Unit:         v.WaterTemp.Unit,
		WaterTemp:    v.WaterTemp.Value,
		HeaterTemp:   v.HeaterTemp.Value,
		TriacTemp:    v.TriacTemp.Value,
		InternalTemp: v.InternalTemp.Value,
		WaterLow:     v.WaterLow,
		WaterLeak:    v.WaterLeak,
		MotorSpeed:   v.MotorSpeed,
	}
}

// Relay forwards snapshots to Redis.
type Relay struct {
	client  Publisher
	closer  func() error
	channel string
	listKey string
	listLen int64
	logger  *slog.Logger
}

// New creates a relay on an existing client.
func New(client Publisher, opts Options) *Relay {
	return &Relay{
		client:  client,
		channel: opts.Channel,
		listKey: opts.ListKey,
		listLen: opts.ListLen,
		logger:  opts.Logger,
	}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, redisOpts *redis.Options, opts Options) (*Relay, error) {
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", redisOpts.Addr, err)
	}

	r := New(client, opts)
	r.closer = client.Close
	return r, nil
}

// Publish sends one snapshot. A failed list update is logged, not returned.
func (r *Relay) Publish(ctx context.Context, address string, takenAt time.Time, v sensor.Values) error {
	data, err := json.Marshal(NewMessage(address, takenAt, v))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if r.channel != "" {
		if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
			return fmt.Errorf("publish snapshot: %w", err)
		}
	}

	if r.listKey == "" {
		return nil
	}
	if err := r.client.LPush(ctx, r.listKey, data).Err(); err != nil {
		if r.logger != nil {
			r.logger.Warn("relay list push failed", "key", r.listKey, "error", err)
		}
		return nil
	}
	if r.listLen > 0 {
		if err := r.client.LTrim(ctx, r.listKey, 0, r.listLen-1).Err(); err != nil && r.logger != nil {
			r.logger.Warn("relay list trim failed", "key", r.listKey, "error", err)
		}
	}
	return nil
}

// Close closes the Redis connection if the relay opened it.
func (r *Relay) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
