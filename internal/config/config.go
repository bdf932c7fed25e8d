// Package config provides configuration parsing and validation for the
// signal-desk binaries.
package config

import (
	"fmt"
	"time"

	"github.com/olajoao/signal-desk/internal/queue"
	"github.com/olajoao/signal-desk/internal/window"
)

// Backend names for the window and cooldown state.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// EventProcessorConfig holds the event-processor settings.
type EventProcessorConfig struct {
	KafkaBrokers       string
	EventsTopic        string
	NotificationsTopic string
	ConsumerGroupID    string
	PostgresDSN        string
	RedisAddr          string
	Workers            int
	JobEncoding        string
	StateBackend       string // redis or memory
	PruneMode          string // max or requested
	UsageBuffer        int
	SpikeSampleRate    float64
	Migrate            bool
}

// Validate checks that all required configuration fields are set and have valid values.
func (c *EventProcessorConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.EventsTopic == "" {
		return fmt.Errorf("events-topic cannot be empty")
	}
	if c.NotificationsTopic == "" {
		return fmt.Errorf("notifications-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if _, err := queue.NewCodec(c.JobEncoding); err != nil {
		return err
	}
	if c.StateBackend != BackendRedis && c.StateBackend != BackendMemory {
		return fmt.Errorf("state-backend must be %s or %s", BackendRedis, BackendMemory)
	}
	if _, err := window.ParsePruneMode(c.PruneMode); err != nil {
		return err
	}
	if c.UsageBuffer < 0 {
		return fmt.Errorf("usage-buffer cannot be negative")
	}
	if c.SpikeSampleRate < 0 || c.SpikeSampleRate > 1 {
		return fmt.Errorf("spike-sample-rate must be between 0 and 1")
	}
	return nil
}

// DispatcherConfig holds the dispatcher settings.
type DispatcherConfig struct {
	KafkaBrokers       string
	NotificationsTopic string
	ConsumerGroupID    string
	PostgresDSN        string
	RedisAddr          string
	Workers            int
	JobEncoding        string

	ReconcileSchedule string
	StaleAfter        time.Duration

	ResendAPIKey   string
	EmailFrom      string
	SESEnabled     bool
	AWSRegion      string
	EmailRateLimit float64 // emails per second, 0 = unlimited
}

// Validate checks that all required configuration fields are set and have valid values.
func (c *DispatcherConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.NotificationsTopic == "" {
		return fmt.Errorf("notifications-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if _, err := queue.NewCodec(c.JobEncoding); err != nil {
		return err
	}
	if c.ReconcileSchedule == "" {
		return fmt.Errorf("reconcile-schedule cannot be empty")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive")
	}
	if c.SESEnabled && c.AWSRegion == "" {
		return fmt.Errorf("aws-region cannot be empty when SES is enabled")
	}
	if c.EmailRateLimit < 0 {
		return fmt.Errorf("email-rate-limit cannot be negative")
	}
	return nil
}

// GatewayConfig holds the live-gateway settings.
type GatewayConfig struct {
	ListenAddr string
	RedisAddr  string
}

// Validate checks that all required configuration fields are set.
func (c *GatewayConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	return nil
}

// ProducerConfig holds the event-producer settings.
type ProducerConfig struct {
	KafkaBrokers string
	EventsTopic  string
	PostgresDSN  string
	JobEncoding  string
	RPS          float64
	Duration     time.Duration
	BurstSize    int
	Seed         int64
	TenantDist   string
	TypeDist     string
	SeedWebhook  string
}

// Validate checks that all required configuration fields are set.
func (c *ProducerConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.EventsTopic == "" {
		return fmt.Errorf("events-topic cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if _, err := queue.NewCodec(c.JobEncoding); err != nil {
		return err
	}
	if c.RPS <= 0 && c.BurstSize <= 0 {
		return fmt.Errorf("rps must be > 0 or burst must be > 0")
	}
	if c.BurstSize == 0 && c.Duration <= 0 {
		return fmt.Errorf("duration must be > 0 when not in burst mode")
	}
	if c.TenantDist == "" {
		return fmt.Errorf("tenant-dist cannot be empty")
	}
	if c.TypeDist == "" {
		return fmt.Errorf("type-dist cannot be empty")
	}
	return nil
}
