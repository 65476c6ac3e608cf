// Package config defines the immutable configuration snapshot the core
// consumes. The core itself never loads TOML or watches files — that is
// the excluded collaborator's job — it only decodes and validates an
// already-assembled snapshot. Struct shape, yaml tags, and the
// Validator/ValidationError split follow this stack's config package
// idiom; gopkg.in/yaml.v3 is used here purely to build snapshots from
// literal bytes in tests and the demo binary, never as a file watcher.
package config

import (
	"time"

	"github.com/certdirectory/crawlcore/pkg/model"
)

// Config is the fully validated, immutable snapshot handed to a
// SessionActor at start. It is shared by reference into every descendant
// context and never mutated after Validate succeeds.
type Config struct {
	System      SystemConfig                  `yaml:"system"`
	Performance PerformanceConfig             `yaml:"performance"`
	Channels    ChannelsConfig                `yaml:"channels"`
	RetryPolicies map[string]RetryPolicyConfig `yaml:"retry_policies"`
	Monitoring  MonitoringConfig              `yaml:"monitoring"`
	Planner     PlannerConfig                 `yaml:"planner"`
}

// SystemConfig holds session-wide limits and fatal-error abort flags.
type SystemConfig struct {
	MaxConcurrentSessions   int  `yaml:"max_concurrent_sessions"`
	SessionTimeoutSecs      int  `yaml:"session_timeout_secs"`
	CancellationTimeoutSecs int  `yaml:"cancellation_timeout_secs"`
	AbortOnDatabaseError    bool `yaml:"abort_on_database_error"`
	AbortOnValidationError  bool `yaml:"abort_on_validation_error"`
}

// SessionTimeout returns SessionTimeoutSecs as a time.Duration.
func (s SystemConfig) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutSecs) * time.Second
}

// CancellationTimeout returns CancellationTimeoutSecs as a time.Duration.
func (s SystemConfig) CancellationTimeout() time.Duration {
	return time.Duration(s.CancellationTimeoutSecs) * time.Second
}

// PerformanceConfig groups batch-sizing and concurrency tuning.
type PerformanceConfig struct {
	BatchSizes  BatchSizeConfig  `yaml:"batch_sizes"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// BatchSizeConfig controls adaptive batch sizing across batches.
type BatchSizeConfig struct {
	InitialSize        int     `yaml:"initial_size"`
	MinSize            int     `yaml:"min_size"`
	MaxSize            int     `yaml:"max_size"`
	AutoAdjustThreshold float64 `yaml:"auto_adjust_threshold"`
	AdjustMultiplier    float64 `yaml:"adjust_multiplier"`
}

// ConcurrencyConfig controls per-stage task concurrency.
type ConcurrencyConfig struct {
	MaxConcurrentTasks    int                      `yaml:"max_concurrent_tasks"`
	StageConcurrencyLimits map[model.StageName]int `yaml:"stage_concurrency_limits"`
	TaskQueueSize         int                      `yaml:"task_queue_size"`
}

// StageLimit returns the configured concurrency limit for stage, falling
// back to MaxConcurrentTasks when the stage has no specific override.
func (c ConcurrencyConfig) StageLimit(stage model.StageName) int {
	if limit, ok := c.StageConcurrencyLimits[stage]; ok && limit > 0 {
		return limit
	}
	return c.MaxConcurrentTasks
}

// ChannelsConfig sizes the control, result, and event channels shared
// across the actor tree.
type ChannelsConfig struct {
	ControlBufferSize    int `yaml:"control_buffer_size"`
	EventBufferSize      int `yaml:"event_buffer_size"`
	BackpressureThreshold int `yaml:"backpressure_threshold"`
}

// RetryPolicyConfig is the retry tuning for one stage (or "batch"/
// "session" for the higher actor layers).
type RetryPolicyConfig struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	BaseDelayMs       int64    `yaml:"base_delay_ms"`
	MaxDelayMs        int64    `yaml:"max_delay_ms"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	JitterRangeMs     int64    `yaml:"jitter_range_ms"`
	RetryOnErrors     []model.ErrorKind `yaml:"retry_on_errors"`
}

// RetryOn reports whether this policy permits retrying kind.
func (p RetryPolicyConfig) RetryOn(kind model.ErrorKind) bool {
	if len(p.RetryOnErrors) == 0 {
		return true
	}
	for _, k := range p.RetryOnErrors {
		if k == kind {
			return true
		}
	}
	return false
}

// BaseDelay returns BaseDelayMs as a time.Duration.
func (p RetryPolicyConfig) BaseDelay() time.Duration {
	return time.Duration(p.BaseDelayMs) * time.Millisecond
}

// MonitoringConfig controls the MetricsAggregator's cadence and retention.
type MonitoringConfig struct {
	MetricsIntervalSecs int    `yaml:"metrics_interval_secs"`
	LogLevel            string `yaml:"log_level"`
	EnableProfiling     bool   `yaml:"enable_profiling"`
	EventRetentionDays  int    `yaml:"event_retention_days"`
}

// MetricsInterval returns MetricsIntervalSecs as a time.Duration.
func (m MonitoringConfig) MetricsInterval() time.Duration {
	return time.Duration(m.MetricsIntervalSecs) * time.Second
}

// EventRetention returns EventRetentionDays as a time.Duration.
func (m MonitoringConfig) EventRetention() time.Duration {
	return time.Duration(m.EventRetentionDays) * 24 * time.Hour
}

// PlannerConfig controls CrawlingPlanner's range computation.
type PlannerConfig struct {
	ProductsPerPage    int     `yaml:"products_per_page"`
	PageRangeLimit     int     `yaml:"page_range_limit"`
	DurationSafetyFactor float64 `yaml:"duration_safety_factor"`
}
