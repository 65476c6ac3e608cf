package config

import (
	"fmt"

	"github.com/certdirectory/crawlcore/pkg/model"
)

// Validator validates a Config snapshot before it is frozen and handed to
// a SessionActor. Unknown keys are the loading collaborator's problem;
// this validator only checks that recognized values are internally
// consistent.
type Validator struct {
	cfg *Config
}

// NewValidator builds a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every section validator in order and returns the first
// failure (fail-fast), or nil if cfg is valid.
func (v *Validator) ValidateAll() error {
	validations := []func() error{
		v.validateSystem,
		v.validateBatchSizes,
		v.validateConcurrency,
		v.validateChannels,
		v.validateRetryPolicies,
		v.validateMonitoring,
		v.validatePlanner,
	}
	for _, validate := range validations {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateSystem() error {
	s := v.cfg.System
	if s.MaxConcurrentSessions < 1 {
		return NewValidationError("system", "max_concurrent_sessions", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if s.SessionTimeoutSecs < 1 {
		return NewValidationError("system", "session_timeout_secs", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if s.CancellationTimeoutSecs < 0 {
		return NewValidationError("system", "cancellation_timeout_secs", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateBatchSizes() error {
	b := v.cfg.Performance.BatchSizes
	if b.MinSize < 1 {
		return NewValidationError("performance.batch_sizes", "min_size", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if b.MaxSize < b.MinSize {
		return NewValidationError("performance.batch_sizes", "max_size", fmt.Errorf("%w: must be >= min_size", ErrInvalidValue))
	}
	if b.InitialSize < b.MinSize || b.InitialSize > b.MaxSize {
		return NewValidationError("performance.batch_sizes", "initial_size", fmt.Errorf("%w: must be within [min_size, max_size]", ErrInvalidValue))
	}
	if b.AutoAdjustThreshold <= 0 || b.AutoAdjustThreshold > 1 {
		return NewValidationError("performance.batch_sizes", "auto_adjust_threshold", fmt.Errorf("%w: must be in (0, 1]", ErrInvalidValue))
	}
	if b.AdjustMultiplier <= 1 {
		return NewValidationError("performance.batch_sizes", "adjust_multiplier", fmt.Errorf("%w: must be > 1", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateConcurrency() error {
	c := v.cfg.Performance.Concurrency
	if c.MaxConcurrentTasks < 1 {
		return NewValidationError("performance.concurrency", "max_concurrent_tasks", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.TaskQueueSize < 0 {
		return NewValidationError("performance.concurrency", "task_queue_size", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	for stage, limit := range c.StageConcurrencyLimits {
		if !stage.IsValid() {
			return NewValidationError("performance.concurrency", "stage_concurrency_limits", fmt.Errorf("%w: unknown stage %q", ErrInvalidValue, stage))
		}
		if limit < 1 {
			return NewValidationError("performance.concurrency", "stage_concurrency_limits["+string(stage)+"]", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateChannels() error {
	c := v.cfg.Channels
	if c.ControlBufferSize < 1 {
		return NewValidationError("channels", "control_buffer_size", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.EventBufferSize < 1 {
		return NewValidationError("channels", "event_buffer_size", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.BackpressureThreshold < 0 || c.BackpressureThreshold > c.EventBufferSize {
		return NewValidationError("channels", "backpressure_threshold", fmt.Errorf("%w: must be within [0, event_buffer_size]", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRetryPolicies() error {
	required := append([]string{"batch", "session"}, stageNames()...)
	for _, name := range required {
		policy, ok := v.cfg.RetryPolicies[name]
		if !ok {
			return NewValidationError("retry_policies", name, fmt.Errorf("%w: no policy configured", ErrMissingRequiredField))
		}
		if policy.MaxAttempts < 1 {
			return NewValidationError("retry_policies."+name, "max_attempts", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
		}
		if policy.BaseDelayMs < 0 {
			return NewValidationError("retry_policies."+name, "base_delay_ms", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
		}
		if policy.MaxDelayMs < policy.BaseDelayMs {
			return NewValidationError("retry_policies."+name, "max_delay_ms", fmt.Errorf("%w: must be >= base_delay_ms", ErrInvalidValue))
		}
		if policy.BackoffMultiplier <= 0 {
			return NewValidationError("retry_policies."+name, "backoff_multiplier", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
		}
		if policy.JitterRangeMs < 0 {
			return NewValidationError("retry_policies."+name, "jitter_range_ms", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateMonitoring() error {
	m := v.cfg.Monitoring
	if m.MetricsIntervalSecs < 1 {
		return NewValidationError("monitoring", "metrics_interval_secs", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if m.EventRetentionDays < 0 {
		return NewValidationError("monitoring", "event_retention_days", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	switch m.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return NewValidationError("monitoring", "log_level", fmt.Errorf("%w: unrecognized level %q", ErrInvalidValue, m.LogLevel))
	}
	return nil
}

func (v *Validator) validatePlanner() error {
	p := v.cfg.Planner
	if p.ProductsPerPage < 1 {
		return NewValidationError("planner", "products_per_page", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if p.PageRangeLimit < 1 {
		return NewValidationError("planner", "page_range_limit", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if p.DurationSafetyFactor < 1 {
		return NewValidationError("planner", "duration_safety_factor", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}

func stageNames() []string {
	names := make([]string, len(model.Stages))
	for i, s := range model.Stages {
		names[i] = string(s)
	}
	return names
}
