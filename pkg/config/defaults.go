package config

import "github.com/certdirectory/crawlcore/pkg/model"

// Defaults returns the built-in configuration used by the demo binary and
// as a base for test fixtures to override piecemeal.
func Defaults() *Config {
	retryPolicies := make(map[string]RetryPolicyConfig, len(model.Stages)+2)
	for _, stage := range model.Stages {
		retryPolicies[string(stage)] = RetryPolicyConfig{
			MaxAttempts:       3,
			BaseDelayMs:       200,
			MaxDelayMs:        5000,
			BackoffMultiplier: 2,
			JitterRangeMs:     100,
		}
	}
	retryPolicies["batch"] = RetryPolicyConfig{
		MaxAttempts:       2,
		BaseDelayMs:       1000,
		MaxDelayMs:        10000,
		BackoffMultiplier: 2,
		JitterRangeMs:     250,
	}
	retryPolicies["session"] = RetryPolicyConfig{
		MaxAttempts:       1,
		BaseDelayMs:       0,
		MaxDelayMs:        0,
		BackoffMultiplier: 1,
		JitterRangeMs:     0,
	}

	return &Config{
		System: SystemConfig{
			MaxConcurrentSessions:   5,
			SessionTimeoutSecs:      900,
			CancellationTimeoutSecs: 10,
			AbortOnDatabaseError:    false,
			AbortOnValidationError:  false,
		},
		Performance: PerformanceConfig{
			BatchSizes: BatchSizeConfig{
				InitialSize:        2,
				MinSize:            1,
				MaxSize:            10,
				AutoAdjustThreshold: 0.2,
				AdjustMultiplier:    1.5,
			},
			Concurrency: ConcurrencyConfig{
				MaxConcurrentTasks:     4,
				StageConcurrencyLimits: map[model.StageName]int{},
				TaskQueueSize:          64,
			},
		},
		Channels: ChannelsConfig{
			ControlBufferSize:     16,
			EventBufferSize:       256,
			BackpressureThreshold: 200,
		},
		RetryPolicies: retryPolicies,
		Monitoring: MonitoringConfig{
			MetricsIntervalSecs: 5,
			LogLevel:            "info",
			EnableProfiling:     false,
			EventRetentionDays:  7,
		},
		Planner: PlannerConfig{
			ProductsPerPage:      12,
			PageRangeLimit:       100,
			DurationSafetyFactor: 1.3,
		},
	}
}
