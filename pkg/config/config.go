// Package config loads the engine's runtime configuration: pool capacities,
// timeouts, and dispatch limits layered from defaults, a YAML file, and the
// environment, later sources overriding earlier ones.
package config

import "time"

// Config is the engine's full runtime configuration.
type Config struct {
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Resources ResourcesConfig `koanf:"resources"`
	Events    EventsConfig    `koanf:"events"`
	Variables VariablesConfig `koanf:"variables"`
	Retry     RetryConfig     `koanf:"retry"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Control   ControlConfig   `koanf:"control"`
	Temporal  TemporalConfig  `koanf:"temporal"`
}

// RuntimeConfig covers process-wide concerns that aren't specific to one
// engine component.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"required,oneof=development staging production"`
	LogLevel    string `koanf:"log_level"   validate:"required,oneof=debug info warn error"`
}

// SchedulerConfig bounds one run's dispatch.
type SchedulerConfig struct {
	MaxParallel   int           `koanf:"max_parallel"   validate:"gte=0"`
	RunTimeout    time.Duration `koanf:"run_timeout"    validate:"gt=0"`
}

// ResourcesConfig sizes the pooled Browser/HTTP/Database handles and the
// per-tenant quota window.
type ResourcesConfig struct {
	BrowserCapacity   int           `koanf:"browser_capacity"    validate:"gte=0"`
	HTTPCapacity      int           `koanf:"http_capacity"       validate:"gte=0"`
	DatabaseCapacity  int           `koanf:"database_capacity"   validate:"gte=0"`
	AcquireTimeout    time.Duration `koanf:"acquire_timeout"     validate:"gt=0"`
	TenantQuotaPeriod time.Duration `koanf:"tenant_quota_period" validate:"gt=0"`
	TenantQuotaLimit  int64         `koanf:"tenant_quota_limit"  validate:"gt=0"`
	BlockingWorkers   int           `koanf:"blocking_workers"    validate:"gt=0"`
}

// EventsConfig sizes the event bus.
type EventsConfig struct {
	BusCapacity      int           `koanf:"bus_capacity" validate:"gt=0"`
	DebounceInterval time.Duration `koanf:"debounce_interval" validate:"gt=0"`
}

// VariablesConfig sizes the variable resolution cache.
type VariablesConfig struct {
	CacheMaxEntries int64 `koanf:"cache_max_entries" validate:"gt=0"`
}

// RetryConfig is the default per-node retry policy, overridable per node
// type at the graph level.
type RetryConfig struct {
	MaxAttempts uint64        `koanf:"max_attempts" validate:"gte=1"`
	DelayStart  time.Duration `koanf:"delay_start"  validate:"gt=0"`
	DelayMax    time.Duration `koanf:"delay_max"    validate:"gt=0"`
	Jitter      time.Duration `koanf:"jitter"       validate:"gte=0"`
}

// BreakerConfig is the default per-node-type circuit breaker policy.
type BreakerConfig struct {
	ErrorPercentThresholdToOpen  int           `koanf:"error_percent_threshold_to_open"   validate:"gte=1,lte=100"`
	MinimumRequestToOpen         int           `koanf:"minimum_request_to_open"           validate:"gte=1"`
	SuccessfulRequiredOnHalfOpen int           `koanf:"successful_required_on_half_open"  validate:"gte=1"`
	WaitDurationInOpenState      time.Duration `koanf:"wait_duration_in_open_state"       validate:"gt=0"`
}

// ControlConfig bounds loop iterations and sub-workflow recursion.
type ControlConfig struct {
	MaxLoopIterations   int `koanf:"max_loop_iterations"    validate:"gt=0"`
	MaxSubWorkflowDepth int `koanf:"max_sub_workflow_depth" validate:"gt=0"`
}

// TemporalConfig configures the optional durable-execution decorator; left
// zero-valued, Temporal is simply never dialed.
type TemporalConfig struct {
	Enabled   bool   `koanf:"enabled"`
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// Default returns the engine's built-in configuration, the baseline every
// loaded source layers on top of.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		Scheduler: SchedulerConfig{
			MaxParallel: 0, // 0 means scheduler.DefaultMaxParallel() at dispatch time
			RunTimeout:  10 * time.Minute,
		},
		Resources: ResourcesConfig{
			BrowserCapacity:   4,
			HTTPCapacity:      16,
			DatabaseCapacity:  8,
			AcquireTimeout:    30 * time.Second,
			TenantQuotaPeriod: time.Minute,
			TenantQuotaLimit:  100,
			BlockingWorkers:   4,
		},
		Events: EventsConfig{
			BusCapacity:      1024,
			DebounceInterval: 50 * time.Millisecond,
		},
		Variables: VariablesConfig{
			CacheMaxEntries: 10_000,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			DelayStart:  500 * time.Millisecond,
			DelayMax:    5 * time.Second,
			Jitter:      100 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			ErrorPercentThresholdToOpen:  50,
			MinimumRequestToOpen:         10,
			SuccessfulRequiredOnHalfOpen: 3,
			WaitDurationInOpenState:      30 * time.Second,
		},
		Control: ControlConfig{
			MaxLoopIterations:   1000,
			MaxSubWorkflowDepth: 8,
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "casare-engine",
		},
	}
}
