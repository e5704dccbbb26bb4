package control

import (
	"context"

	"github.com/casarerpa/engine/engine/retry"
)

// RetryBlockConfig describes a workflow-level Retry control-flow node,
// distinct from a node's own per-node retry policy: it wraps an
// entire execution-edge subgraph (the "body" output) and re-enters it on
// failure, rather than retrying a single node's Execute call.
type RetryBlockConfig struct {
	MaxAttempts int
	Policy      retry.Policy
}

// NewRetryBlockConfig builds a RetryBlockConfig from parsed node config,
// falling back to retry.DefaultPolicy() knobs.
func NewRetryBlockConfig(maxAttempts int) RetryBlockConfig {
	policy := retry.DefaultPolicy()
	if maxAttempts > 0 {
		policy.MaxAttempts = maxAttempts
	}
	return RetryBlockConfig{MaxAttempts: policy.MaxAttempts, Policy: policy}
}

// Run executes body (the Retry block's body subgraph, invoked by
// engine/runtime) under the block's policy. body should wrap its own
// recoverable failures with retry.Retryable so the backoff loop retries
// them; anything else is treated as terminal and surfaces immediately via
// the "exhausted" output port.
func (c RetryBlockConfig) Run(ctx context.Context, body func(ctx context.Context) error) error {
	return c.Policy.Do(ctx, body)
}
