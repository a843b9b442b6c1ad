package wasmium

import (
	"github.com/wasmium/wasmium/internal/wasm"
	"go.uber.org/zap"
)

// Features is the bitset of post-MVP proposals an Engine accepts, gating
// both the translator and the binary decoder.
type Features = wasm.Features

const (
	FeatureMultiValue                     = wasm.FeatureMultiValue
	FeatureSignExtensionOps               = wasm.FeatureSignExtensionOps
	FeatureNonTrappingFloatToIntConversion = wasm.FeatureNonTrappingFloatToIntConversion
)

// DefaultFeatures is MVP plus multi-value, sign-extension and saturating
// conversions: the scope this build targets.
const DefaultFeatures = wasm.DefaultFeatures

// EngineConfig controls Engine behavior, built with NewEngineConfig. Each
// With* method returns a new, independent config: the receiver is never
// mutated, so a config can be reused as a base for several variants.
type EngineConfig struct {
	callStackCeiling int
	features         Features
	logger           *zap.Logger
}

// NewEngineConfig returns the default configuration: DefaultFeatures, the
// built-in call stack ceiling, and a no-op logger.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{features: DefaultFeatures}
}

func (c *EngineConfig) clone() *EngineConfig {
	ret := *c
	return &ret
}

// WithCallStackCeiling overrides the maximum Wasm call depth before a
// function invocation traps with a call stack overflow. Zero (the default)
// uses the engine's built-in ceiling.
func (c *EngineConfig) WithCallStackCeiling(n int) *EngineConfig {
	ret := c.clone()
	ret.callStackCeiling = n
	return ret
}

// WithFeatures overrides which post-MVP proposals are accepted.
func (c *EngineConfig) WithFeatures(f Features) *EngineConfig {
	ret := c.clone()
	ret.features = f
	return ret
}

// WithLogger installs a structured logger for the engine's code-heap events
// (a module translated, a cached translation reused). The store does not
// log. Passing nil discards them.
func (c *EngineConfig) WithLogger(l *zap.Logger) *EngineConfig {
	ret := c.clone()
	ret.logger = l
	return ret
}
