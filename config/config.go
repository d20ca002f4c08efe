// Package config defines the consensus core's configuration surface
// following the teacher lineage's named-constant,
// builder-style config (config/constants.go, config/builder.go) rather
// than a flat map of keys.
package config

import (
	"time"

	"github.com/holiman/uint256"
)

const (
	// DefaultViewTimeout is the default round view-change timeout.
	DefaultViewTimeout = 2 * time.Second

	// DefaultPipelineDepth is the default number of concurrently open rounds.
	DefaultPipelineDepth = 3

	// MaxValidatorSetSize is the bitmap-word ceiling (64 bits).
	MaxValidatorSetSize = 64
)

// Config is the consensus core's configuration surface.
type Config struct {
	ChainID                     uint32
	EpochLength                 uint32 // L; 0 disables epoch detection
	ValidatorSetSize            uint32 // silently capped at MaxValidatorSetSize
	MinValidatorStake           *uint256.Int
	UnbondingPeriod             uint64 // blocks
	InactivityThresholdPercent  uint32 // 0..100; 0 disables inactivity slashing
	ViewTimeout                 time.Duration
	PipelineDepth               uint32 // D
}

// NewDefaultConfig returns a Config with documented defaults for
// everything except chain-specific values, which the caller must set.
func NewDefaultConfig() Config {
	return Config{
		EpochLength:                0,
		ValidatorSetSize:           MaxValidatorSetSize,
		MinValidatorStake:          uint256.NewInt(0),
		UnbondingPeriod:            0,
		InactivityThresholdPercent: 0,
		ViewTimeout:                DefaultViewTimeout,
		PipelineDepth:              DefaultPipelineDepth,
	}
}

// Builder constructs a Config via chained With* setters, in the style of
// the teacher lineage's config/builder.go.
type Builder struct {
	cfg Config
}

// NewBuilder starts from the documented defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: NewDefaultConfig()}
}

func (b *Builder) WithChainID(id uint32) *Builder {
	b.cfg.ChainID = id
	return b
}

func (b *Builder) WithEpochLength(l uint32) *Builder {
	b.cfg.EpochLength = l
	return b
}

// WithValidatorSetSize caps the configured size at MaxValidatorSetSize per
// configured sizes above the ceiling, which are silently capped.
func (b *Builder) WithValidatorSetSize(size uint32) *Builder {
	if size > MaxValidatorSetSize {
		size = MaxValidatorSetSize
	}
	b.cfg.ValidatorSetSize = size
	return b
}

func (b *Builder) WithMinValidatorStake(v *uint256.Int) *Builder {
	b.cfg.MinValidatorStake = v
	return b
}

func (b *Builder) WithUnbondingPeriod(blocks uint64) *Builder {
	b.cfg.UnbondingPeriod = blocks
	return b
}

// WithInactivityThresholdPercent clamps the configured percentage to
// [0, 100].
func (b *Builder) WithInactivityThresholdPercent(p uint32) *Builder {
	if p > 100 {
		p = 100
	}
	b.cfg.InactivityThresholdPercent = p
	return b
}

func (b *Builder) WithViewTimeout(d time.Duration) *Builder {
	b.cfg.ViewTimeout = d
	return b
}

func (b *Builder) WithPipelineDepth(d uint32) *Builder {
	b.cfg.PipelineDepth = d
	return b
}

func (b *Builder) Build() Config {
	return b.cfg
}
