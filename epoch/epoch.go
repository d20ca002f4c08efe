// Package epoch implements the Epoch Manager: epoch-boundary
// detection, restart-deterministic commit-bitmap replay, inactivity
// slashing, and validator-set rebuilding from staking state. Grounded on
// the teacher lineage's uptime.Manager (uptime/manager.go) generalized
// from a connection-tracking abstraction to a bitmap-replay
// model, and on validators/validators.go's Manager for the
// rebuild-from-stake step.
package epoch

import (
	"sync"
	"time"

	"github.com/Basalt-Foundation/basalt-consensus/bitmap"
	"github.com/Basalt-Foundation/basalt-consensus/metrics"
	"github.com/Basalt-Foundation/basalt-consensus/slashing"
	"github.com/Basalt-Foundation/basalt-consensus/staking"
	"github.com/Basalt-Foundation/basalt-consensus/types"
	"github.com/Basalt-Foundation/basalt-consensus/validatorset"
)

// BitmapLoader fetches a previously persisted commit bitmap for a block
// height, used by SeedFromChainHeight to replay the current epoch window
// deterministically across restarts.
type BitmapLoader func(height uint64) (bitmap.CommitBitmap, bool)

// Config is the subset of the engine's configuration surface the epoch
// manager depends on.
type Config struct {
	EpochLength                uint32 // L; 0 disables epoch detection
	InactivityThresholdPercent uint32 // P, clamped to [0,100]
	ValidatorSetSize           uint32 // 0 or values above 64 select up to 64
}

// Manager is the Epoch Manager.
type Manager struct {
	cfg     Config
	staking *staking.State
	slasher *slashing.Engine

	mu           sync.Mutex
	currentEpoch uint64
	currentSet   *validatorset.Set
	blockSigners map[uint64]bitmap.CommitBitmap

	metrics *metrics.Metrics
}

// New builds an epoch manager. initialSet must already reflect the
// genesis/active validator set.
func New(cfg Config, st *staking.State, slasher *slashing.Engine, initialSet *validatorset.Set) *Manager {
	return &Manager{
		cfg:          cfg,
		staking:      st,
		slasher:      slasher,
		currentSet:   initialSet,
		blockSigners: make(map[uint64]bitmap.CommitBitmap),
	}
}

// WithMetrics installs a Prometheus-backed metrics sink, incremented once
// per epoch boundary processed.
func (m *Manager) WithMetrics(mx *metrics.Metrics) *Manager {
	m.metrics = mx
	return m
}

// CurrentSet returns the currently active validator set.
func (m *Manager) CurrentSet() *validatorset.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSet
}

// epochStart returns the first block height of the epoch containing height.
func (m *Manager) epochStart(height uint64) uint64 {
	if m.cfg.EpochLength == 0 {
		return 0
	}
	l := uint64(m.cfg.EpochLength)
	return (height / l) * l
}

// RecordBlockSigners stores the commit bitmap for height, dropping it
// silently to prevent stale accumulation unless height lies in the
// current epoch or the one after it (height's epoch start is the current
// epoch start or the current epoch start plus L).
func (m *Manager) RecordBlockSigners(height uint64, bm bitmap.CommitBitmap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.EpochLength == 0 {
		return
	}
	start := m.epochStart(height)
	l := uint64(m.cfg.EpochLength)
	if start < m.currentEpochStartLocked() || start > m.currentEpochStartLocked()+l {
		return
	}
	m.blockSigners[height] = bm
}

func (m *Manager) currentEpochStartLocked() uint64 {
	return m.currentEpoch * uint64(m.cfg.EpochLength)
}

// OnBlockFinalized returns a rebuilt validator set iff height is an epoch
// boundary (height > 0 && height % L == 0); otherwise returns nil.
func (m *Manager) OnBlockFinalized(height uint64) *validatorset.Set {
	if m.cfg.EpochLength == 0 || height == 0 || height%uint64(m.cfg.EpochLength) != 0 {
		return nil
	}

	m.mu.Lock()
	epochStart := m.currentEpochStartLocked()
	snapshot := make(map[uint64]bitmap.CommitBitmap, len(m.blockSigners))
	for h, b := range m.blockSigners {
		snapshot[h] = b
	}
	oldSet := m.currentSet
	m.mu.Unlock()

	m.slashInactivity(oldSet, snapshot, epochStart, height)

	newSet := m.BuildValidatorSetFromStaking()
	validatorset.TransferIdentity(newSet, oldSet)

	m.mu.Lock()
	m.currentSet = newSet
	m.currentEpoch++
	m.blockSigners = make(map[uint64]bitmap.CommitBitmap)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.EpochTransitions.Inc()
	}

	return newSet
}

// slashInactivity implements the per-boundary slashing pass: for
// every validator in the current set, count signed blocks across the
// snapshot, compare against threshold = ceil(total*P/100), and slash if
// below threshold. Validators with index >= 64 are skipped since the
// bitmap cannot represent them. P=0 disables inactivity slashing
// entirely.
func (m *Manager) slashInactivity(set *validatorset.Set, snapshot map[uint64]bitmap.CommitBitmap, epochStart, epochEnd uint64) {
	if m.cfg.InactivityThresholdPercent == 0 || set == nil {
		return
	}
	totalBlocks := len(snapshot)
	if totalBlocks == 0 {
		return
	}
	threshold := ceilDiv(uint64(totalBlocks)*uint64(m.cfg.InactivityThresholdPercent), 100)

	now := time.Now()
	for _, v := range set.Validators() {
		if v.Index >= 64 {
			continue
		}
		signed := 0
		for _, bm := range snapshot {
			if bm.IsSet(v.Index) {
				signed++
			}
		}
		if uint64(signed) < threshold {
			m.slasher.SlashInactivity(v.Addr, epochStart, epochEnd, now)
		}
	}
}

// SignedPercent returns the fraction of the current epoch window's
// recorded blocks a validator has signed, purely informational and
// never itself a slashing gate.
func (m *Manager) SignedPercent(addr types.Address) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.currentSet
	if set == nil {
		return 0
	}
	v, ok := set.ByAddress(addr)
	if !ok || v.Index >= 64 || len(m.blockSigners) == 0 {
		return 0
	}
	signed := 0
	for _, bm := range m.blockSigners {
		if bm.IsSet(v.Index) {
			signed++
		}
	}
	return float64(signed) / float64(len(m.blockSigners))
}

func ceilDiv(num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	return (num + den - 1) / den
}

// BuildValidatorSetFromStaking selects the top min(configured_size, 64)
// active validators by total stake, then builds a Set (which itself sorts
// by address ascending for deterministic indexing).
func (m *Manager) BuildValidatorSetFromStaking() *validatorset.Set {
	active := m.staking.GetActiveValidators() // already sorted by stake desc
	limit := int(m.cfg.ValidatorSetSize)
	if limit <= 0 || limit > 64 {
		limit = 64
	}
	if len(active) > limit {
		active = active[:limit]
	}

	infos := make([]types.ValidatorInfo, len(active))
	for i, s := range active {
		infos[i] = types.ValidatorInfo{
			Addr:     s.Addr,
			StakeAmt: s.TotalStake(),
		}
	}
	return validatorset.New(infos)
}

// SeedFromChainHeight rebuilds current_epoch from tip and replays
// persisted bitmaps for the current epoch window via loader, so
// inactivity slashing at the next boundary is deterministic across
// restarts.
func (m *Manager) SeedFromChainHeight(tip uint64, loader BitmapLoader) {
	m.mu.Lock()
	if m.cfg.EpochLength == 0 {
		m.mu.Unlock()
		return
	}
	l := uint64(m.cfg.EpochLength)
	m.currentEpoch = tip / l
	epochStart := m.currentEpoch * l
	m.mu.Unlock()

	// The block at epochStart was counted by the previous epoch's boundary
	// pass, so the live window of this epoch starts one block later.
	replayed := make(map[uint64]bitmap.CommitBitmap)
	for h := epochStart + 1; h <= tip; h++ {
		if bm, ok := loader(h); ok {
			replayed[h] = bm
		}
	}

	m.mu.Lock()
	m.blockSigners = replayed
	m.mu.Unlock()
}
