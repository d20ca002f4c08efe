// Package slashing implements the Slashing Engine:
// deterministic penalty computation for double-sign, inactivity and
// invalid-block events, with proportional delegator deduction ordered by
// address for cross-node determinism. Grounded on the teacher lineage's
// append-only event-log pattern (uptime/manager.go-style state tracking)
// generalized to a penalty ledger.
package slashing

import (
	"sort"
	"sync"
	"time"

	"github.com/Basalt-Foundation/basalt-consensus/metrics"
	"github.com/Basalt-Foundation/basalt-consensus/staking"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

const (
	doubleSignPercent   = 100
	inactivityPercent   = 5
	invalidBlockPercent = 1
)

// Engine applies deterministic penalties and appends to an immutable
// history.
type Engine struct {
	mu      sync.Mutex
	staking *staking.State
	history []types.SlashingEvent
	metrics *metrics.Metrics
}

// New builds a slashing engine bound to a staking state.
func New(st *staking.State) *Engine {
	return &Engine{staking: st}
}

// WithMetrics installs a Prometheus-backed metrics sink, incremented once
// per applied penalty, labeled by reason.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// History returns a copy of the append-only slashing event log.
func (e *Engine) History() []types.SlashingEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.SlashingEvent, len(e.history))
	copy(out, e.history)
	return out
}

// SlashDoubleSign applies a 100% penalty and always deactivates the
// validator.
func (e *Engine) SlashDoubleSign(addr types.Address, height uint64, hashA, hashB types.Hash, now time.Time) {
	e.apply(addr, types.SlashDoubleSign, doubleSignPercent, height,
		"double sign detected at conflicting block hashes", true, now)
}

// SlashInactivity applies a 5% penalty for missed commit signatures across
// the epoch window [from, to].
func (e *Engine) SlashInactivity(addr types.Address, from, to uint64, now time.Time) {
	e.apply(addr, types.SlashInactivity, inactivityPercent, to,
		"inactive across epoch window", false, now)
}

// SlashInvalidBlock applies a 1% penalty for proposing or voting for an
// invalid block.
func (e *Engine) SlashInvalidBlock(addr types.Address, height uint64, reason string, now time.Time) {
	e.apply(addr, types.SlashInvalidBlock, invalidBlockPercent, height, reason, false, now)
}

func (e *Engine) apply(addr types.Address, reason types.SlashReason, percent uint64, height uint64, description string, forceDeactivate bool, now time.Time) {
	info, ok := e.staking.Get(addr)
	if !ok {
		return
	}

	total := info.TotalStake()
	penalty := total.MulDivFloor(types.NewStake(percent), types.NewStake(100))

	newSelf, newDelegated, deactivate := deduct(info, penalty)

	e.mu.Lock()
	e.history = append(e.history, types.SlashingEvent{
		Validator:   addr,
		Reason:      reason,
		Penalty:     penalty,
		BlockNumber: height,
		Description: description,
		Timestamp:   now,
	})
	e.mu.Unlock()

	e.staking.ApplyPenalty(addr, newSelf, newDelegated, deactivate || forceDeactivate)

	if e.metrics != nil {
		e.metrics.SlashingEvents.WithLabelValues(reason.String()).Inc()
	}
}

// deduct computes the post-penalty self-stake and delegator balances,
// deducting first from self-stake and then proportionally from
// delegators, ordered by address ascending with dust rounded to the last
// delegator so the sum matches the penalty exactly. The returned
// deactivate flag is true when the self-stake is exhausted; deactivation
// for a total stake below MinValidatorStake is left to the caller
// (staking.State.ApplyPenalty enforces the threshold).
func deduct(info types.StakeInfo, penalty types.Stake) (newSelf types.Stake, newDelegated map[types.Address]types.Stake, deactivate bool) {
	newDelegated = make(map[types.Address]types.Stake, len(info.Delegators))
	for addr, amt := range info.Delegators {
		newDelegated[addr] = amt
	}

	remaining := penalty
	if remaining.Cmp(info.SelfStake) <= 0 {
		newSelf = info.SelfStake.Sub(remaining)
		return newSelf, newDelegated, newSelf.IsZero()
	}

	remaining = remaining.Sub(info.SelfStake)
	newSelf = types.NewStake(0)
	deactivate = true

	if info.DelegatedStake.IsZero() || len(info.Delegators) == 0 {
		return newSelf, newDelegated, deactivate
	}

	addrs := make([]types.Address, 0, len(info.Delegators))
	for addr := range info.Delegators {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return lessAddr(addrs[i], addrs[j])
	})

	deductedSoFar := types.NewStake(0)
	for i, addr := range addrs {
		balance := info.Delegators[addr]
		if i == len(addrs)-1 {
			// Last delegator absorbs rounding dust so the sum matches
			// the penalty exactly.
			share := remaining.Sub(deductedSoFar)
			newDelegated[addr] = subClamped(balance, share)
			continue
		}
		share := balance.MulDivFloor(remaining, info.DelegatedStake)
		deductedSoFar = deductedSoFar.Add(share)
		newDelegated[addr] = subClamped(balance, share)
	}
	return newSelf, newDelegated, deactivate
}

func subClamped(a, b types.Stake) types.Stake {
	if b.Cmp(a) > 0 {
		return types.NewStake(0)
	}
	return a.Sub(b)
}

func lessAddr(a, b types.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
