// Package staking implements the Staking State: validator
// registration, self-stake and delegation accounting, the unbonding queue,
// and active-set snapshotting. Grounded on the teacher lineage's
// single-coarse-lock manager pattern (validators/validators.go Manager,
// uptime/manager.go Manager) generalized from a weight/light abstraction
// to a self-stake + delegated-stake model.
package staking

import (
	"sort"
	"sync"

	"github.com/Basalt-Foundation/basalt-consensus/errs"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

// Config is the subset of the consensus core's configuration the staking
// state depends on.
type Config struct {
	MinValidatorStake types.Stake
	UnbondingPeriod   uint64
}

// State is the staking ledger. All mutators serialize on a
// single coarse lock, matching the teacher lineage's staking-adjacent
// managers.
type State struct {
	mu         sync.Mutex
	cfg        Config
	validators map[types.Address]*types.StakeInfo
	unbonding  []types.UnbondingEntry
}

// New builds an empty staking state.
func New(cfg Config) *State {
	return &State{
		cfg:        cfg,
		validators: make(map[types.Address]*types.StakeInfo),
	}
}

// RegisterValidator registers addr with an initial self-stake, activating
// it. Fails if stake is below MinValidatorStake or addr is already
// registered.
func (s *State) RegisterValidator(addr types.Address, stake types.Stake, registeredAtBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stake.Cmp(s.cfg.MinValidatorStake) < 0 {
		return errs.Malformed("register_validator: stake below minimum")
	}
	if _, exists := s.validators[addr]; exists {
		return errs.Malformed("register_validator: address already registered")
	}
	s.validators[addr] = &types.StakeInfo{
		Addr:         addr,
		SelfStake:    stake,
		IsActive:     true,
		RegisteredAt: registeredAtBlock,
		Delegators:   make(map[types.Address]types.Stake),
	}
	return nil
}

// AddStake credits amount to addr's self-stake.
func (s *State) AddStake(addr types.Address, amount types.Stake) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.validators[addr]
	if !ok {
		return errs.Malformed("add_stake: unknown validator")
	}
	info.SelfStake = info.SelfStake.Add(amount)
	if !info.IsActive && info.TotalStake().Cmp(s.cfg.MinValidatorStake) >= 0 {
		info.IsActive = true
	}
	return nil
}

// Delegate credits delegator's balance against validator and increments
// the validator's delegated and total stake.
func (s *State) Delegate(delegator, validator types.Address, amount types.Stake) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.validators[validator]
	if !ok {
		return errs.Malformed("delegate: unknown validator")
	}
	info.Delegators[delegator] = info.Delegators[delegator].Add(amount)
	info.DelegatedStake = info.DelegatedStake.Add(amount)
	return nil
}

// InitiateUnstake reduces addr's self-stake by amount and enqueues an
// UnbondingEntry releasing at currentBlock + UnbondingPeriod. Fails if
// amount exceeds self-stake, or if the remainder would be a nonzero dust
// amount below MinValidatorStake. Deactivates the validator if
// self-stake reaches zero.
func (s *State) InitiateUnstake(addr types.Address, amount types.Stake, currentBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.validators[addr]
	if !ok {
		return errs.Malformed("initiate_unstake: unknown validator")
	}
	if amount.Cmp(info.SelfStake) > 0 {
		return errs.Malformed("initiate_unstake: amount exceeds self stake")
	}
	remainder := info.SelfStake.Sub(amount)
	if !remainder.IsZero() && remainder.Cmp(s.cfg.MinValidatorStake) < 0 {
		return errs.Malformed("initiate_unstake: remainder would be dust below minimum stake")
	}

	info.SelfStake = remainder
	if remainder.IsZero() {
		info.IsActive = false
	}

	s.unbonding = append(s.unbonding, types.UnbondingEntry{
		Validator:  addr,
		Amount:     amount,
		CompleteAt: currentBlock + s.cfg.UnbondingPeriod,
	})
	return nil
}

// ProcessUnbonding dequeues and returns every unbonding entry whose release
// height has been reached.
func (s *State) ProcessUnbonding(currentBlock uint64) []types.UnbondingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []types.UnbondingEntry
	remaining := s.unbonding[:0]
	for _, e := range s.unbonding {
		if currentBlock >= e.CompleteAt {
			released = append(released, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	s.unbonding = remaining
	return released
}

// GetActiveValidators returns a deep-copied snapshot of every active
// validator's StakeInfo, sorted by total stake descending with ties
// broken by address ascending so the ordering is stable across nodes.
func (s *State) GetActiveValidators() []types.StakeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.StakeInfo, 0, len(s.validators))
	for _, info := range s.validators {
		if !info.IsActive {
			continue
		}
		out = append(out, deepCopy(info))
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].TotalStake().Cmp(out[j].TotalStake())
		if cmp != 0 {
			return cmp > 0
		}
		return lessAddr(out[i].Addr, out[j].Addr)
	})
	return out
}

// Get returns a deep-copied snapshot of a single address's StakeInfo.
func (s *State) Get(addr types.Address) (types.StakeInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.validators[addr]
	if !ok {
		return types.StakeInfo{}, false
	}
	return deepCopy(info), true
}

// ApplyPenalty mutates addr's stake record in place: used by the slashing
// engine, which owns the deduction arithmetic but applies results back
// through this single entry point so every mutation serializes on the
// same lock.
func (s *State) ApplyPenalty(addr types.Address, newSelf types.Stake, newDelegated map[types.Address]types.Stake, deactivate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.validators[addr]
	if !ok {
		return
	}
	info.SelfStake = newSelf
	for d, v := range newDelegated {
		info.Delegators[d] = v
	}
	totalDelegated := types.NewStake(0)
	for _, v := range info.Delegators {
		totalDelegated = totalDelegated.Add(v)
	}
	info.DelegatedStake = totalDelegated
	if deactivate || info.TotalStake().Cmp(s.cfg.MinValidatorStake) < 0 {
		info.IsActive = false
	}
}

func lessAddr(a, b types.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func deepCopy(info *types.StakeInfo) types.StakeInfo {
	c := *info
	c.Delegators = make(map[types.Address]types.Stake, len(info.Delegators))
	for k, v := range info.Delegators {
		c.Delegators[k] = v
	}
	return c
}
