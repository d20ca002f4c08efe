// Package types defines the data model shared across the consensus core:
// validator identity, staking records, unbonding queue entries and the
// slashing event log.
package types

import (
	"time"

	"github.com/holiman/uint256"
)

// PeerID is an opaque 32-byte node handle, discovered via transport
// handshake rather than derived from stake or address.
type PeerID [32]byte

// Address is a 20-byte account address.
type Address [20]byte

// Hash is a 32-byte block hash.
type Hash [32]byte

// ConsensusPubKey is the Ed25519-style per-validator signing key used for
// identity/handshake purposes (not the BLS key used for votes).
type ConsensusPubKey [32]byte

// BLSPubKey is a BLS12-381 public key in compressed form.
type BLSPubKey [48]byte

// Stake is a 256-bit unsigned integer wrapping uint256.Int, used for stake
// amounts and slashing penalties throughout the core.
type Stake struct {
	v uint256.Int
}

// NewStake builds a Stake from a uint64.
func NewStake(v uint64) Stake {
	var s Stake
	s.v.SetUint64(v)
	return s
}

// NewStakeFromUint256 wraps an existing uint256.Int.
func NewStakeFromUint256(v *uint256.Int) Stake {
	var s Stake
	s.v.Set(v)
	return s
}

// Int returns the underlying uint256.Int, safe to mutate independently of s.
func (s Stake) Int() *uint256.Int {
	var c uint256.Int
	c.Set(&s.v)
	return &c
}

// Add returns s + o.
func (s Stake) Add(o Stake) Stake {
	var r Stake
	r.v.Add(&s.v, &o.v)
	return r
}

// Sub returns s - o. Callers must ensure s >= o; underflow wraps per
// uint256 semantics and is never expected on the deduction paths in this
// module (all deduction amounts are bounds-checked before subtraction).
func (s Stake) Sub(o Stake) Stake {
	var r Stake
	r.v.Sub(&s.v, &o.v)
	return r
}

// Cmp compares s to o: -1, 0, 1.
func (s Stake) Cmp(o Stake) int {
	return s.v.Cmp(&o.v)
}

// IsZero reports whether the stake amount is zero.
func (s Stake) IsZero() bool {
	return s.v.IsZero()
}

// Uint64 returns the low 64 bits, used only for test fixtures and
// human-readable logging, never for consensus-critical arithmetic.
func (s Stake) Uint64() uint64 {
	return s.v.Uint64()
}

func (s Stake) String() string {
	return s.v.Dec()
}

// MulDivFloor returns floor(s * num / den), used for proportional slashing
// and delegator-share computation.
func (s Stake) MulDivFloor(num, den Stake) Stake {
	var prod uint256.Int
	prod.Mul(&s.v, &num.v)
	var r Stake
	if den.v.IsZero() {
		return NewStake(0)
	}
	r.v.Div(&prod, &den.v)
	return r
}

// ValidatorInfo is the immutable-per-epoch identity and stake record for a
// single validator.
type ValidatorInfo struct {
	PeerID             PeerID
	ConsensusPublicKey ConsensusPubKey
	AggregatePublicKey BLSPubKey
	Addr               Address
	StakeAmt           Stake
	Index              int
}

// StakeInfo is the staking-state record for a single address.
type StakeInfo struct {
	Addr            Address
	SelfStake       Stake
	DelegatedStake  Stake
	IsActive        bool
	RegisteredAt    uint64
	Delegators      map[Address]Stake
}

// TotalStake returns SelfStake + DelegatedStake.
func (s *StakeInfo) TotalStake() Stake {
	return s.SelfStake.Add(s.DelegatedStake)
}

// UnbondingEntry is a queued stake-release record.
type UnbondingEntry struct {
	Validator     Address
	Amount        Stake
	CompleteAt    uint64
}

// SlashReason enumerates the deterministic penalty triggers for a validator.
type SlashReason int

const (
	SlashDoubleSign SlashReason = iota
	SlashInactivity
	SlashInvalidBlock
)

func (r SlashReason) String() string {
	switch r {
	case SlashDoubleSign:
		return "double_sign"
	case SlashInactivity:
		return "inactivity"
	case SlashInvalidBlock:
		return "invalid_block"
	default:
		return "unknown"
	}
}

// SlashingEvent is an append-only penalty record.
type SlashingEvent struct {
	Validator   Address
	Reason      SlashReason
	Penalty     Stake
	BlockNumber uint64
	Description string
	Timestamp   time.Time
}
