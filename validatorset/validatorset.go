// Package validatorset implements the Validator Set: an
// ordered, dense-indexed sequence of ValidatorInfo with quorum math and
// identity transfer across epochs, grounded on the teacher lineage's
// validators.Manager/Set shape (validators/validators.go) generalized from
// a sampling-weight abstraction to a stake-weighted, address-keyed
// set.
package validatorset

import (
	"bytes"
	"sort"

	"github.com/Basalt-Foundation/basalt-consensus/types"
)

// LeaderSelector maps a view to the validator that should lead it. The
// default is round-robin; callers may install a different
// selector via SetLeaderSelector (e.g. the stake-weighted selector).
type LeaderSelector func(set *Set, view uint64) types.ValidatorInfo

// Set is an ordered, immutable-per-epoch sequence of validators with
// derived lookup maps.
type Set struct {
	validators []types.ValidatorInfo
	byPeer     map[types.PeerID]int
	byAddr     map[types.Address]int
	selector   LeaderSelector
}

// New builds a Set from an unordered slice of validators, sorting by
// address ascending and assigning dense indices: index is dense and
// assigned by sorting validators by address ascending at epoch
// construction.
func New(validators []types.ValidatorInfo) *Set {
	vs := make([]types.ValidatorInfo, len(validators))
	copy(vs, validators)
	sort.Slice(vs, func(i, j int) bool {
		return bytes.Compare(vs[i].Addr[:], vs[j].Addr[:]) < 0
	})

	s := &Set{
		byPeer: make(map[types.PeerID]int, len(vs)),
		byAddr: make(map[types.Address]int, len(vs)),
	}
	for i := range vs {
		vs[i].Index = i
		s.byPeer[vs[i].PeerID] = i
		s.byAddr[vs[i].Addr] = i
	}
	s.validators = vs
	s.selector = roundRobin
	return s
}

func roundRobin(set *Set, view uint64) types.ValidatorInfo {
	n := uint64(len(set.validators))
	if n == 0 {
		return types.ValidatorInfo{}
	}
	return set.validators[view%n]
}

// SetLeaderSelector installs a custom leader-selection closure.
func (s *Set) SetLeaderSelector(sel LeaderSelector) {
	if sel == nil {
		sel = roundRobin
	}
	s.selector = sel
}

// Leader returns the validator assigned to lead the given view.
func (s *Set) Leader(view uint64) types.ValidatorInfo {
	return s.selector(s, view)
}

// Count returns the number of validators in the set.
func (s *Set) Count() int {
	return len(s.validators)
}

// Quorum returns floor(2*count/3) + 1 (GLOSSARY: Quorum).
func (s *Set) Quorum() int {
	n := len(s.validators)
	return (2*n)/3 + 1
}

// MaxFaults returns floor((count-1)/3), the largest f such that
// count >= 3f+1.
func (s *Set) MaxFaults() int {
	n := len(s.validators)
	if n == 0 {
		return 0
	}
	return (n - 1) / 3
}

// ByPeerID looks up a validator by peer id.
func (s *Set) ByPeerID(id types.PeerID) (types.ValidatorInfo, bool) {
	idx, ok := s.byPeer[id]
	if !ok {
		return types.ValidatorInfo{}, false
	}
	return s.validators[idx], true
}

// ByAddress looks up a validator by address.
func (s *Set) ByAddress(addr types.Address) (types.ValidatorInfo, bool) {
	idx, ok := s.byAddr[addr]
	if !ok {
		return types.ValidatorInfo{}, false
	}
	return s.validators[idx], true
}

// IsValidator reports whether id is a member of the set.
func (s *Set) IsValidator(id types.PeerID) bool {
	_, ok := s.byPeer[id]
	return ok
}

// IndexOf returns the dense index of id, or -1 if not a member.
func (s *Set) IndexOf(id types.PeerID) int {
	idx, ok := s.byPeer[id]
	if !ok {
		return -1
	}
	return idx
}

// Validators returns a copy of the ordered validator slice.
func (s *Set) Validators() []types.ValidatorInfo {
	out := make([]types.ValidatorInfo, len(s.validators))
	copy(out, s.validators)
	return out
}

// ValidatorsFromBitmap yields the validators whose index bit is set in
// bitmap.
func (s *Set) ValidatorsFromBitmap(bitmap uint64) []types.ValidatorInfo {
	var out []types.ValidatorInfo
	for i, v := range s.validators {
		if i >= 64 {
			break
		}
		if bitmap&(uint64(1)<<uint(i)) != 0 {
			out = append(out, v)
		}
	}
	return out
}

// UpdateIdentity overwrites the peer id and public keys of the validator
// at index, used for identity transfer across epochs.
func (s *Set) UpdateIdentity(index int, peerID types.PeerID, pub types.ConsensusPubKey, blsPub types.BLSPubKey) {
	if index < 0 || index >= len(s.validators) {
		return
	}
	old := s.validators[index].PeerID
	delete(s.byPeer, old)
	s.validators[index].PeerID = peerID
	s.validators[index].ConsensusPublicKey = pub
	s.validators[index].AggregatePublicKey = blsPub
	s.byPeer[peerID] = index
}

// TransferIdentity copies peer_id/public keys from prev into next for every
// address present in both sets: peer ids and keys are discovered via
// handshake, not by stake, so they must carry over across a
// validator-set rebuild.
func TransferIdentity(next, prev *Set) {
	if prev == nil || next == nil {
		return
	}
	for i := range next.validators {
		addr := next.validators[i].Addr
		if old, ok := prev.ByAddress(addr); ok {
			next.UpdateIdentity(i, old.PeerID, old.ConsensusPublicKey, old.AggregatePublicKey)
		}
	}
}
