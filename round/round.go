// Package round implements the per-height Consensus Round state machine:
// PREPARE -> PRE-COMMIT -> COMMIT -> FINALIZED with
// vote/signature tracking, grounded on the reference BFT engine in the
// retrieval pack (other_examples/.../nhbchain__consensus-bft-bft.go.go
// State{Height,Round}/receivedVotes/receivedPower) generalized to BLS
// vote sets keyed by peer id, and on the teacher lineage's per-value-lock
// concurrent map discipline.
package round

import (
	"sync"
	"time"

	"github.com/Basalt-Foundation/basalt-consensus/bitmap"
	"github.com/Basalt-Foundation/basalt-consensus/peerset"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

// State is a round's lifecycle state.
type State int

const (
	Idle State = iota
	Proposing
	Preparing
	PreCommitting
	Committing
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Proposing:
		return "proposing"
	case Preparing:
		return "preparing"
	case PreCommitting:
		return "pre_committing"
	case Committing:
		return "committing"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Phase identifies which of the three vote sets a vote belongs to.
type Phase int

const (
	PhasePrepare Phase = iota
	PhasePreCommit
	PhaseCommit
)

// sigEntry is a (signature, public_key) pair recorded for BLS aggregation,
// mirroring a round's parallel signature lists.
type sigEntry struct {
	sig []byte
	pub []byte
}

// voteSet guards one phase's voter set and signature list with its own
// lock: each round guards its three vote sets
// and three signature lists with per-set mutexes.
type voteSet struct {
	mu     sync.Mutex
	voters peerset.Set[types.PeerID]
	sigs   []sigEntry
}

func newVoteSet() *voteSet {
	return &voteSet{voters: peerset.New[types.PeerID](8)}
}

// add records a vote if the voter has not already voted in this phase,
// returning true iff the phase set reached exactly quorum on this call
// (the caller emits the next-phase vote only on that transition).
func (vs *voteSet) add(voter types.PeerID, sig, pub []byte, quorum int) (reachedQuorumNow bool, count int) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.voters.Contains(voter) {
		return false, vs.voters.Len()
	}
	vs.voters.Add(voter)
	vs.sigs = append(vs.sigs, sigEntry{sig: sig, pub: pub})
	n := vs.voters.Len()
	return n == quorum, n
}

func (vs *voteSet) count() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.voters.Len()
}

func (vs *voteSet) has(voter types.PeerID) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.voters.Contains(voter)
}

func (vs *voteSet) voterIndices(indexOf func(types.PeerID) int) []int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	out := make([]int, 0, len(vs.voters))
	for _, v := range vs.voters.List() {
		if idx := indexOf(v); idx >= 0 {
			out = append(out, idx)
		}
	}
	return out
}

func (vs *voteSet) aggregator() *bitmap.Aggregator {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	agg := &bitmap.Aggregator{}
	for _, e := range vs.sigs {
		agg.Add(e.sig, e.pub)
	}
	return agg
}

// Round is the per-height Consensus Round.
// Its state is guarded by stateMu, whose lock/unlock pairs give
// acquire/release ordering, so state transitions are observed
// monotonically across threads.
type Round struct {
	BlockNumber uint64

	stateMu sync.Mutex
	state   State
	view    uint64

	blockHash             types.Hash
	blockData             []byte
	startTime             time.Time
	viewChangeRequested   bool

	prepare   *voteSet
	precommit *voteSet
	commit    *voteSet

	stashMu sync.Mutex
	stash   map[uint64][]StashedVote
}

// StashedVote is a vote observed for a view strictly ahead of the round's
// current view, preserved until the round fast-forwards to that view:
// votes for a future view may be received
// and stored before the matching proposal.
type StashedVote struct {
	Phase Phase
	Voter types.PeerID
	Sig   []byte
	Pub   []byte
}

// Stash records a vote for a future view.
func (r *Round) Stash(view uint64, phase Phase, voter types.PeerID, sig, pub []byte) {
	r.stashMu.Lock()
	defer r.stashMu.Unlock()
	if r.stash == nil {
		r.stash = make(map[uint64][]StashedVote)
	}
	r.stash[view] = append(r.stash[view], StashedVote{Phase: phase, Voter: voter, Sig: sig, Pub: pub})
}

// TakeStash pops and returns every vote stashed for exactly view.
func (r *Round) TakeStash(view uint64) []StashedVote {
	r.stashMu.Lock()
	defer r.stashMu.Unlock()
	votes := r.stash[view]
	delete(r.stash, view)
	return votes
}

// New creates a round at the given view, already in Proposing state with
// the proposal's hash/data recorded (the leader's implicit self-vote is
// added separately by the engine).
func New(blockNumber, view uint64, hash types.Hash, data []byte, now time.Time) *Round {
	return &Round{
		BlockNumber: blockNumber,
		state:       Proposing,
		view:        view,
		blockHash:   hash,
		blockData:   data,
		startTime:   now,
		prepare:     newVoteSet(),
		precommit:   newVoteSet(),
		commit:      newVoteSet(),
		stash:       make(map[uint64][]StashedVote),
	}
}

// State returns the round's current state with acquire semantics.
func (r *Round) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// View returns the round's current view.
func (r *Round) View() uint64 {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.view
}

// BlockHash returns the round's current proposed block hash.
func (r *Round) BlockHash() types.Hash {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.blockHash
}

// BlockData returns the round's current proposed block data.
func (r *Round) BlockData() []byte {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.blockData
}

// StartTime returns the round's timer start, reset whenever a view change
// is requested.
func (r *Round) StartTime() time.Time {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.startTime
}

// ViewChangeRequested reports whether this round has already requested a
// view change at its current view.
func (r *Round) ViewChangeRequested() bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.viewChangeRequested
}

// MarkViewChangeRequested sets the flag and resets the timer so repeat
// view-change votes are not sent for the same view.
func (r *Round) MarkViewChangeRequested(now time.Time) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.viewChangeRequested = true
	r.startTime = now
}

// TryAcceptProposal accepts a conflicting proposal iff it arrives at a
// strictly higher view than the round's current view and the round is
// still in Proposing state: block_hash may be rewritten only
// while state = Proposing and only by a proposal from a strictly higher
// view. On acceptance the three phase vote sets are reset, since every
// vote cast so far was signed over the superseded (view, hash) payload
// and must not count toward the new proposal's quorum. Returns false
// (equivocation) otherwise.
func (r *Round) TryAcceptProposal(view uint64, hash types.Hash, data []byte, now time.Time) bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != Proposing {
		return false
	}
	if view <= r.view {
		return false
	}
	r.view = view
	r.blockHash = hash
	r.blockData = data
	r.startTime = now
	r.viewChangeRequested = false
	r.prepare = newVoteSet()
	r.precommit = newVoteSet()
	r.commit = newVoteSet()
	return true
}

// phaseSet returns the vote set for a phase.
func (r *Round) phaseSet(p Phase) *voteSet {
	switch p {
	case PhasePrepare:
		return r.prepare
	case PhasePreCommit:
		return r.precommit
	default:
		return r.commit
	}
}

// stateForPhase is the state a round must be in for a phase's quorum to
// trigger a transition.
func stateForPhase(p Phase) State {
	switch p {
	case PhasePrepare:
		return Proposing
	case PhasePreCommit:
		return Preparing
	default:
		return PreCommitting
	}
}

// nextStateForPhase is the state reached after a phase's quorum.
func nextStateForPhase(p Phase) State {
	switch p {
	case PhasePrepare:
		return Preparing
	case PhasePreCommit:
		return PreCommitting
	default:
		return Committing
	}
}

// RecordVote records a vote for phase from voter, returning whether this
// call caused the phase to reach quorum and transition the round's state
// the vote-set membership test and the phase-transition check
// occur under the same lock so at most one thread can emit the next-phase
// vote. The round's overall state is advanced atomically with the
// phase-quorum check via stateMu.
func (r *Round) RecordVote(phase Phase, voter types.PeerID, sig, pub []byte, quorum int) (advanced bool) {
	vs := r.phaseSet(phase)

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if vs.has(voter) {
		return false
	}
	reached, _ := vs.add(voter, sig, pub, quorum)
	if !reached {
		return false
	}
	if r.state != stateForPhase(phase) {
		// Quorum reached but the round already moved on (e.g. a
		// duplicate vote counted concurrently); no transition to emit.
		return false
	}
	r.state = nextStateForPhase(phase)
	return true
}

// HasVoted reports whether voter already has a recorded vote in phase.
func (r *Round) HasVoted(phase Phase, voter types.PeerID) bool {
	return r.phaseSet(phase).has(voter)
}

// PhaseCount returns the number of distinct voters recorded for phase.
func (r *Round) PhaseCount(phase Phase) int {
	return r.phaseSet(phase).count()
}

// Finalize transitions the round to Finalized. Once finalized a round is
// immutable.
func (r *Round) Finalize() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.state = Finalized
}

// Abort moves a non-finalized round to Idle when a view change supersedes
// it; an aborted round accepts no further proposals or phase transitions.
// Finalized rounds are never aborted.
func (r *Round) Abort() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state == Finalized {
		return
	}
	r.state = Idle
}

// CommitBitmap computes the 64-bit commit bitmap from the Commit phase's
// voters.
func (r *Round) CommitBitmap(indexOf func(types.PeerID) int) bitmap.CommitBitmap {
	var bm bitmap.CommitBitmap
	for _, idx := range r.commit.voterIndices(indexOf) {
		bm.Set(idx)
	}
	return bm
}

// CommitAggregator returns the recorded (signature, public_key) pairs for
// the Commit phase, for BLS aggregation.
func (r *Round) CommitAggregator() *bitmap.Aggregator {
	return r.commit.aggregator()
}
