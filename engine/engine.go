package engine

import (
	"bytes"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Basalt-Foundation/basalt-consensus/bitmap"
	"github.com/Basalt-Foundation/basalt-consensus/errs"
	"github.com/Basalt-Foundation/basalt-consensus/logging"
	"github.com/Basalt-Foundation/basalt-consensus/metrics"
	"github.com/Basalt-Foundation/basalt-consensus/peerset"
	"github.com/Basalt-Foundation/basalt-consensus/round"
	"github.com/Basalt-Foundation/basalt-consensus/signing"
	"github.com/Basalt-Foundation/basalt-consensus/types"
	"github.com/Basalt-Foundation/basalt-consensus/validatorset"
)

// Config is the subset of the consensus core's configuration surface the
// engine depends on directly.
type Config struct {
	ChainID       uint32
	PipelineDepth uint32 // D
	ViewTimeout   time.Duration
}

// Callbacks are the orchestrator-supplied side-effecting hooks.
type Callbacks struct {
	PersistCommitBitmap func(height uint64, bm bitmap.CommitBitmap)
	Broadcast           func(msg interface{})
}

// CommitBitmapStore persists a finalized height's commit bitmap. Orchestrators
// that prefer an interface boundary (e.g. for gomock-generated test doubles)
// over a bare func can implement this and adapt it with CallbacksFrom.
type CommitBitmapStore interface {
	PersistCommitBitmap(height uint64, bm bitmap.CommitBitmap)
}

// Broadcaster fans an outbound consensus message out to peers.
type Broadcaster interface {
	Broadcast(msg interface{})
}

// CallbacksFrom adapts a CommitBitmapStore and Broadcaster into Callbacks.
// Either argument may be nil, in which case the corresponding hook is left
// unset.
func CallbacksFrom(store CommitBitmapStore, b Broadcaster) Callbacks {
	c := Callbacks{}
	if store != nil {
		c.PersistCommitBitmap = store.PersistCommitBitmap
	}
	if b != nil {
		c.Broadcast = b.Broadcast
	}
	return c
}

// Events are the orchestrator-supplied event sinks.
type Events struct {
	OnFinalized      func(hash types.Hash, data []byte, bm bitmap.CommitBitmap)
	OnViewChange     func(view uint64)
	OnBehindDetected func(height uint64)
}

// Option configures an Engine at construction time, in the style of the
// reference BFT engine's functional-option pattern (other_examples/...
// nhbchain bft.go WithTimeouts).
type Option func(*Engine)

// WithLogger installs a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics installs a Prometheus-backed metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithViewTimeout overrides Config.ViewTimeout.
func WithViewTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.viewTimeout = d
		}
	}
}

type finalizationRecord struct {
	hash types.Hash
	data []byte
	bm   bitmap.CommitBitmap
}

// Engine is the Pipelined BFT Engine.
type Engine struct {
	chainID       uint32
	pipelineDepth uint32
	viewTimeout   time.Duration

	localPeerID  types.PeerID
	blsSecretKey []byte

	setMu        sync.RWMutex
	validatorSet *validatorset.Set

	roundsMu     sync.Mutex
	activeRounds map[uint64]*round.Round

	vcMu            sync.Mutex
	viewChangeVotes map[uint64]peerset.Set[types.PeerID]
	firedViews      map[uint64]bool

	pendingMu            sync.Mutex
	pendingFinalizations map[uint64]finalizationRecord

	lastFinalizedBlock atomic.Uint64
	minNextView        atomic.Uint64

	callbacks Callbacks
	events    Events
	logger    logging.Logger
	metrics   *metrics.Metrics
}

// New builds a Pipelined BFT Engine.
func New(cfg Config, vs *validatorset.Set, localPeerID types.PeerID, blsSecretKey []byte, callbacks Callbacks, events Events, opts ...Option) *Engine {
	if vs == nil {
		errs.Invariant("engine.New: validator set must not be nil")
	}
	depth := cfg.PipelineDepth
	if depth == 0 {
		depth = 1
	}
	timeout := cfg.ViewTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	e := &Engine{
		chainID:              cfg.ChainID,
		pipelineDepth:        depth,
		viewTimeout:          timeout,
		localPeerID:          localPeerID,
		blsSecretKey:         blsSecretKey,
		validatorSet:         vs,
		activeRounds:         make(map[uint64]*round.Round),
		viewChangeVotes:      make(map[uint64]peerset.Set[types.PeerID]),
		firedViews:           make(map[uint64]bool),
		pendingFinalizations: make(map[uint64]finalizationRecord),
		callbacks:            callbacks,
		events:               events,
		logger:               logging.NewNoOp(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status is the read-only health surface the core exposes: last
// finalized block, active round count, and min_next_view. It does not
// report a round or engine state.
type Status struct {
	LastFinalizedBlock uint64
	ActiveRoundCount   int
	MinNextView        uint64
}

// Status returns the engine's current health snapshot.
func (e *Engine) Status() Status {
	e.roundsMu.Lock()
	n := len(e.activeRounds)
	e.roundsMu.Unlock()
	return Status{
		LastFinalizedBlock: e.lastFinalizedBlock.Load(),
		ActiveRoundCount:   n,
		MinNextView:        e.minNextView.Load(),
	}
}

func (e *Engine) currentSet() *validatorset.Set {
	e.setMu.RLock()
	defer e.setMu.RUnlock()
	return e.validatorSet
}

func (e *Engine) getRound(height uint64) (*round.Round, bool) {
	e.roundsMu.Lock()
	defer e.roundsMu.Unlock()
	r, ok := e.activeRounds[height]
	return r, ok
}

// drop logs a dropped inbound message through the engine's errs taxonomy:
// warn for kinds an operator should notice (unauthorized senders,
// equivocation), debug for everything else (stale/ahead/capacity noise
// that's routine in a live pipeline).
func (e *Engine) drop(err error, ctx ...interface{}) {
	args := append([]interface{}{"err", err}, ctx...)
	if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrEquivocation) {
		e.logger.Warn("dropped message", args...)
		return
	}
	e.logger.Debug("dropped message", args...)
}

func phaseTag(p round.Phase) byte {
	switch p {
	case round.PhasePrepare:
		return signing.PhasePrepare
	case round.PhasePreCommit:
		return signing.PhasePreCommit
	default:
		return signing.PhaseCommit
	}
}

// StartRound opens a round for height with the given block data/hash,
// signs the leader's Prepare payload, and returns the Proposal to
// broadcast. Returns nil if the pipeline is at capacity or a round for
// this height is already open, or if the local node is not a member of
// the current validator set.
func (e *Engine) StartRound(height uint64, data []byte, hash types.Hash) *Proposal {
	set := e.currentSet()

	e.roundsMu.Lock()
	if _, exists := e.activeRounds[height]; exists {
		e.roundsMu.Unlock()
		e.drop(errs.Stale("start_round: round already open"), "height", height)
		return nil
	}
	if uint32(len(e.activeRounds)) >= e.pipelineDepth {
		e.roundsMu.Unlock()
		e.drop(errs.Capacity("start_round: pipeline at capacity"), "height", height)
		return nil
	}
	view := height
	if mnv := e.minNextView.Load(); mnv > view {
		view = mnv
	}
	now := time.Now()
	r := round.New(height, view, hash, data, now)
	e.activeRounds[height] = r
	active := len(e.activeRounds)
	e.roundsMu.Unlock()

	if e.metrics != nil {
		e.metrics.ActiveRounds.Set(float64(active))
	}

	local, ok := set.ByPeerID(e.localPeerID)
	if !ok {
		e.drop(errs.Unauthorized("start_round: local peer is not a member of the validator set"), "height", height)
		return nil
	}
	payload := signing.EncodeVotePayload(e.chainID, signing.PhasePrepare, view, height, hash)
	sig, err := signing.Sign(e.blsSecretKey, payload)
	if err != nil {
		e.logger.Warn("start_round: sign failed", "height", height, "err", err)
		return nil
	}

	quorum := set.Quorum()
	r.RecordVote(round.PhasePrepare, e.localPeerID, sig, local.AggregatePublicKey[:], quorum)
	e.advanceSelfVote(r, set)

	return &Proposal{
		SenderID:    e.localPeerID,
		Timestamp:   nowMillis(now),
		View:        view,
		Height:      height,
		BlockHash:   hash,
		BlockData:   data,
		ProposerSig: sig,
	}
}

// HandleProposal verifies and admits an incoming Proposal, returning the
// local node's own Prepare vote when one is emitted.
func (e *Engine) HandleProposal(p Proposal) *Vote {
	set := e.currentSet()

	leader := set.Leader(p.View)
	if leader.PeerID != p.SenderID {
		e.drop(errs.Unauthorized("handle_proposal: sender is not the leader for this view"), "height", p.Height, "view", p.View)
		return nil
	}
	payload := signing.EncodeVotePayload(e.chainID, signing.PhasePrepare, p.View, p.Height, p.BlockHash)
	if !signing.Verify(leader.AggregatePublicKey[:], payload, p.ProposerSig) {
		e.drop(errs.Malformed("handle_proposal: proposer signature verification failed"), "height", p.Height)
		return nil
	}

	lastFinalized := e.lastFinalizedBlock.Load()
	if p.Height <= lastFinalized {
		e.drop(errs.Stale("handle_proposal: height at or below last finalized"), "height", p.Height)
		return nil
	}
	if p.Height > lastFinalized+uint64(e.pipelineDepth)+1 {
		if e.events.OnBehindDetected != nil {
			e.events.OnBehindDetected(p.Height)
		}
		if e.metrics != nil {
			e.metrics.BehindDetections.Inc()
		}
		e.drop(errs.Ahead("handle_proposal: height beyond pipeline window"), "height", p.Height)
		return nil
	}

	quorum := set.Quorum()
	now := time.Now()

	e.roundsMu.Lock()
	r, exists := e.activeRounds[p.Height]
	if !exists {
		if uint32(len(e.activeRounds)) >= e.pipelineDepth {
			e.roundsMu.Unlock()
			e.drop(errs.Capacity("handle_proposal: pipeline at capacity"), "height", p.Height)
			return nil // capacity: defer
		}
		r = round.New(p.Height, p.View, p.BlockHash, p.BlockData, now)
		e.activeRounds[p.Height] = r
	}
	active := len(e.activeRounds)
	e.roundsMu.Unlock()

	if e.metrics != nil {
		e.metrics.ActiveRounds.Set(float64(active))
	}

	if !exists {
		r.RecordVote(round.PhasePrepare, leader.PeerID, p.ProposerSig, leader.AggregatePublicKey[:], quorum)
	} else {
		if !r.TryAcceptProposal(p.View, p.BlockHash, p.BlockData, now) {
			e.drop(errs.Equivocation("handle_proposal: conflicting proposal at the same or lower view"), "height", p.Height)
			return nil // equivocation at the same (or lower) view
		}
		r.RecordVote(round.PhasePrepare, leader.PeerID, p.ProposerSig, leader.AggregatePublicKey[:], quorum)
		e.replayStash(r, set)
	}

	return e.advanceSelfVote(r, set)
}

// replayStash re-feeds votes stashed for a future view once the round has
// fast-forwarded to exactly that view.
func (e *Engine) replayStash(r *round.Round, set *validatorset.Set) {
	view := r.View()
	quorum := set.Quorum()
	for _, sv := range r.TakeStash(view) {
		validator, ok := set.ByPeerID(sv.Voter)
		if !ok || !bytes.Equal(validator.AggregatePublicKey[:], sv.Pub) {
			continue
		}
		payload := signing.EncodeVotePayload(e.chainID, phaseTag(sv.Phase), view, r.BlockNumber, r.BlockHash())
		if !signing.Verify(sv.Pub, payload, sv.Sig) {
			continue
		}
		r.RecordVote(sv.Phase, sv.Voter, sv.Sig, sv.Pub, quorum)
	}
}

// HandleVote verifies and admits an incoming Vote, returning the local
// node's own next-phase vote when this vote tips the phase to quorum. The
// pipelined engine requires the round to already exist: this matches the
// pipelined behaviour, not the basic engine's pre-count.
func (e *Engine) HandleVote(v Vote) *Vote {
	set := e.currentSet()

	validator, ok := set.ByPeerID(v.SenderID)
	if !ok {
		e.drop(errs.Unauthorized("handle_vote: sender is not a validator"), "height", v.Height)
		return nil // sender not a validator
	}
	if !bytes.Equal(validator.AggregatePublicKey[:], v.VoterPub) {
		e.drop(errs.Unauthorized("handle_vote: voter public key does not match the registered validator"), "height", v.Height)
		return nil // key-swap prevention
	}

	r, ok := e.getRound(v.Height)
	if !ok {
		e.drop(errs.Stale("handle_vote: no round open for this height"), "height", v.Height)
		return nil
	}

	curView := r.View()
	if v.View > curView {
		r.Stash(v.View, v.Phase, v.SenderID, v.VoterSig, v.VoterPub)
		return nil
	}
	if v.View < curView {
		e.drop(errs.Stale("handle_vote: vote for a superseded view"), "height", v.Height, "view", v.View)
		return nil // stale
	}
	if v.BlockHash != r.BlockHash() {
		e.drop(errs.Equivocation("handle_vote: vote for a block hash that does not match the round's proposal"), "height", v.Height)
		return nil
	}

	payload := signing.EncodeVotePayload(e.chainID, phaseTag(v.Phase), v.View, v.Height, v.BlockHash)
	if !signing.Verify(v.VoterPub, payload, v.VoterSig) {
		e.drop(errs.Malformed("handle_vote: signature verification failed"), "height", v.Height)
		return nil
	}

	quorum := set.Quorum()
	r.RecordVote(v.Phase, v.SenderID, v.VoterSig, v.VoterPub, quorum)

	return e.advanceSelfVote(r, set)
}

// advanceSelfVote casts the local node's own vote for whatever phase the
// round has just advanced into, repeating as long as each self-vote
// itself tips the next phase to quorum too: a single-validator round may
// cascade straight through Prepare -> PreCommit -> Commit -> Finalized.
// Only the first vote generated is returned, since
// handle_proposal/handle_vote have a single return slot; any further
// cascade votes are pushed through the orchestrator's broadcast callback
// instead.
func (e *Engine) advanceSelfVote(r *round.Round, set *validatorset.Set) *Vote {
	local, ok := set.ByPeerID(e.localPeerID)
	if !ok {
		return nil
	}
	quorum := set.Quorum()
	var first *Vote

	for {
		var phase round.Phase
		switch r.State() {
		case round.Proposing:
			phase = round.PhasePrepare
		case round.Preparing:
			phase = round.PhasePreCommit
		case round.PreCommitting:
			phase = round.PhaseCommit
		default:
			return first
		}
		if r.HasVoted(phase, e.localPeerID) {
			return first
		}

		payload := signing.EncodeVotePayload(e.chainID, phaseTag(phase), r.View(), r.BlockNumber, r.BlockHash())
		sig, err := signing.Sign(e.blsSecretKey, payload)
		if err != nil {
			e.logger.Warn("advance_self_vote: sign failed", "height", r.BlockNumber, "err", err)
			return first
		}
		v := &Vote{
			SenderID:  e.localPeerID,
			Timestamp: nowMillis(time.Now()),
			View:      r.View(),
			Height:    r.BlockNumber,
			BlockHash: r.BlockHash(),
			Phase:     phase,
			VoterSig:  sig,
			VoterPub:  local.AggregatePublicKey[:],
		}
		if first == nil {
			first = v
		} else if e.callbacks.Broadcast != nil {
			e.callbacks.Broadcast(v)
		}

		advanced := r.RecordVote(phase, e.localPeerID, sig, local.AggregatePublicKey[:], quorum)
		if phase == round.PhaseCommit {
			if advanced {
				e.onCommitQuorum(r, set)
			}
			return first
		}
		if !advanced {
			return first
		}
	}
}

// onCommitQuorum computes the commit bitmap once the Commit phase first
// reaches quorum and attempts sequential finalization.
func (e *Engine) onCommitQuorum(r *round.Round, set *validatorset.Set) {
	bm := r.CommitBitmap(set.IndexOf)
	r.Finalize()
	e.tryFinalizeSequential(r.BlockNumber, r.BlockHash(), r.BlockData(), bm)
}

// tryFinalizeSequential emits OnFinalized only for the next contiguous
// height after last_finalized_block, buffering out-of-order arrivals and
// draining them in sequence as the gap closes.
func (e *Engine) tryFinalizeSequential(height uint64, hash types.Hash, data []byte, bm bitmap.CommitBitmap) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	e.pendingFinalizations[height] = finalizationRecord{hash: hash, data: data, bm: bm}
	for {
		next := e.lastFinalizedBlock.Load() + 1
		rec, ok := e.pendingFinalizations[next]
		if !ok {
			break
		}
		delete(e.pendingFinalizations, next)
		e.lastFinalizedBlock.Store(next)

		if e.callbacks.PersistCommitBitmap != nil {
			e.callbacks.PersistCommitBitmap(next, rec.bm)
		}
		if e.events.OnFinalized != nil {
			e.events.OnFinalized(rec.hash, rec.data, rec.bm)
		}
		if e.metrics != nil {
			e.metrics.Finalizations.Inc()
			e.metrics.LastFinalized.Set(float64(next))
		}
	}
}

// CheckViewTimeout returns at most one ViewChange per call, for the first
// active, non-finalized round (by ascending height) whose age exceeds the
// configured view timeout and which has not yet requested a view change
// view timeout.
func (e *Engine) CheckViewTimeout() *ViewChange {
	now := time.Now()

	e.roundsMu.Lock()
	heights := make([]uint64, 0, len(e.activeRounds))
	for h := range e.activeRounds {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	var target *round.Round
	for _, h := range heights {
		r := e.activeRounds[h]
		if r.State() == round.Finalized || r.ViewChangeRequested() {
			continue
		}
		if now.Sub(r.StartTime()) > e.viewTimeout {
			target = r
			break
		}
	}
	e.roundsMu.Unlock()

	if target == nil {
		return nil
	}

	proposedView := target.View() + 1
	target.MarkViewChangeRequested(time.Now())

	set := e.currentSet()
	local, ok := set.ByPeerID(e.localPeerID)
	if !ok {
		return nil
	}
	payload := signing.EncodeViewChangePayload(e.chainID, proposedView)
	sig, err := signing.Sign(e.blsSecretKey, payload)
	if err != nil {
		e.logger.Warn("check_view_timeout: sign failed", "err", err)
		return nil
	}

	e.recordViewChangeVote(proposedView, e.localPeerID)

	return &ViewChange{
		SenderID:     e.localPeerID,
		Timestamp:    nowMillis(time.Now()),
		CurrentView:  target.View(),
		ProposedView: proposedView,
		VoterSig:     sig,
		VoterPub:     local.AggregatePublicKey[:],
	}
}

// recordViewChangeVote tallies a view-change vote and, if it reaches
// quorum, finalizes the view change. Returns the tallied count.
func (e *Engine) recordViewChangeVote(proposedView uint64, voter types.PeerID) (count int, alreadyFired bool) {
	set := e.currentSet()

	e.vcMu.Lock()
	if e.firedViews[proposedView] {
		e.vcMu.Unlock()
		return 0, true
	}
	votes, ok := e.viewChangeVotes[proposedView]
	if !ok {
		votes = peerset.New[types.PeerID](8)
	}
	if !votes.Contains(voter) {
		votes.Add(voter)
		e.viewChangeVotes[proposedView] = votes
	}
	count = votes.Len()
	e.vcMu.Unlock()

	if count >= set.Quorum() {
		e.finalizeViewChange(proposedView)
	}
	return count, false
}

// HandleViewChange verifies and tallies an incoming ViewChange, returning
// a freshly signed ViewChange for the caller to broadcast iff the local
// node newly auto-joined as a result.
func (e *Engine) HandleViewChange(vc ViewChange) *ViewChange {
	set := e.currentSet()

	validator, ok := set.ByPeerID(vc.SenderID)
	if !ok {
		e.drop(errs.Unauthorized("handle_view_change: sender is not a validator"), "proposed_view", vc.ProposedView)
		return nil
	}
	if !bytes.Equal(validator.AggregatePublicKey[:], vc.VoterPub) {
		e.drop(errs.Unauthorized("handle_view_change: voter public key does not match the registered validator"), "proposed_view", vc.ProposedView)
		return nil
	}
	payload := signing.EncodeViewChangePayload(e.chainID, vc.ProposedView)
	if !signing.Verify(vc.VoterPub, payload, vc.VoterSig) {
		e.drop(errs.Malformed("handle_view_change: signature verification failed"), "proposed_view", vc.ProposedView)
		return nil
	}

	if _, alreadyFired := e.recordViewChangeVote(vc.ProposedView, vc.SenderID); alreadyFired {
		e.drop(errs.Stale("handle_view_change: view change already finalized"), "proposed_view", vc.ProposedView)
		return nil
	}

	if !e.shouldAutoJoin(vc.ProposedView) || e.hasVotedForView(vc.ProposedView) {
		return nil
	}

	local, ok := set.ByPeerID(e.localPeerID)
	if !ok {
		e.drop(errs.Unauthorized("handle_view_change: local peer is not a member of the validator set"), "proposed_view", vc.ProposedView)
		return nil
	}
	p2 := signing.EncodeViewChangePayload(e.chainID, vc.ProposedView)
	sig, err := signing.Sign(e.blsSecretKey, p2)
	if err != nil {
		return nil
	}
	e.recordViewChangeVote(vc.ProposedView, e.localPeerID)

	return &ViewChange{
		SenderID:     e.localPeerID,
		Timestamp:    nowMillis(time.Now()),
		CurrentView:  vc.CurrentView,
		ProposedView: vc.ProposedView,
		VoterSig:     sig,
		VoterPub:     local.AggregatePublicKey[:],
	}
}

// shouldAutoJoin implements the timeout gate: the local node
// only auto-joins a view change when proposedView exceeds every active
// non-finalized round's view AND at least one local round has
// independently timed out.
func (e *Engine) shouldAutoJoin(proposedView uint64) bool {
	e.roundsMu.Lock()
	defer e.roundsMu.Unlock()

	exceedsAll := true
	anyTimedOut := false
	for _, r := range e.activeRounds {
		if r.State() == round.Finalized {
			continue
		}
		if proposedView <= r.View() {
			exceedsAll = false
		}
		if r.ViewChangeRequested() {
			anyTimedOut = true
		}
	}
	return exceedsAll && anyTimedOut
}

func (e *Engine) hasVotedForView(view uint64) bool {
	e.vcMu.Lock()
	defer e.vcMu.Unlock()
	votes, ok := e.viewChangeVotes[view]
	if !ok {
		return false
	}
	return votes.Contains(e.localPeerID)
}

// finalizeViewChange advances min_next_view, aborts every non-finalized
// round and removes it from the active-rounds table (so its height can be
// reopened at the new view by StartRound or an incoming proposal), prunes
// stale view-change vote records, and fires OnViewChange exactly once for
// proposedView.
func (e *Engine) finalizeViewChange(proposedView uint64) {
	for {
		cur := e.minNextView.Load()
		if proposedView <= cur {
			break
		}
		if e.minNextView.CompareAndSwap(cur, proposedView) {
			break
		}
	}

	e.roundsMu.Lock()
	for h, r := range e.activeRounds {
		if r.State() != round.Finalized {
			r.Abort()
			delete(e.activeRounds, h)
		}
	}
	e.roundsMu.Unlock()

	e.vcMu.Lock()
	if e.firedViews[proposedView] {
		e.vcMu.Unlock()
		return
	}
	e.firedViews[proposedView] = true
	for v := range e.viewChangeVotes {
		if v <= proposedView {
			delete(e.viewChangeVotes, v)
		}
	}
	e.vcMu.Unlock()

	if e.metrics != nil {
		e.metrics.ViewChanges.Inc()
	}
	if e.events.OnViewChange != nil {
		e.events.OnViewChange(proposedView)
	}
}

// UpdateValidatorSet atomically swaps the active validator set (used at
// epoch transitions) and performs the same stale-round/min-next-view reset
// as UpdateLastFinalizedBlock.
func (e *Engine) UpdateValidatorSet(newSet *validatorset.Set) {
	e.setMu.Lock()
	e.validatorSet = newSet
	e.setMu.Unlock()

	n := e.lastFinalizedBlock.Load()
	e.clearStaleRounds(n)
	e.minNextView.Store(n)
}

// UpdateLastFinalizedBlock records the chain tip after an out-of-band
// sync, clearing stale rounds and resetting min_next_view.
func (e *Engine) UpdateLastFinalizedBlock(n uint64) {
	e.lastFinalizedBlock.Store(n)
	e.clearStaleRounds(n)
	e.minNextView.Store(n)

	e.pendingMu.Lock()
	for h := range e.pendingFinalizations {
		if h <= n {
			delete(e.pendingFinalizations, h)
		}
	}
	e.pendingMu.Unlock()

	if e.metrics != nil {
		e.metrics.LastFinalized.Set(float64(n))
	}
}

func (e *Engine) clearStaleRounds(n uint64) {
	e.roundsMu.Lock()
	defer e.roundsMu.Unlock()
	for h := range e.activeRounds {
		if h <= n {
			delete(e.activeRounds, h)
		}
	}
}

// AggregateSignature returns the BLS aggregate of the Commit-phase
// signatures recorded for height n, or nil if no round is tracked for
// that height.
func (e *Engine) AggregateSignature(n uint64) []byte {
	r, ok := e.getRound(n)
	if !ok {
		return nil
	}
	sigs := r.CommitAggregator().Signatures()
	if len(sigs) == 0 {
		return nil
	}
	agg, err := signing.Aggregate(sigs)
	if err != nil {
		return nil
	}
	return agg
}

// CleanupFinalizedRounds removes finalized rounds from the active-rounds
// table so they no longer count against the pipeline depth.
func (e *Engine) CleanupFinalizedRounds() {
	e.roundsMu.Lock()
	defer e.roundsMu.Unlock()
	for h, r := range e.activeRounds {
		if r.State() == round.Finalized {
			delete(e.activeRounds, h)
		}
	}
}
