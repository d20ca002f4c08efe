package round

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Basalt-Foundation/basalt-consensus/types"
)

func peer(b byte) types.PeerID {
	var p types.PeerID
	p[0] = b
	return p
}

func TestNewRoundStartsProposing(t *testing.T) {
	r := New(1, 1, types.Hash{1}, []byte("data"), time.Now())
	require.Equal(t, Proposing, r.State())
	require.Equal(t, uint64(1), r.View())
}

func TestRecordVoteAdvancesOnQuorum(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	quorum := 2

	advanced := r.RecordVote(PhasePrepare, peer(1), []byte("s1"), []byte("p1"), quorum)
	require.False(t, advanced)
	require.Equal(t, Proposing, r.State())

	advanced = r.RecordVote(PhasePrepare, peer(2), []byte("s2"), []byte("p2"), quorum)
	require.True(t, advanced)
	require.Equal(t, Preparing, r.State())
}

func TestRecordVoteRejectsDuplicateVoter(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	r.RecordVote(PhasePrepare, peer(1), []byte("s1"), []byte("p1"), 2)
	advanced := r.RecordVote(PhasePrepare, peer(1), []byte("s1b"), []byte("p1"), 2)
	require.False(t, advanced)
	require.Equal(t, 1, r.PhaseCount(PhasePrepare))
}

func TestRecordVoteOnlyAdvancesOnExactQuorumTransition(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	quorum := 1
	advanced := r.RecordVote(PhasePrepare, peer(1), []byte("s1"), []byte("p1"), quorum)
	require.True(t, advanced)
	require.Equal(t, Preparing, r.State())

	// A second, late prepare vote after the round already moved on does not
	// re-trigger a transition.
	advanced = r.RecordVote(PhasePrepare, peer(2), []byte("s2"), []byte("p2"), quorum)
	require.False(t, advanced)
}

func TestFullCascadeThroughAllPhases(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	quorum := 1

	require.True(t, r.RecordVote(PhasePrepare, peer(1), nil, nil, quorum))
	require.Equal(t, Preparing, r.State())

	require.True(t, r.RecordVote(PhasePreCommit, peer(1), nil, nil, quorum))
	require.Equal(t, PreCommitting, r.State())

	require.True(t, r.RecordVote(PhaseCommit, peer(1), nil, nil, quorum))
	require.Equal(t, Committing, r.State())

	r.Finalize()
	require.Equal(t, Finalized, r.State())
}

func TestTryAcceptProposalRejectsLowerOrEqualView(t *testing.T) {
	r := New(1, 5, types.Hash{1}, nil, time.Now())
	require.False(t, r.TryAcceptProposal(5, types.Hash{2}, nil, time.Now()))
	require.False(t, r.TryAcceptProposal(4, types.Hash{2}, nil, time.Now()))
}

func TestTryAcceptProposalResetsVoteSets(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	r.RecordVote(PhasePrepare, peer(1), nil, nil, 2)
	require.True(t, r.HasVoted(PhasePrepare, peer(1)))

	ok := r.TryAcceptProposal(2, types.Hash{2}, nil, time.Now())
	require.True(t, ok)
	require.False(t, r.HasVoted(PhasePrepare, peer(1)))
	require.Equal(t, uint64(2), r.View())
	require.Equal(t, types.Hash{2}, r.BlockHash())
}

func TestTryAcceptProposalFailsOnceBeyondProposing(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	r.RecordVote(PhasePrepare, peer(1), nil, nil, 1) // advances to Preparing
	require.False(t, r.TryAcceptProposal(2, types.Hash{2}, nil, time.Now()))
}

func TestStashAndTakeStash(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	r.Stash(5, PhasePrepare, peer(1), []byte("sig"), []byte("pub"))
	r.Stash(5, PhasePreCommit, peer(2), []byte("sig2"), []byte("pub2"))

	votes := r.TakeStash(5)
	require.Len(t, votes, 2)

	// taking again returns nothing
	require.Empty(t, r.TakeStash(5))
}

func TestAbortDoesNotTouchFinalizedRound(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	r.Finalize()
	r.Abort()
	require.Equal(t, Finalized, r.State())
}

func TestCommitBitmapReflectsVoterIndices(t *testing.T) {
	r := New(1, 1, types.Hash{1}, nil, time.Now())
	indexOf := func(p types.PeerID) int {
		switch p {
		case peer(1):
			return 0
		case peer(2):
			return 2
		default:
			return -1
		}
	}
	r.RecordVote(PhaseCommit, peer(1), []byte("s1"), []byte("p1"), 5)
	r.RecordVote(PhaseCommit, peer(2), []byte("s2"), []byte("p2"), 5)

	bm := r.CommitBitmap(indexOf)
	require.True(t, bm.IsSet(0))
	require.True(t, bm.IsSet(2))
	require.False(t, bm.IsSet(1))
}
