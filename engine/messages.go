// Package engine implements the Pipelined BFT Engine: the
// orchestrator-facing contract that owns up to D concurrent rounds,
// enforces sequential finalization, drives view changes, and detects
// "behind". Grounded on the teacher lineage's thin-wrapper engine shape
// (engine/bft/wrapper.go, messages.go) and on the reference BFT engine in
// the retrieval pack (nhbchain bft.go) for round/vote/timeout bookkeeping,
// generalized to pipeline-depth and view-discipline semantics of its own.
package engine

import (
	"time"

	"github.com/Basalt-Foundation/basalt-consensus/round"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

// Proposal is the wire Proposal message exchanged between nodes.
type Proposal struct {
	SenderID    types.PeerID
	Timestamp   uint64 // ms
	View        uint64
	Height      uint64
	BlockHash   types.Hash
	BlockData   []byte
	ProposerSig []byte // 96 B BLS
}

// Vote is the wire Vote message exchanged between nodes.
type Vote struct {
	SenderID  types.PeerID
	Timestamp uint64
	View      uint64
	Height    uint64
	BlockHash types.Hash
	Phase     round.Phase
	VoterSig  []byte // 96 B
	VoterPub  []byte // 48 B
}

// ViewChange is the wire ViewChange message exchanged between nodes.
type ViewChange struct {
	SenderID     types.PeerID
	Timestamp    uint64
	CurrentView  uint64
	ProposedView uint64
	VoterSig     []byte
	VoterPub     []byte
}

// FinalizationEvent is the internal, orchestrator-facing finalization
// payload delivered to the orchestrator.
type FinalizationEvent struct {
	BlockHash    types.Hash
	BlockData    []byte
	CommitBitmap uint64
}

// nowMillis converts t to milliseconds since the Unix epoch, the unit of
// the wire messages' Timestamp field.
func nowMillis(t time.Time) uint64 {
	return uint64(t.UnixMilli())
}
