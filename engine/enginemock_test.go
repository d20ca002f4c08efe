package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Basalt-Foundation/basalt-consensus/engine/enginemock"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

func TestEngineCallbacksFromMocks(t *testing.T) {
	ctrl := gomock.NewController(t)

	nodes, set := mkNodes(t, 1)

	store := enginemock.NewMockCommitBitmapStore(ctrl)
	store.EXPECT().PersistCommitBitmap(uint64(1), gomock.Any()).Times(1)

	broadcaster := enginemock.NewMockBroadcaster(ctrl)
	// The single-validator cascade returns its PreCommit vote to the caller
	// and pushes the following Commit vote through Broadcast.
	broadcaster.EXPECT().Broadcast(gomock.Any()).Times(1)

	eng := New(
		Config{ChainID: 1, PipelineDepth: 3, ViewTimeout: time.Second},
		set, nodes[0].peerID, nodes[0].sk,
		CallbacksFrom(store, broadcaster),
		Events{},
	)

	p := eng.StartRound(1, []byte("block-1"), types.Hash{0xAA})
	require.NotNil(t, p)
	require.Equal(t, uint64(1), eng.Status().LastFinalizedBlock)
}

func TestCallbacksFromNilLeavesHooksUnset(t *testing.T) {
	c := CallbacksFrom(nil, nil)
	require.Nil(t, c.PersistCommitBitmap)
	require.Nil(t, c.Broadcast)
}
