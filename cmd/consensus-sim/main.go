// Command consensus-sim drives a small in-process simulation of the
// consensus core: it registers a handful of validators, builds an epoch
// manager and a pipelined engine per node, and runs proposals through to
// finalization by passing messages directly between engines (no network
// transport), the way the teacher lineage's cmd/sim drivers exercise a
// core without standing up a full node.
package main

import (
	"flag"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Basalt-Foundation/basalt-consensus/bitmap"
	"github.com/Basalt-Foundation/basalt-consensus/config"
	"github.com/Basalt-Foundation/basalt-consensus/engine"
	"github.com/Basalt-Foundation/basalt-consensus/epoch"
	"github.com/Basalt-Foundation/basalt-consensus/leader"
	"github.com/Basalt-Foundation/basalt-consensus/logging"
	"github.com/Basalt-Foundation/basalt-consensus/metrics"
	"github.com/Basalt-Foundation/basalt-consensus/signing"
	"github.com/Basalt-Foundation/basalt-consensus/slashing"
	"github.com/Basalt-Foundation/basalt-consensus/staking"
	"github.com/Basalt-Foundation/basalt-consensus/types"
	"github.com/Basalt-Foundation/basalt-consensus/validatorset"
)

func main() {
	numValidators := flag.Int("validators", 4, "number of simulated validators")
	numBlocks := flag.Int("blocks", 8, "number of blocks to drive to finalization")
	flag.Parse()

	log := logging.New()
	log.Info("starting consensus simulation", "validators", *numValidators, "blocks", *numBlocks)

	cfg := config.NewBuilder().
		WithChainID(1).
		WithEpochLength(4).
		WithInactivityThresholdPercent(50).
		WithValidatorSetSize(uint32(*numValidators)).
		Build()

	stakingCfg := staking.Config{MinValidatorStake: types.NewStake(1), UnbondingPeriod: 10}
	st := staking.New(stakingCfg)

	type simNode struct {
		peerID types.PeerID
		addr   types.Address
		sk     []byte
	}
	nodes := make([]simNode, *numValidators)
	infos := make([]types.ValidatorInfo, *numValidators)

	for i := 0; i < *numValidators; i++ {
		ikm := make([]byte, 32)
		ikm[0] = byte(i + 1)
		pub, sk, err := signing.KeyGen(ikm)
		if err != nil {
			log.Error("keygen failed", "index", i, "err", err)
			return
		}

		var peerID types.PeerID
		peerID[0] = byte(i + 1)
		var addr types.Address
		addr[0] = byte(i + 1)

		stake := types.NewStake(uint64(100 * (i + 1)))
		if err := st.RegisterValidator(addr, stake, 0); err != nil {
			log.Error("register_validator failed", "addr", addr, "err", err)
			return
		}

		var blsPub types.BLSPubKey
		copy(blsPub[:], pub)

		nodes[i] = simNode{peerID: peerID, addr: addr, sk: sk}
		infos[i] = types.ValidatorInfo{
			PeerID:             peerID,
			Addr:               addr,
			AggregatePublicKey: blsPub,
			StakeAmt:           stake,
		}
	}

	set := validatorset.New(infos)
	set.SetLeaderSelector(leader.StakeWeighted)

	met := metrics.NewMetrics(prometheus.NewRegistry(), "consensus_sim")

	slasher := slashing.New(st).WithMetrics(met)
	epochMgr := epoch.New(epoch.Config{
		EpochLength:                cfg.EpochLength,
		InactivityThresholdPercent: cfg.InactivityThresholdPercent,
		ValidatorSetSize:           cfg.ValidatorSetSize,
	}, st, slasher, set).WithMetrics(met)

	engines := make([]*engine.Engine, *numValidators)
	peerIndex := make(map[types.PeerID]int, *numValidators)
	for i, n := range nodes {
		i := i
		peerIndex[n.peerID] = i
		engines[i] = engine.New(
			engine.Config{ChainID: cfg.ChainID, PipelineDepth: cfg.PipelineDepth, ViewTimeout: cfg.ViewTimeout},
			set, n.peerID, n.sk,
			engine.Callbacks{},
			engine.Events{
				OnFinalized: func(hash types.Hash, data []byte, bm bitmap.CommitBitmap) {},
				OnViewChange: func(view uint64) {
					log.Info("view change finalized", "node", i, "view", view)
				},
			},
			engine.WithLogger(log),
			engine.WithMetrics(met),
		)
	}

	for height := uint64(1); height <= uint64(*numBlocks); height++ {
		view := height
		if mnv := engines[0].Status().MinNextView; mnv > view {
			view = mnv
		}
		leaderInfo := set.Leader(view)
		leaderIdx, ok := peerIndex[leaderInfo.PeerID]
		if !ok {
			log.Warn("leader not found among local nodes", "height", height, "view", view)
			continue
		}
		hash := types.Hash{byte(height)}
		p := engines[leaderIdx].StartRound(height, []byte("block"), hash)
		if p == nil {
			log.Warn("leader could not start round", "height", height)
			continue
		}

		var pending []*engine.Vote
		for i := range engines {
			if i == leaderIdx {
				continue
			}
			if v := engines[i].HandleProposal(*p); v != nil {
				pending = append(pending, v)
			}
		}
		for round := 0; round < 8 && len(pending) > 0; round++ {
			next := pending
			pending = nil
			for _, v := range next {
				for i := range engines {
					if out := engines[i].HandleVote(*v); out != nil {
						pending = append(pending, out)
					}
				}
			}
		}

		if agg := engines[leaderIdx].AggregateSignature(height); agg != nil {
			log.Info("finalized block", "height", height, "aggregate_sig_len", len(agg))
			var bm bitmap.CommitBitmap
			for _, v := range set.Validators() {
				bm.Set(v.Index)
			}
			epochMgr.RecordBlockSigners(height, bm)
		}
		if newSet := epochMgr.OnBlockFinalized(height); newSet != nil {
			log.Info("epoch boundary reached", "height", height, "new_set_size", newSet.Count())
			newSet.SetLeaderSelector(leader.StakeWeighted)
			set = newSet
			for _, e := range engines {
				e.UpdateValidatorSet(newSet)
			}
		}
		for _, e := range engines {
			e.CleanupFinalizedRounds()
		}
	}

	time.Sleep(time.Millisecond) // let any deferred log writes flush
}
