package leader

import (
	"math/rand"

	"github.com/Basalt-Foundation/basalt-consensus/types"
	"github.com/Basalt-Foundation/basalt-consensus/validatorset"
)

// SimulationSampler returns a validatorset.LeaderSelector for testing and
// simulation only, grounded on the teacher lineage's
// utils/sampler.weightedWithoutReplacement: it samples a validator with
// probability proportional to stake weight using a seeded PRNG rather than
// the deterministic BLAKE3 walk StakeWeighted uses. It must never be used
// in production since two honest nodes seeding independently would
// disagree on the leader.
func SimulationSampler(seed int64) validatorset.LeaderSelector {
	rng := rand.New(rand.NewSource(seed))
	return func(set *validatorset.Set, view uint64) types.ValidatorInfo {
		validators := set.Validators()
		if len(validators) == 0 {
			return types.ValidatorInfo{}
		}
		var total uint64
		weights := make([]uint64, len(validators))
		for i, v := range validators {
			w := Weight(v.StakeAmt)
			weights[i] = w
			total = saturatingAdd(total, w)
		}
		if total == 0 {
			return validators[uint64(rng.Int63())%uint64(len(validators))]
		}
		target := uint64(rng.Int63()) % total
		var running uint64
		for i, w := range weights {
			running = saturatingAdd(running, w)
			if running > target {
				return validators[i]
			}
		}
		return validators[len(validators)-1]
	}
}
