// Package leader implements the stake-weighted leader selector:
// select_leader(view) deterministically maps a view to a validator
// using a BLAKE3-derived seed and each validator's snapshotted stake
// weight. Grounded on the teacher lineage's weighted-sampling shape
// (utils/sampler.weightedWithoutReplacement) but replacing PRNG sampling
// with a deterministic seed-mod-totalWeight walk, since leader
// selection must be reproducible from (stake-snapshot, view) alone.
package leader

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/blake3"

	"github.com/Basalt-Foundation/basalt-consensus/types"
	"github.com/Basalt-Foundation/basalt-consensus/validatorset"
)

// Weight converts a 256-bit stake into a saturating 64-bit selection
// weight by scanning the stake's 8-byte chunks from the most significant
// end and returning the value of the first non-zero chunk, floored at 1
// (equivalent to scanning the little-endian representation
// from the MSB down; expressed here over the big-endian view so "most
// significant chunk first" is chunk index 0).
func Weight(stake types.Stake) uint64 {
	be := stake.Int().Bytes32() // 32-byte big-endian representation
	for chunk := 0; chunk < 4; chunk++ {
		off := chunk * 8
		v := binary.BigEndian.Uint64(be[off : off+8])
		if v != 0 {
			return v
		}
	}
	return 1
}

// saturatingAdd adds b to a, clamping at math.MaxUint64 instead of
// wrapping.
func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// seed returns the first 8 little-endian bytes of BLAKE3(view_LE_u64),
// interpreted as a little-endian u64.
func seed(view uint64) uint64 {
	var viewBytes [8]byte
	binary.LittleEndian.PutUint64(viewBytes[:], view)
	h := blake3.Sum256(viewBytes[:])
	return binary.LittleEndian.Uint64(h[:8])
}

// StakeWeighted returns a validatorset.LeaderSelector: select_leader(view).
// Falls back to round-robin when total weight is zero; since Weight floors
// every stake at 1, this does not happen for a non-empty set, and
// zero-stake validators are selected with weight 1. An empty set yields a
// zero ValidatorInfo.
func StakeWeighted(set *validatorset.Set, view uint64) types.ValidatorInfo {
	validators := set.Validators()
	n := uint64(len(validators))
	if n == 0 {
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
		return validators[view%n]
	}

	target := seed(view) % total
	var running uint64
	for i, w := range weights {
		running = saturatingAdd(running, w)
		if running > target {
			return validators[i]
		}
	}
	// Unreachable for a well-formed weight set; fall back defensively.
	return validators[len(validators)-1]
}
