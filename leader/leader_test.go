package leader

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Basalt-Foundation/basalt-consensus/types"
	"github.com/Basalt-Foundation/basalt-consensus/validatorset"
)

func mkValidator(addr byte, stake uint64) types.ValidatorInfo {
	var a types.Address
	a[0] = addr
	var p types.PeerID
	p[0] = addr
	return types.ValidatorInfo{Addr: a, PeerID: p, StakeAmt: types.NewStake(stake)}
}

func TestWeightFloorsAtOne(t *testing.T) {
	require.Equal(t, uint64(1), Weight(types.NewStake(0)))
}

func TestWeightSaturatesAtMaxUint256(t *testing.T) {
	max := uint256.NewInt(0)
	max.Not(max)
	w := Weight(types.NewStakeFromUint256(max))
	require.Equal(t, uint64(math.MaxUint64), w)
}

func TestWeightSmallValue(t *testing.T) {
	require.Equal(t, uint64(42), Weight(types.NewStake(42)))
}

func TestSaturatingAddClampsInsteadOfWrapping(t *testing.T) {
	require.Equal(t, uint64(math.MaxUint64), saturatingAdd(math.MaxUint64-1, 5))
}

func TestStakeWeightedIsDeterministic(t *testing.T) {
	set := validatorset.New([]types.ValidatorInfo{
		mkValidator(1, 100), mkValidator(2, 200), mkValidator(3, 700),
	})
	a := StakeWeighted(set, 17)
	b := StakeWeighted(set, 17)
	require.Equal(t, a.Addr, b.Addr)
}

func TestStakeWeightedAllZeroStakesReturnsSetMember(t *testing.T) {
	set := validatorset.New([]types.ValidatorInfo{
		mkValidator(1, 0), mkValidator(2, 0),
	})
	// all weights floor to 1 (never truly zero by construction), so this
	// exercises the floored-weight path instead; confirm it still returns a
	// valid member of the set deterministically.
	a := StakeWeighted(set, 5)
	found := false
	for _, v := range set.Validators() {
		if v.Addr == a.Addr {
			found = true
		}
	}
	require.True(t, found)
}

func TestStakeWeightedSingleValidatorAlwaysWins(t *testing.T) {
	set := validatorset.New([]types.ValidatorInfo{mkValidator(1, 1)})
	for view := uint64(0); view < 10; view++ {
		got := StakeWeighted(set, view)
		require.Equal(t, byte(1), got.Addr[0])
	}
}

func TestSimulationSamplerReturnsSetMember(t *testing.T) {
	set := validatorset.New([]types.ValidatorInfo{
		mkValidator(1, 10), mkValidator(2, 90),
	})
	sel := SimulationSampler(42)
	got := sel(set, 0)
	found := false
	for _, v := range set.Validators() {
		if v.Addr == got.Addr {
			found = true
		}
	}
	require.True(t, found)
}
