package slashing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Basalt-Foundation/basalt-consensus/staking"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestSlashDoubleSignTakesEverythingAndDeactivates(t *testing.T) {
	st := staking.New(staking.Config{MinValidatorStake: types.NewStake(10)})
	require.NoError(t, st.RegisterValidator(addr(1), types.NewStake(1000), 0))

	eng := New(st)
	eng.SlashDoubleSign(addr(1), 5, types.Hash{1}, types.Hash{2}, time.Now())

	info, _ := st.Get(addr(1))
	require.True(t, info.SelfStake.IsZero())
	require.False(t, info.IsActive)
	require.Len(t, eng.History(), 1)
	require.Equal(t, types.SlashDoubleSign, eng.History()[0].Reason)
}

func TestSlashInactivityTakesFivePercent(t *testing.T) {
	st := staking.New(staking.Config{MinValidatorStake: types.NewStake(10)})
	require.NoError(t, st.RegisterValidator(addr(1), types.NewStake(1000), 0))

	eng := New(st)
	eng.SlashInactivity(addr(1), 0, 100, time.Now())

	info, _ := st.Get(addr(1))
	require.Equal(t, types.NewStake(950), info.SelfStake)
}

func TestSlashInvalidBlockTakesOnePercent(t *testing.T) {
	st := staking.New(staking.Config{MinValidatorStake: types.NewStake(10)})
	require.NoError(t, st.RegisterValidator(addr(1), types.NewStake(1000), 0))

	eng := New(st)
	eng.SlashInvalidBlock(addr(1), 10, "bad block", time.Now())

	info, _ := st.Get(addr(1))
	require.Equal(t, types.NewStake(990), info.SelfStake)
}

func TestSlashUnknownValidatorIsNoop(t *testing.T) {
	st := staking.New(staking.Config{MinValidatorStake: types.NewStake(10)})
	eng := New(st)
	eng.SlashInvalidBlock(addr(9), 1, "irrelevant", time.Now())
	require.Empty(t, eng.History())
}

func TestDeductProportionalAcrossDelegatorsWithDustToLast(t *testing.T) {
	info := types.StakeInfo{
		SelfStake:      types.NewStake(0),
		DelegatedStake: types.NewStake(100),
		Delegators: map[types.Address]types.Stake{
			addr(1): types.NewStake(30),
			addr(2): types.NewStake(30),
			addr(3): types.NewStake(40),
		},
	}
	penalty := types.NewStake(100) // full delegated stake wiped out
	newSelf, newDelegated, deactivate := deduct(info, penalty)

	require.True(t, newSelf.IsZero())
	require.True(t, deactivate)
	require.True(t, newDelegated[addr(1)].IsZero())
	require.True(t, newDelegated[addr(2)].IsZero())
	require.True(t, newDelegated[addr(3)].IsZero())
}

func TestDeductPartialPenaltyFromSelfStakeOnly(t *testing.T) {
	info := types.StakeInfo{
		SelfStake:      types.NewStake(1000),
		DelegatedStake: types.NewStake(500),
		Delegators: map[types.Address]types.Stake{
			addr(1): types.NewStake(500),
		},
	}
	newSelf, newDelegated, deactivate := deduct(info, types.NewStake(100))
	require.Equal(t, types.NewStake(900), newSelf)
	require.Equal(t, types.NewStake(500), newDelegated[addr(1)])
	require.False(t, deactivate)
}

func TestDeductSpillsIntoDelegatorsProportionally(t *testing.T) {
	info := types.StakeInfo{
		SelfStake:      types.NewStake(100),
		DelegatedStake: types.NewStake(300),
		Delegators: map[types.Address]types.Stake{
			addr(1): types.NewStake(100),
			addr(2): types.NewStake(200),
		},
	}
	// penalty exceeds self stake by 60: spills proportionally into delegators
	newSelf, newDelegated, deactivate := deduct(info, types.NewStake(160))
	require.True(t, newSelf.IsZero())
	require.True(t, deactivate)
	// delegator 1 loses floor(100*60/300)=20, delegator 2 (last) absorbs the
	// remaining dust exactly.
	require.Equal(t, types.NewStake(80), newDelegated[addr(1)])
	require.Equal(t, types.NewStake(160), newDelegated[addr(2)])
}

func TestLessAddrOrdersByFirstDifferingByte(t *testing.T) {
	require.True(t, lessAddr(addr(1), addr(2)))
	require.False(t, lessAddr(addr(2), addr(1)))
	require.False(t, lessAddr(addr(1), addr(1)))
}
