package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestStakeArithmetic(t *testing.T) {
	a := NewStake(100)
	b := NewStake(40)

	require.Equal(t, NewStake(140), a.Add(b))
	require.Equal(t, NewStake(60), a.Sub(b))
	require.Equal(t, 1, a.Cmp(b))
	require.Equal(t, -1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(NewStake(100)))
	require.False(t, a.IsZero())
	require.True(t, NewStake(0).IsZero())
}

func TestStakeMulDivFloor(t *testing.T) {
	s := NewStake(100)
	got := s.MulDivFloor(NewStake(5), NewStake(100))
	require.Equal(t, NewStake(5), got)

	// floor, not round
	s2 := NewStake(7)
	got2 := s2.MulDivFloor(NewStake(1), NewStake(3))
	require.Equal(t, NewStake(2), got2)
}

func TestStakeMulDivFloorZeroDenominator(t *testing.T) {
	s := NewStake(100)
	require.True(t, s.MulDivFloor(NewStake(1), NewStake(0)).IsZero())
}

func TestStakeFromUint256Max(t *testing.T) {
	max := uint256.NewInt(0)
	max.Not(max) // all ones: 2^256 - 1
	s := NewStakeFromUint256(max)
	require.Equal(t, max.String(), s.Int().String())
}

func TestStakeInfoTotalStake(t *testing.T) {
	info := StakeInfo{
		SelfStake:      NewStake(10),
		DelegatedStake: NewStake(5),
	}
	require.Equal(t, NewStake(15), info.TotalStake())
}

func TestSlashReasonString(t *testing.T) {
	require.Equal(t, "double_sign", SlashDoubleSign.String())
	require.Equal(t, "inactivity", SlashInactivity.String())
	require.Equal(t, "invalid_block", SlashInvalidBlock.String())
	require.Equal(t, "unknown", SlashReason(99).String())
}
