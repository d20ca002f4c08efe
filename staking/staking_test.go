package staking

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Basalt-Foundation/basalt-consensus/errs"
	"github.com/Basalt-Foundation/basalt-consensus/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func newTestState() *State {
	return New(Config{MinValidatorStake: types.NewStake(100), UnbondingPeriod: 10})
}

func TestRegisterValidatorBelowMinimumFails(t *testing.T) {
	s := newTestState()
	err := s.RegisterValidator(addr(1), types.NewStake(50), 1)
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestRegisterValidatorDuplicateFails(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 1))
	err := s.RegisterValidator(addr(1), types.NewStake(200), 2)
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestAddStakeReactivatesValidator(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 1))
	require.NoError(t, s.InitiateUnstake(addr(1), types.NewStake(100), 1))

	info, ok := s.Get(addr(1))
	require.True(t, ok)
	require.False(t, info.IsActive)

	require.NoError(t, s.AddStake(addr(1), types.NewStake(150)))
	info, _ = s.Get(addr(1))
	require.True(t, info.IsActive)
}

func TestDelegateAccumulatesPerDelegator(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 1))
	require.NoError(t, s.Delegate(addr(2), addr(1), types.NewStake(30)))
	require.NoError(t, s.Delegate(addr(2), addr(1), types.NewStake(20)))

	info, _ := s.Get(addr(1))
	require.Equal(t, types.NewStake(50), info.Delegators[addr(2)])
	require.Equal(t, types.NewStake(50), info.DelegatedStake)
	require.Equal(t, types.NewStake(150), info.TotalStake())
}

func TestInitiateUnstakeRejectsDustRemainder(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(150), 1))
	err := s.InitiateUnstake(addr(1), types.NewStake(100), 1)
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestInitiateUnstakeFullAmountDeactivates(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 1))
	require.NoError(t, s.InitiateUnstake(addr(1), types.NewStake(100), 5))

	info, _ := s.Get(addr(1))
	require.True(t, info.SelfStake.IsZero())
	require.False(t, info.IsActive)
}

func TestProcessUnbondingReleasesMaturedEntries(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(200), 0))
	require.NoError(t, s.InitiateUnstake(addr(1), types.NewStake(100), 0))

	require.Empty(t, s.ProcessUnbonding(5))
	released := s.ProcessUnbonding(10)
	require.Len(t, released, 1)
	require.Equal(t, types.NewStake(100), released[0].Amount)

	// already drained
	require.Empty(t, s.ProcessUnbonding(10))
}

func TestGetActiveValidatorsSortedByStakeDescending(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 0))
	require.NoError(t, s.RegisterValidator(addr(2), types.NewStake(300), 0))
	require.NoError(t, s.RegisterValidator(addr(3), types.NewStake(200), 0))

	active := s.GetActiveValidators()
	require.Len(t, active, 3)
	require.Equal(t, addr(2), active[0].Addr)
	require.Equal(t, addr(3), active[1].Addr)
	require.Equal(t, addr(1), active[2].Addr)
}

func TestGetActiveValidatorsExcludesInactive(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 0))
	require.NoError(t, s.InitiateUnstake(addr(1), types.NewStake(100), 0))

	require.Empty(t, s.GetActiveValidators())
}

func TestApplyPenaltyDeactivatesBelowMinimum(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 0))
	s.ApplyPenalty(addr(1), types.NewStake(50), map[types.Address]types.Stake{}, false)

	info, _ := s.Get(addr(1))
	require.False(t, info.IsActive)
	require.Equal(t, types.NewStake(50), info.SelfStake)
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.RegisterValidator(addr(1), types.NewStake(100), 0))
	require.NoError(t, s.Delegate(addr(2), addr(1), types.NewStake(10)))

	info, _ := s.Get(addr(1))
	info.Delegators[addr(3)] = types.NewStake(999)

	fresh, _ := s.Get(addr(1))
	_, tampered := fresh.Delegators[addr(3)]
	require.False(t, tampered)
}
