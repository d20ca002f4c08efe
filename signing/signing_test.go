package signing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T, seed byte) (pub, sk []byte) {
	t.Helper()
	ikm := make([]byte, 32)
	for i := range ikm {
		ikm[i] = seed
	}
	pub, sk, err := KeyGen(ikm)
	require.NoError(t, err)
	return pub, sk
}

func TestVotePayloadRoundTrip(t *testing.T) {
	hash := [32]byte{1, 2, 3}
	buf := EncodeVotePayload(7, PhasePreCommit, 42, 99, hash)
	require.Len(t, buf, ConsensusVotePayloadLen)

	chainID, phase, view, height, gotHash, ok := DecodeVotePayload(buf)
	require.True(t, ok)
	require.Equal(t, uint32(7), chainID)
	require.Equal(t, PhasePreCommit, phase)
	require.Equal(t, uint64(42), view)
	require.Equal(t, uint64(99), height)
	require.Equal(t, hash, gotHash)
}

func TestViewChangePayloadRoundTrip(t *testing.T) {
	buf := EncodeViewChangePayload(3, 555)
	require.Len(t, buf, ViewChangePayloadLen)

	chainID, view, ok := DecodeViewChangePayload(buf)
	require.True(t, ok)
	require.Equal(t, uint32(3), chainID)
	require.Equal(t, uint64(555), view)
}

func TestDecodeVotePayloadRejectsWrongLength(t *testing.T) {
	_, _, _, _, _, ok := DecodeVotePayload([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestSignAndVerify(t *testing.T) {
	pub, sk := genKey(t, 0x11)
	payload := EncodeVotePayload(1, PhaseCommit, 1, 1, [32]byte{9})

	sig, err := Sign(sk, payload)
	require.NoError(t, err)
	require.True(t, Verify(pub, payload, sig))

	otherPayload := EncodeVotePayload(1, PhaseCommit, 2, 1, [32]byte{9})
	require.False(t, Verify(pub, otherPayload, sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, sk := genKey(t, 0x01)
	otherPub, _ := genKey(t, 0x02)
	payload := EncodeVotePayload(1, PhasePrepare, 1, 1, [32]byte{})

	sig, err := Sign(sk, payload)
	require.NoError(t, err)
	require.False(t, Verify(otherPub, payload, sig))
}

func TestAggregateAndFastAggregateVerify(t *testing.T) {
	payload := EncodeVotePayload(1, PhaseCommit, 10, 10, [32]byte{5, 5, 5})

	var pubs, sigs [][]byte
	for i := byte(1); i <= 4; i++ {
		pub, sk := genKey(t, i)
		sig, err := Sign(sk, payload)
		require.NoError(t, err)
		pubs = append(pubs, pub)
		sigs = append(sigs, sig)
	}

	agg, err := Aggregate(sigs)
	require.NoError(t, err)
	require.True(t, FastAggregateVerify(pubs, payload, agg))
}

func TestAggregateEmptyFails(t *testing.T) {
	_, err := Aggregate(nil)
	require.ErrorIs(t, err, ErrNoSignatures)
}

func TestFastAggregateVerifyRejectsTamperedSet(t *testing.T) {
	payload := EncodeVotePayload(1, PhaseCommit, 10, 10, [32]byte{})
	pub1, sk1 := genKey(t, 0xA1)
	_, sk2 := genKey(t, 0xA2)

	sig1, err := Sign(sk1, payload)
	require.NoError(t, err)
	sig2, err := Sign(sk2, payload)
	require.NoError(t, err)

	agg, err := Aggregate([][]byte{sig1, sig2})
	require.NoError(t, err)

	// Verifying against only one of the two contributing pubkeys must fail.
	require.False(t, FastAggregateVerify([][]byte{pub1}, payload, agg))
}
