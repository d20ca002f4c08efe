// Package signing implements the domain-separated canonical signing
// payloads and the BLS12-381 sign/verify/aggregate primitives the
// consensus round and view-change protocol build on, grounded on the
// blst-backed BLS adapter pattern in the retrieval pack
// (wyf-ACCEPT-eth2030/pkg/crypto/bls_blst_adapter.go): MinPk scheme,
// 48-byte compressed G1 public keys, 96-byte compressed G2 signatures.
package signing

import (
	"encoding/binary"
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// dst is the domain separation tag for the hash-to-curve used by every
// signature this package produces or verifies.
var dst = []byte("BASALT_CONSENSUS_BLS12381G2_XMD:SHA-256_SSWU_RO_")

// Phase tags for the consensus vote payload.
const (
	PhasePrepare   byte = 1
	PhasePreCommit byte = 2
	PhaseCommit    byte = 3

	viewChangeTag byte = 0xFF
)

// ConsensusVotePayloadLen is the fixed 53-byte vote payload encoding.
const ConsensusVotePayloadLen = 4 + 1 + 8 + 8 + 32

// ViewChangePayloadLen is the fixed 13-byte view-change payload encoding.
const ViewChangePayloadLen = 4 + 1 + 8

var (
	ErrInvalidSecretKey = errors.New("signing: invalid secret key bytes")
	ErrInvalidPublicKey = errors.New("signing: invalid public key bytes")
	ErrInvalidSignature = errors.New("signing: invalid signature bytes")
	ErrNoSignatures     = errors.New("signing: no signatures to aggregate")
	ErrAggregateFailed  = errors.New("signing: signature aggregation failed")
)

// EncodeVotePayload builds the 53-byte canonical Prepare/PreCommit/Commit
// signing payload: chain_id (u32 LE) || phase_tag || view (u64 LE) ||
// height (u64 LE) || block_hash (32 B).
func EncodeVotePayload(chainID uint32, phase byte, view, height uint64, blockHash [32]byte) []byte {
	buf := make([]byte, ConsensusVotePayloadLen)
	binary.LittleEndian.PutUint32(buf[0:4], chainID)
	buf[4] = phase
	binary.LittleEndian.PutUint64(buf[5:13], view)
	binary.LittleEndian.PutUint64(buf[13:21], height)
	copy(buf[21:53], blockHash[:])
	return buf
}

// DecodeVotePayload is the inverse of EncodeVotePayload, used by the
// round-trip law: the payload encoder is bijective.
func DecodeVotePayload(buf []byte) (chainID uint32, phase byte, view, height uint64, blockHash [32]byte, ok bool) {
	if len(buf) != ConsensusVotePayloadLen {
		return 0, 0, 0, 0, blockHash, false
	}
	chainID = binary.LittleEndian.Uint32(buf[0:4])
	phase = buf[4]
	view = binary.LittleEndian.Uint64(buf[5:13])
	height = binary.LittleEndian.Uint64(buf[13:21])
	copy(blockHash[:], buf[21:53])
	return chainID, phase, view, height, blockHash, true
}

// EncodeViewChangePayload builds the 13-byte view-change payload:
// chain_id (u32 LE) || 0xFF || proposed_view (u64 LE).
func EncodeViewChangePayload(chainID uint32, proposedView uint64) []byte {
	buf := make([]byte, ViewChangePayloadLen)
	binary.LittleEndian.PutUint32(buf[0:4], chainID)
	buf[4] = viewChangeTag
	binary.LittleEndian.PutUint64(buf[5:13], proposedView)
	return buf
}

// DecodeViewChangePayload is the inverse of EncodeViewChangePayload.
func DecodeViewChangePayload(buf []byte) (chainID uint32, proposedView uint64, ok bool) {
	if len(buf) != ViewChangePayloadLen || buf[4] != viewChangeTag {
		return 0, 0, false
	}
	chainID = binary.LittleEndian.Uint32(buf[0:4])
	proposedView = binary.LittleEndian.Uint64(buf[5:13])
	return chainID, proposedView, true
}

// KeyGen derives a BLS12-381 key pair from input key material (must be at
// least 32 bytes). Returns the compressed (48-byte) public key and the
// serialized (32-byte) secret key.
func KeyGen(ikm []byte) (pubkey, secretKey []byte, err error) {
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, nil, ErrInvalidSecretKey
	}
	pk := new(blst.P1Affine).From(sk)
	return pk.Compress(), sk.Serialize(), nil
}

// Sign signs payload with the given serialized secret key, returning a
// compressed 96-byte signature.
func Sign(secretKey, payload []byte) ([]byte, error) {
	sk := new(blst.SecretKey).Deserialize(secretKey)
	if sk == nil {
		return nil, ErrInvalidSecretKey
	}
	sig := new(blst.P2Affine).Sign(sk, payload, dst)
	if sig == nil {
		return nil, errors.New("signing: sign failed")
	}
	return sig.Compress(), nil
}

// Verify checks a single BLS signature over payload against pubkey.
func Verify(pubkey, payload, sig []byte) bool {
	if len(pubkey) == 0 || len(sig) == 0 {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, payload, dst)
}

// Aggregate combines multiple compressed signatures over the *same*
// payload into a single compressed aggregate signature over the
// verified per-phase signature list.
func Aggregate(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	agg := new(blst.P2Aggregate)
	if !agg.AggregateCompressed(sigs, true) {
		return nil, ErrAggregateFailed
	}
	return agg.ToAffine().Compress(), nil
}

// FastAggregateVerify verifies an aggregate signature against the ordered
// list of public keys that contributed to it, all over the same payload:
// the round-trip law a finalized round's aggregate commit signature must
// satisfy against its commit public-key list.
func FastAggregateVerify(pubkeys [][]byte, payload, aggSig []byte) bool {
	n := len(pubkeys)
	if n == 0 || len(aggSig) == 0 {
		return false
	}
	s := new(blst.P2Affine).Uncompress(aggSig)
	if s == nil {
		return false
	}
	pks := make([]*blst.P1Affine, n)
	for i, pkBytes := range pubkeys {
		pks[i] = new(blst.P1Affine).Uncompress(pkBytes)
		if pks[i] == nil {
			return false
		}
	}
	return s.FastAggregateVerify(true, pks, payload, dst)
}
