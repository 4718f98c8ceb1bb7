// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestNewSignerSetRejectsBadThreshold(t *testing.T) {
	_, err := NewSignerSet(0)
	require.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = NewSignerSet(-1)
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestVerifyProof(t *testing.T) {
	localOracle, err := NewLocalOracle(3, 2)
	require.NoError(t, err)
	set := localOracle.SignerSet()
	require.Equal(t, 2, set.Threshold())

	var requestID [32]byte
	requestID[0] = 0xab
	winner := common.HexToAddress("0x01")
	digest := PublishDigest(requestID, winner, 7)

	sign := func(i int) []byte {
		sig, err := crypto.Sign(digest, localOracle.keys[i])
		require.NoError(t, err)
		return sig
	}

	t.Run("quorum", func(t *testing.T) {
		proof := append(sign(0), sign(1)...)
		require.NoError(t, set.VerifyProof(digest, proof))
	})

	t.Run("full set", func(t *testing.T) {
		proof := append(append(sign(0), sign(1)...), sign(2)...)
		require.NoError(t, set.VerifyProof(digest, proof))
	})

	t.Run("below threshold", func(t *testing.T) {
		require.ErrorIs(t, set.VerifyProof(digest, sign(0)), ErrThresholdNotMet)
	})

	t.Run("duplicate signer", func(t *testing.T) {
		proof := append(sign(0), sign(0)...)
		require.ErrorIs(t, set.VerifyProof(digest, proof), ErrDuplicateSignature)
	})

	t.Run("unknown signer", func(t *testing.T) {
		strangerKey, err := crypto.GenerateKey()
		require.NoError(t, err)
		strangerSig, err := crypto.Sign(digest, strangerKey)
		require.NoError(t, err)
		proof := append(sign(0), strangerSig...)
		require.ErrorIs(t, set.VerifyProof(digest, proof), ErrUnknownSigner)
	})

	t.Run("empty proof", func(t *testing.T) {
		require.ErrorIs(t, set.VerifyProof(digest, nil), ErrInvalidSignature)
	})

	t.Run("ragged proof", func(t *testing.T) {
		require.ErrorIs(t, set.VerifyProof(digest, sign(0)[:40]), ErrInvalidSignature)
	})

	t.Run("wrong digest", func(t *testing.T) {
		otherDigest := PublishDigest(requestID, winner, 8)
		proof := append(sign(0), sign(1)...)
		// Recovery against a different digest yields addresses outside the set
		require.Error(t, set.VerifyProof(otherDigest, proof))
	})
}

func TestPublishDigestBindsAllFields(t *testing.T) {
	var requestID [32]byte
	winner := common.HexToAddress("0x01")

	base := PublishDigest(requestID, winner, 1)

	var otherID [32]byte
	otherID[31] = 1
	require.NotEqual(t, base, PublishDigest(otherID, winner, 1))
	require.NotEqual(t, base, PublishDigest(requestID, common.HexToAddress("0x02"), 1))
	require.NotEqual(t, base, PublishDigest(requestID, winner, 2))
}
