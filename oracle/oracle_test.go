// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"testing"

	"github.com/parsdao/ropasci/fhe"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestNewLocalOracleRejectsNoKeys(t *testing.T) {
	_, err := NewLocalOracle(0, 1)
	require.ErrorIs(t, err, ErrNoSigners)
}

// TestFulfill decrypts gateway-surrendered handles and checks the proof it
// produces verifies against the oracle's own signer set.
func TestFulfill(t *testing.T) {
	fhe.Reset()

	localOracle, err := NewLocalOracle(2, 2)
	require.NoError(t, err)

	// Only the low eight bytes of an address survive the 64-bit plaintext
	// path, so the test winner keeps its high bytes zero.
	winnerAddr := common.HexToAddress("0x0000000000000000000000000000000000abcdef")
	addrHandle, err := fhe.AsEaddress(winnerAddr)
	require.NoError(t, err)
	winsHandle, err := fhe.AsEuint32(4)
	require.NoError(t, err)

	var requestID [32]byte
	requestID[0] = 0x01

	// Handles not surrendered to the gateway yet
	_, _, _, err = localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.ErrorIs(t, err, fhe.ErrUnauthorized)

	fhe.Allow(addrHandle, GatewayAddress)
	fhe.Allow(winsHandle, GatewayAddress)

	winner, wins, proof, err := localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)
	require.Equal(t, winnerAddr, winner)
	require.Equal(t, uint64(4), wins)

	digest := PublishDigest(requestID, winner, wins)
	require.NoError(t, localOracle.SignerSet().VerifyProof(digest, proof))
}
