// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle implements the off-chain decryption service for the
// confidential game. The game surrenders ciphertext handles to the gateway
// address, the oracle decrypts them and answers with a quorum-signed proof
// the game verifies in its callback.
package oracle

import (
	"crypto/ecdsa"
	"errors"

	"github.com/parsdao/ropasci/fhe"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// GatewayAddress is the reserved gateway identity handles are surrendered
// to. It sits in the oracle gateway range, below any deployable contract.
var GatewayAddress = common.HexToAddress("0x0800000000000000000000000000000000000001")

var ErrNoSigners = errors.New("oracle requires at least one signer key")

// LocalOracle is an in-process decryption oracle: it holds the signer keys
// itself and fulfills requests synchronously. It stands in for the external
// gateway service in tests and the demo server.
type LocalOracle struct {
	keys []*ecdsa.PrivateKey
	set  *SignerSet
	log  log.Logger
}

// NewLocalOracle generates n signer keys and a signer set with the given
// threshold.
func NewLocalOracle(n, threshold int) (*LocalOracle, error) {
	if n <= 0 {
		return nil, ErrNoSigners
	}
	set, err := NewSignerSet(threshold)
	if err != nil {
		return nil, err
	}

	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		keys[i] = key
		set.AddSigner(common.Address(crypto.PubkeyToAddress(key.PublicKey)))
	}

	return &LocalOracle{
		keys: keys,
		set:  set,
		log:  log.NewTestLogger(log.InfoLevel),
	}, nil
}

// SignerSet returns the set callbacks should be verified against.
func (o *LocalOracle) SignerSet() *SignerSet {
	return o.set
}

// Fulfill decrypts the surrendered leaderboard handles as the gateway and
// signs the result with every signer key. The returned proof satisfies the
// signer set's threshold.
func (o *LocalOracle) Fulfill(requestID [32]byte, addrHandle, winsHandle common.Hash) (winner common.Address, wins uint64, proof []byte, err error) {
	winner, err = fhe.DecryptAddress(addrHandle, GatewayAddress)
	if err != nil {
		return common.Address{}, 0, nil, err
	}
	winsValue, err := fhe.Decrypt(winsHandle, GatewayAddress)
	if err != nil {
		return common.Address{}, 0, nil, err
	}
	wins = winsValue.Uint64()

	digest := PublishDigest(requestID, winner, wins)
	proof = make([]byte, 0, len(o.keys)*signatureLength)
	for _, key := range o.keys {
		sig, err := crypto.Sign(digest, key)
		if err != nil {
			return common.Address{}, 0, nil, err
		}
		proof = append(proof, sig...)
	}

	o.log.Info("decryption request fulfilled",
		"requestID", common.Hash(requestID),
		"winner", winner,
		"wins", wins,
		"signatures", len(o.keys),
	)

	return winner, wins, proof, nil
}
