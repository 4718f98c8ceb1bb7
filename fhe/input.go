// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Input proofs bind an externally produced ciphertext to the (caller,
// contract) pair it was encrypted for, so a ciphertext cannot be replayed by
// another caller or against another contract. The proof is a 65-byte
// secp256k1 signature over Keccak256(ciphertext || caller || contract); the
// recovered signer must be the caller itself.

const proofLen = 65

// inputDigest is the message the input proof signs.
func inputDigest(ct []byte, caller, contractAddr common.Address) []byte {
	data := make([]byte, 0, len(ct)+2*common.AddressLength)
	data = append(data, ct...)
	data = append(data, caller.Bytes()...)
	data = append(data, contractAddr.Bytes()...)
	return crypto.Keccak256(data)
}

// VerifyInput checks an external ciphertext's validity proof and, on success,
// stores the ciphertext and returns its handle. Any failure leaves the store
// untouched.
func VerifyInput(ct, proof []byte, caller, contractAddr common.Address, fheType uint8) (common.Hash, error) {
	if len(proof) != proofLen {
		return common.Hash{}, ErrInvalidProof
	}
	if _, err := deserializeBitCiphertext(ct); err != nil {
		return common.Hash{}, ErrInvalidCiphertext
	}

	pub, err := crypto.SigToPub(inputDigest(ct, caller, contractAddr), proof)
	if err != nil {
		return common.Hash{}, ErrInvalidProof
	}
	if common.Address(crypto.PubkeyToAddress(*pub)) != caller {
		return common.Hash{}, ErrInvalidProof
	}

	return ctStore.put(ct, fheType), nil
}

// EncryptInput encrypts a plaintext under the network key and signs the
// binding proof with [key]. This models the client-side SDK flow; the
// resulting (ciphertext, proof) pair is what VerifyInput accepts.
func EncryptInput(value uint64, fheType uint8, key *ecdsa.PrivateKey, contractAddr common.Address) (ct, proof []byte, err error) {
	ct, err = tfheTrivialEncrypt(new(big.Int).SetUint64(value), fheType)
	if err != nil {
		return nil, nil, err
	}

	caller := common.Address(crypto.PubkeyToAddress(key.PublicKey))
	proof, err = crypto.Sign(inputDigest(ct, caller, contractAddr), key)
	if err != nil {
		return nil, nil, err
	}
	return ct, proof, nil
}
