// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

const signatureLength = 65

var (
	ErrInvalidSignature   = errors.New("malformed oracle signature")
	ErrUnknownSigner      = errors.New("signature from unknown oracle signer")
	ErrThresholdNotMet    = errors.New("oracle signature threshold not met")
	ErrInvalidThreshold   = errors.New("threshold must be positive")
	ErrDuplicateSignature = errors.New("duplicate oracle signer")
)

// SignerSet is the quorum of oracle signers whose attestations authenticate
// decryption results. A proof is valid when it carries threshold-many
// signatures from distinct registered signers over the same digest.
type SignerSet struct {
	mu        sync.RWMutex
	signers   map[common.Address]struct{}
	threshold int
}

// NewSignerSet creates an empty signer set with the given quorum threshold.
func NewSignerSet(threshold int) (*SignerSet, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	return &SignerSet{
		signers:   make(map[common.Address]struct{}),
		threshold: threshold,
	}, nil
}

// AddSigner registers a signer address.
func (s *SignerSet) AddSigner(addr common.Address) {
	s.mu.Lock()
	s.signers[addr] = struct{}{}
	s.mu.Unlock()
}

// Threshold returns the quorum size.
func (s *SignerSet) Threshold() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// VerifyProof checks a concatenation of 65-byte signatures over digest.
// Signatures from addresses outside the set, and repeat signatures from one
// signer, do not count towards the threshold.
func (s *SignerSet) VerifyProof(digest []byte, proof []byte) error {
	if len(proof) == 0 || len(proof)%signatureLength != 0 {
		return ErrInvalidSignature
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[common.Address]struct{})
	for off := 0; off < len(proof); off += signatureLength {
		sig := proof[off : off+signatureLength]
		pub, err := crypto.SigToPub(digest, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		addr := common.Address(crypto.PubkeyToAddress(*pub))
		if _, ok := s.signers[addr]; !ok {
			return ErrUnknownSigner
		}
		if _, ok := seen[addr]; ok {
			return ErrDuplicateSignature
		}
		seen[addr] = struct{}{}
	}

	if len(seen) < s.threshold {
		return ErrThresholdNotMet
	}
	return nil
}

// PublishDigest is the message oracle signers attest to when answering a
// leaderboard decryption request.
func PublishDigest(requestID [32]byte, winner common.Address, wins uint64) []byte {
	data := make([]byte, 0, 32+common.AddressLength+8)
	data = append(data, requestID[:]...)
	data = append(data, winner.Bytes()...)
	data = binary.BigEndian.AppendUint64(data, wins)
	return crypto.Keccak256(data)
}
