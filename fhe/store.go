// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// store holds every live ciphertext, keyed by handle, together with its type
// tag and the set of principals allowed to decrypt it.
type store struct {
	mu          sync.RWMutex
	ciphertexts map[common.Hash][]byte
	types       map[common.Hash]uint8
	allowed     map[common.Hash]map[common.Address]struct{}
}

var ctStore = &store{
	ciphertexts: make(map[common.Hash][]byte),
	types:       make(map[common.Hash]uint8),
	allowed:     make(map[common.Hash]map[common.Address]struct{}),
}

// handleOf derives the opaque handle for a ciphertext.
func handleOf(ct []byte) common.Hash {
	return common.Hash(blake3.Sum256(ct))
}

func (s *store) put(ct []byte, fheType uint8) common.Hash {
	handle := handleOf(ct)
	s.mu.Lock()
	s.ciphertexts[handle] = ct
	s.types[handle] = fheType
	s.mu.Unlock()
	return handle
}

func (s *store) get(handle common.Hash) ([]byte, uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, ok := s.ciphertexts[handle]
	if !ok {
		return nil, 0, false
	}
	return ct, s.types[handle], true
}

// Allow grants [principal] the right to decrypt [handle]. Grants are
// monotonic: there is no revocation.
func Allow(handle common.Hash, principal common.Address) {
	ctStore.mu.Lock()
	defer ctStore.mu.Unlock()
	set, ok := ctStore.allowed[handle]
	if !ok {
		set = make(map[common.Address]struct{})
		ctStore.allowed[handle] = set
	}
	set[principal] = struct{}{}
}

// IsAllowed reports whether [principal] may decrypt [handle].
func IsAllowed(handle common.Hash, principal common.Address) bool {
	ctStore.mu.RLock()
	defer ctStore.mu.RUnlock()
	_, ok := ctStore.allowed[handle][principal]
	return ok
}

// Exists reports whether [handle] refers to a live ciphertext.
func Exists(handle common.Hash) bool {
	ctStore.mu.RLock()
	defer ctStore.mu.RUnlock()
	_, ok := ctStore.ciphertexts[handle]
	return ok
}

// TypeOf returns the type tag of [handle].
func TypeOf(handle common.Hash) (uint8, bool) {
	ctStore.mu.RLock()
	defer ctStore.mu.RUnlock()
	t, ok := ctStore.types[handle]
	return t, ok
}

// Reset drops every ciphertext and access grant. Test hook.
func Reset() {
	ctStore.mu.Lock()
	defer ctStore.mu.Unlock()
	ctStore.ciphertexts = make(map[common.Hash][]byte)
	ctStore.types = make(map[common.Hash]uint8)
	ctStore.allowed = make(map[common.Hash]map[common.Address]struct{})
}

func binaryOp(a, b common.Hash, op func(lhs, rhs []byte) ([]byte, error), resultType func(uint8) uint8) (common.Hash, error) {
	lhs, lhsType, ok := ctStore.get(a)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	rhs, rhsType, ok := ctStore.get(b)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	if lhsType != rhsType {
		return common.Hash{}, ErrTypeMismatch
	}

	result, err := op(lhs, rhs)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(result, resultType(lhsType)), nil
}

func sameType(t uint8) uint8 { return t }
func boolType(uint8) uint8 { return TypeEbool }

// Add returns a handle to the homomorphic sum of two ciphertexts.
func Add(a, b common.Hash) (common.Hash, error) {
	return binaryOp(a, b, tfheAdd, sameType)
}

// Sub returns a handle to the homomorphic difference of two ciphertexts.
func Sub(a, b common.Hash) (common.Hash, error) {
	return binaryOp(a, b, tfheSub, sameType)
}

// ScalarAdd adds a plaintext scalar to a ciphertext.
func ScalarAdd(a common.Hash, scalar uint64) (common.Hash, error) {
	ct, fheType, ok := ctStore.get(a)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	result, err := tfheScalarAdd(ct, scalar)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(result, fheType), nil
}

// ScalarRem reduces a ciphertext modulo a plaintext scalar.
func ScalarRem(a common.Hash, scalar uint64) (common.Hash, error) {
	ct, fheType, ok := ctStore.get(a)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	result, err := tfheScalarRem(ct, scalar, fheType)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(result, fheType), nil
}

// Eq returns an encrypted boolean [a] == [b].
func Eq(a, b common.Hash) (common.Hash, error) {
	return binaryOp(a, b, tfheEq, boolType)
}

// Gt returns an encrypted boolean [a] > [b].
func Gt(a, b common.Hash) (common.Hash, error) {
	return binaryOp(a, b, tfheGt, boolType)
}

// Select obliviously picks [ifTrue] or [ifFalse] under the encrypted boolean
// [cond]. Both branch ciphertexts are consumed; nothing about the condition
// leaks into which handle is produced.
func Select(cond, ifTrue, ifFalse common.Hash) (common.Hash, error) {
	control, condType, ok := ctStore.get(cond)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	if condType != TypeEbool {
		return common.Hash{}, ErrTypeMismatch
	}
	lhs, lhsType, ok := ctStore.get(ifTrue)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	rhs, rhsType, ok := ctStore.get(ifFalse)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	if lhsType != rhsType {
		return common.Hash{}, ErrTypeMismatch
	}

	result, err := tfheSelect(control, lhs, rhs)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(result, lhsType), nil
}

// CastBool widens an encrypted boolean into an integer ciphertext of the
// given type carrying 0 or 1.
func CastBool(cond common.Hash, toType uint8) (common.Hash, error) {
	bit, condType, ok := ctStore.get(cond)
	if !ok {
		return common.Hash{}, ErrInvalidCiphertext
	}
	if condType != TypeEbool {
		return common.Hash{}, ErrTypeMismatch
	}
	result, err := tfheCastBool(bit, toType)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(result, toType), nil
}

// AsEuint8 trivially encrypts a plaintext byte.
func AsEuint8(v uint8) (common.Hash, error) {
	ct, err := tfheTrivialEncrypt(new(big.Int).SetUint64(uint64(v)), TypeEuint8)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(ct, TypeEuint8), nil
}

// AsEuint32 trivially encrypts a plaintext uint32.
func AsEuint32(v uint32) (common.Hash, error) {
	ct, err := tfheTrivialEncrypt(new(big.Int).SetUint64(uint64(v)), TypeEuint32)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(ct, TypeEuint32), nil
}

// AsEaddress trivially encrypts an address.
func AsEaddress(addr common.Address) (common.Hash, error) {
	ct, err := tfheTrivialEncrypt(new(big.Int).SetBytes(addr.Bytes()), TypeEaddress)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(ct, TypeEaddress), nil
}

// Random returns a handle to a fresh pseudo-random ciphertext of the given
// type, deterministic under [seed].
func Random(fheType uint8, seed uint64) (common.Hash, error) {
	ct, err := tfheRandom(fheType, seed)
	if err != nil {
		return common.Hash{}, err
	}
	return ctStore.put(ct, fheType), nil
}

// Decrypt reveals the plaintext behind [handle] to [requester]. It fails
// with ErrUnauthorized unless the requester holds a grant on the handle.
func Decrypt(handle common.Hash, requester common.Address) (*big.Int, error) {
	if !IsAllowed(handle, requester) {
		return nil, ErrUnauthorized
	}
	ct, fheType, ok := ctStore.get(handle)
	if !ok {
		return nil, ErrInvalidCiphertext
	}
	return tfheDecrypt(ct, fheType)
}

// DecryptAddress is Decrypt for eaddress handles.
func DecryptAddress(handle common.Hash, requester common.Address) (common.Address, error) {
	fheType, ok := TypeOf(handle)
	if !ok {
		return common.Address{}, ErrInvalidCiphertext
	}
	if fheType != TypeEaddress {
		return common.Address{}, ErrTypeMismatch
	}
	plaintext, err := Decrypt(handle, requester)
	if err != nil {
		return common.Address{}, err
	}
	return common.BigToAddress(plaintext), nil
}
