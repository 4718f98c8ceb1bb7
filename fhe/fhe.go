// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe wraps the TFHE bitwise runtime behind a handle-based API.
// Ciphertexts live in a process-wide store keyed by an opaque handle; every
// operation consumes handles and produces a fresh handle. Decryption of a
// handle is gated by a per-handle access list, so a handle may circulate
// publicly while its plaintext stays restricted to authorized principals.
package fhe

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/fhe"
)

// Ciphertext type constants - must match github.com/luxfi/fhe FheUintType
const (
	TypeEbool    uint8 = 0 // FheBool - 1 bit
	TypeEuint8   uint8 = 2 // FheUint8 - 8 bits
	TypeEuint16  uint8 = 3 // FheUint16 - 16 bits
	TypeEuint32  uint8 = 4 // FheUint32 - 32 bits
	TypeEuint64  uint8 = 5 // FheUint64 - 64 bits
	TypeEaddress uint8 = 7 // FheUint160 - Ethereum addresses
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext handle")
	ErrTypeMismatch      = errors.New("ciphertext type mismatch")
	ErrOperationFailed   = errors.New("FHE operation failed")
	ErrUnauthorized      = errors.New("caller not authorized to decrypt handle")
	ErrInvalidProof      = errors.New("input proof verification failed")
)

var (
	// Singleton TFHE components
	tfheOnce  sync.Once
	evaluator *fhe.BitwiseEvaluator
	encryptor *fhe.BitwiseEncryptor
	decryptor *fhe.BitwiseDecryptor
	secretKey *fhe.SecretKey
	publicKey *fhe.PublicKey
	params    fhe.Parameters
	initErr   error
)

// initTFHE initializes the TFHE components once per process.
func initTFHE() error {
	tfheOnce.Do(func() {
		var err error

		params, err = fhe.NewParametersFromLiteral(fhe.PN10QP27)
		if err != nil {
			initErr = err
			return
		}

		kg := fhe.NewKeyGenerator(params)
		secretKey, publicKey = kg.GenKeyPair()
		bsk := kg.GenBootstrapKey(secretKey)

		encryptor = fhe.NewBitwiseEncryptor(params, secretKey)
		decryptor = fhe.NewBitwiseDecryptor(params, secretKey)
		evaluator = fhe.NewBitwiseEvaluator(params, bsk, secretKey)
	})

	return initErr
}

// fheTypeToTFHEType converts a type constant to the runtime's FheUintType.
func fheTypeToTFHEType(fheType uint8) fhe.FheUintType {
	switch fheType {
	case TypeEbool:
		return fhe.FheBool
	case TypeEuint8:
		return fhe.FheUint8
	case TypeEuint16:
		return fhe.FheUint16
	case TypeEuint32:
		return fhe.FheUint32
	case TypeEuint64:
		return fhe.FheUint64
	case TypeEaddress:
		return fhe.FheUint160
	default:
		return fhe.FheUint32
	}
}

func serializeBitCiphertext(ct *fhe.BitCiphertext) ([]byte, error) {
	if ct == nil {
		return nil, ErrOperationFailed
	}
	return ct.MarshalBinary()
}

func deserializeBitCiphertext(data []byte) (*fhe.BitCiphertext, error) {
	if len(data) == 0 {
		return nil, ErrInvalidCiphertext
	}
	ct := new(fhe.BitCiphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ct, nil
}

// Encrypted booleans are kept as a single encrypted bit.

func serializeCiphertext(ct *fhe.Ciphertext) ([]byte, error) {
	if ct == nil {
		return nil, ErrOperationFailed
	}
	return ct.MarshalBinary()
}

func deserializeCiphertext(data []byte) (*fhe.Ciphertext, error) {
	if len(data) == 0 {
		return nil, ErrInvalidCiphertext
	}
	ct := new(fhe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ct, nil
}

// Arithmetic

func tfheAdd(lhs, rhs []byte) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctLhs, err := deserializeBitCiphertext(lhs)
	if err != nil {
		return nil, err
	}
	ctRhs, err := deserializeBitCiphertext(rhs)
	if err != nil {
		return nil, err
	}

	result, err := evaluator.Add(ctLhs, ctRhs)
	if err != nil {
		return nil, err
	}

	return serializeBitCiphertext(result)
}

func tfheSub(lhs, rhs []byte) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctLhs, err := deserializeBitCiphertext(lhs)
	if err != nil {
		return nil, err
	}
	ctRhs, err := deserializeBitCiphertext(rhs)
	if err != nil {
		return nil, err
	}

	result, err := evaluator.Sub(ctLhs, ctRhs)
	if err != nil {
		return nil, err
	}

	return serializeBitCiphertext(result)
}

func tfheScalarAdd(ct []byte, scalar uint64) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctIn, err := deserializeBitCiphertext(ct)
	if err != nil {
		return nil, err
	}

	result, err := evaluator.ScalarAdd(ctIn, scalar)
	if err != nil {
		return nil, err
	}

	return serializeBitCiphertext(result)
}

// tfheScalarRem reduces a ciphertext modulo a plaintext scalar by encrypting
// the scalar and running the encrypted remainder circuit.
func tfheScalarRem(ct []byte, scalar uint64, fheType uint8) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}
	if scalar == 0 {
		return ct, nil
	}

	ctIn, err := deserializeBitCiphertext(ct)
	if err != nil {
		return nil, err
	}

	ctScalar := encryptor.EncryptUint64(scalar, fheTypeToTFHEType(fheType))

	result, err := evaluator.Rem(ctIn, ctScalar)
	if err != nil {
		return nil, err
	}

	return serializeBitCiphertext(result)
}

// Comparison - results are a single encrypted bit

func tfheEq(lhs, rhs []byte) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctLhs, err := deserializeBitCiphertext(lhs)
	if err != nil {
		return nil, err
	}
	ctRhs, err := deserializeBitCiphertext(rhs)
	if err != nil {
		return nil, err
	}

	result, err := evaluator.Eq(ctLhs, ctRhs)
	if err != nil {
		return nil, err
	}

	return serializeCiphertext(result)
}

func tfheGt(lhs, rhs []byte) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctLhs, err := deserializeBitCiphertext(lhs)
	if err != nil {
		return nil, err
	}
	ctRhs, err := deserializeBitCiphertext(rhs)
	if err != nil {
		return nil, err
	}

	result, err := evaluator.Gt(ctLhs, ctRhs)
	if err != nil {
		return nil, err
	}

	return serializeCiphertext(result)
}

// Selection

func tfheSelect(control, ifTrue, ifFalse []byte) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctControl, err := deserializeCiphertext(control)
	if err != nil {
		return nil, err
	}
	ctTrue, err := deserializeBitCiphertext(ifTrue)
	if err != nil {
		return nil, err
	}
	ctFalse, err := deserializeBitCiphertext(ifFalse)
	if err != nil {
		return nil, err
	}

	result, err := evaluator.Select(ctControl, ctTrue, ctFalse)
	if err != nil {
		return nil, err
	}

	return serializeBitCiphertext(result)
}

// tfheCastBool widens a single encrypted bit to an integer ciphertext.
func tfheCastBool(bit []byte, toType uint8) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ctBit, err := deserializeCiphertext(bit)
	if err != nil {
		return nil, err
	}

	wrapped := fhe.WrapBoolCiphertext(ctBit)
	result := evaluator.CastTo(wrapped, fheTypeToTFHEType(toType))

	return serializeBitCiphertext(result)
}

// Encryption / decryption

func tfheTrivialEncrypt(plaintext *big.Int, toType uint8) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	ct := encryptor.EncryptUint64(plaintext.Uint64(), fheTypeToTFHEType(toType))

	return serializeBitCiphertext(ct)
}

func tfheDecrypt(ct []byte, fheType uint8) (*big.Int, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	var bits *fhe.BitCiphertext
	if fheType == TypeEbool {
		bit, err := deserializeCiphertext(ct)
		if err != nil {
			return nil, err
		}
		bits = fhe.WrapBoolCiphertext(bit)
	} else {
		var err error
		bits, err = deserializeBitCiphertext(ct)
		if err != nil {
			return nil, err
		}
	}

	plaintext := decryptor.DecryptUint64(bits)
	return new(big.Int).SetUint64(plaintext), nil
}

func tfheRandom(fheType uint8, seed uint64) ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}

	seedBytes := make([]byte, 32)
	binary.BigEndian.PutUint64(seedBytes[24:], seed)

	rng := fhe.NewFheRNG(params, secretKey, seedBytes)
	ct := rng.RandomUint(fheTypeToTFHEType(fheType))

	return serializeBitCiphertext(ct)
}

// NetworkPublicKey returns the serialized TFHE public key clients encrypt
// against.
func NetworkPublicKey() ([]byte, error) {
	if err := initTFHE(); err != nil {
		return nil, err
	}
	return publicKey.MarshalBinary()
}
