// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the interfaces stateful precompiled contracts are
// written against: the contract itself, the state it may touch, and the block
// context of the executing transaction.
package contract

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
)

var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownSelector = errors.New("unknown function selector")
	ErrWriteProtection = errors.New("write protection: state mutation in read-only call")
)

// StatefulPrecompiledContract is a precompile that may read and mutate chain
// state. Run executes with the host's transaction-level atomicity: either the
// whole call takes effect or none of it does.
type StatefulPrecompiledContract interface {
	// Address returns the address where the precompile is accessible.
	Address() common.Address

	// RequiredGas returns the gas charged for the given input.
	RequiredGas(input []byte) uint64

	// Run executes the precompile with the given input.
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// AccessibleState exposes the chain state reachable from a precompile call.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
}

// BlockContext carries the block-level values of the executing transaction.
type BlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// StateDB is the subset of the EVM state database precompiles use.
type StateDB interface {
	GetState(common.Address, common.Hash) common.Hash
	SetState(common.Address, common.Hash, common.Hash)
}

// DeductGas subtracts requiredGas from suppliedGas, or fails with ErrOutOfGas.
func DeductGas(suppliedGas uint64, requiredGas uint64) (uint64, error) {
	if suppliedGas < requiredGas {
		return 0, ErrOutOfGas
	}
	return suppliedGas - requiredGas, nil
}
