// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package game implements the confidential rock-paper-scissors precompile.
// Players submit encrypted moves; the precompile resolves each round against
// an encrypted house move without ever decrypting either side, keeps
// per-player encrypted win/loss/tie counters, and tracks the top winner
// obliviously. The plaintext leaderboard is only revealed through the
// oracle gateway's request/callback flow.
package game

import (
	"github.com/parsdao/ropasci/contract"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// ContractAddress is the game precompile address in the privacy range.
var ContractAddress = common.HexToAddress("0x0700000000000000000000000000000000000003")

// Function selectors (first 4 bytes of keccak256 of function signature)
var (
	SelectorPlay              = [4]byte{0x53, 0xc2, 0x8d, 0x63} // play(bytes,bytes)
	SelectorGetWinLossTie     = [4]byte{0xbd, 0x10, 0x4e, 0x21} // getWinLossTieStats(address)
	SelectorDecryptTopWinner  = [4]byte{0x2e, 0x97, 0xa5, 0x0f} // decryptTopWinner()
	SelectorResolveTopWinner  = [4]byte{0x8a, 0x4c, 0xe3, 0xb7} // resolveTopWinnerCallback(bytes32,address,uint64,bytes)
	SelectorGetTopWinnerStats = [4]byte{0x41, 0x7d, 0x6f, 0x9c} // getTopWinnerStats()
)

// Gas costs
const (
	GasPlay       uint64 = 500000 // full encrypted round resolution
	GasStatsRead  uint64 = 3000   // handle lookup
	GasDecryptReq uint64 = 50000  // open a gateway request
	GasCallback   uint64 = 100000 // quorum proof verification
	GasTopWinner  uint64 = 2000   // plaintext snapshot read
)

const wordLength = 32

// RoPaSciPrecompile implements the stateful precompiled contract interface.
var RoPaSciPrecompile = &roPaSciPrecompile{game: NewGame(ContractAddress)}

type roPaSciPrecompile struct {
	game *Game
}

// Game exposes the underlying game state for configuration and the demo
// server.
func (p *roPaSciPrecompile) Game() *Game {
	return p.game
}

// Address returns the precompile address.
func (p *roPaSciPrecompile) Address() common.Address {
	return ContractAddress
}

// RequiredGas returns the gas cost of the call identified by input.
func (p *roPaSciPrecompile) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasStatsRead
	}
	var selector [4]byte
	copy(selector[:], input[:4])
	switch selector {
	case SelectorPlay:
		return GasPlay
	case SelectorGetWinLossTie:
		return GasStatsRead
	case SelectorDecryptTopWinner:
		return GasDecryptReq
	case SelectorResolveTopWinner:
		return GasCallback
	case SelectorGetTopWinnerStats:
		return GasTopWinner
	default:
		return GasStatsRead
	}
}

// Run dispatches on the function selector.
func (p *roPaSciPrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if len(input) < 4 {
		return nil, suppliedGas, contract.ErrInvalidInput
	}

	remainingGas, err := contract.DeductGas(suppliedGas, p.RequiredGas(input))
	if err != nil {
		return nil, 0, err
	}

	var selector [4]byte
	copy(selector[:], input[:4])
	args := input[4:]

	blockNumber := uint64(0)
	if block := accessibleState.GetBlockContext(); block != nil && block.Number() != nil {
		blockNumber = block.Number().Uint64()
	}

	switch selector {
	case SelectorPlay:
		return p.play(caller, args, blockNumber, remainingGas, readOnly)
	case SelectorGetWinLossTie:
		return p.getWinLossTieStats(args, remainingGas)
	case SelectorDecryptTopWinner:
		return p.decryptTopWinner(blockNumber, remainingGas, readOnly)
	case SelectorResolveTopWinner:
		return p.resolveTopWinnerCallback(args, remainingGas, readOnly)
	case SelectorGetTopWinnerStats:
		return p.getTopWinnerStats(remainingGas)
	default:
		return nil, remainingGas, contract.ErrUnknownSelector
	}
}

// play input layout:
//
//	[0:32]   ciphertext length N
//	[32:32+N] ciphertext
//	[32+N:]  input proof (65 bytes)
func (p *roPaSciPrecompile) play(
	caller common.Address,
	args []byte,
	blockNumber uint64,
	remainingGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, remainingGas, contract.ErrWriteProtection
	}
	if len(args) < wordLength {
		return nil, remainingGas, contract.ErrInvalidInput
	}
	ctLen, overflow := uint256.NewInt(0).SetBytes(args[:wordLength]).Uint64WithOverflow()
	if overflow || uint64(len(args)-wordLength) < ctLen {
		return nil, remainingGas, contract.ErrInvalidInput
	}
	ciphertext := args[wordLength : wordLength+ctLen]
	proof := args[wordLength+ctLen:]

	if err := p.game.Play(caller, ciphertext, proof, blockNumber); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, nil
}

// getWinLossTieStats input is a 32-byte left-padded address; output is the
// three counter handles (wins, losses, ties), 32 bytes each. Unknown players
// return all-zero handles.
func (p *roPaSciPrecompile) getWinLossTieStats(args []byte, remainingGas uint64) ([]byte, uint64, error) {
	if len(args) != wordLength {
		return nil, remainingGas, contract.ErrInvalidInput
	}
	player := common.BytesToAddress(args[12:])

	out := make([]byte, 3*wordLength)
	if stats, ok := p.game.Stats(player); ok {
		copy(out[0:], stats.Wins.Bytes())
		copy(out[wordLength:], stats.Losses.Bytes())
		copy(out[2*wordLength:], stats.Ties.Bytes())
	}
	return out, remainingGas, nil
}

// decryptTopWinner opens a gateway request and returns the 32-byte request
// id.
func (p *roPaSciPrecompile) decryptTopWinner(blockNumber, remainingGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, remainingGas, contract.ErrWriteProtection
	}
	requestID, err := p.game.RequestTopWinnerDecryption(blockNumber)
	if err != nil {
		return nil, remainingGas, err
	}
	out := make([]byte, wordLength)
	copy(out, requestID[:])
	return out, remainingGas, nil
}

// resolveTopWinnerCallback input layout:
//
//	[0:32]   request id
//	[32:64]  winner address, left padded
//	[64:96]  win count
//	[96:]    oracle proof (concatenated 65-byte signatures)
func (p *roPaSciPrecompile) resolveTopWinnerCallback(args []byte, remainingGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, remainingGas, contract.ErrWriteProtection
	}
	if len(args) < 3*wordLength {
		return nil, remainingGas, contract.ErrInvalidInput
	}

	var requestID [32]byte
	copy(requestID[:], args[:wordLength])
	winner := common.BytesToAddress(args[wordLength+12 : 2*wordLength])
	wins, overflow := uint256.NewInt(0).SetBytes(args[2*wordLength : 3*wordLength]).Uint64WithOverflow()
	if overflow {
		return nil, remainingGas, contract.ErrInvalidInput
	}
	proof := args[3*wordLength:]

	if err := p.game.ResolveTopWinner(requestID, winner, wins, proof); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, nil
}

// getTopWinnerStats output layout:
//
//	[0:32]   winner address, left padded
//	[32:64]  win count
//	[64:96]  1 if a decryption request is outstanding, else 0
//	[96:128] block the published snapshot was requested in
func (p *roPaSciPrecompile) getTopWinnerStats(remainingGas uint64) ([]byte, uint64, error) {
	top := p.game.TopWinner()

	out := make([]byte, 4*wordLength)
	copy(out[12:wordLength], top.Winner.Bytes())
	wins := uint256.NewInt(top.Wins).Bytes32()
	copy(out[wordLength:], wins[:])
	if top.Pending {
		out[3*wordLength-1] = 1
	}
	publishBlock := uint256.NewInt(top.PublishBlock).Bytes32()
	copy(out[3*wordLength:], publishBlock[:])
	return out, remainingGas, nil
}
