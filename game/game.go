// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package game

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/parsdao/ropasci/fhe"
	"github.com/parsdao/ropasci/oracle"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Move values. The encrypted circuit folds any input byte into this domain
// with a mod-3 reduction, so there is no invalid move.
const (
	MoveRock     = 0
	MovePaper    = 1
	MoveScissors = 2
)

var (
	ErrInvalidProof       = errors.New("input ciphertext proof rejected")
	ErrDecryptionPending  = errors.New("a decryption request is already outstanding")
	ErrNoPendingRequest   = errors.New("no decryption request outstanding")
	ErrRequestMismatch    = errors.New("callback request id does not match outstanding request")
	ErrInvalidOracleProof = errors.New("oracle proof rejected")
	ErrNoLeaderboard      = errors.New("no play recorded yet")
	ErrOracleNotSet       = errors.New("oracle signer set not configured")
)

// PlayerStats holds the three encrypted per-player counters. The handles are
// public; decrypting them is restricted to the player and the game itself.
type PlayerStats struct {
	Wins   common.Hash
	Losses common.Hash
	Ties   common.Hash
}

// TopWinner is the published (plaintext) leaderboard snapshot. The values
// reflect the leaderboard as of the block the decryption was requested in,
// not the block the oracle answered in.
type TopWinner struct {
	Winner       common.Address
	Wins         uint64
	Pending      bool
	PublishBlock uint64
}

// Game is the confidential rock-paper-scissors state: the encrypted house
// move, the per-player encrypted counters, the obliviously maintained
// leaderboard and the decryption-gateway state machine. The host ledger
// serializes all mutations; the mutex only guards direct Go-level access.
type Game struct {
	addr common.Address

	houseMove common.Hash
	plays     uint64

	stats map[common.Address]*PlayerStats

	leaderInit bool
	leaderAddr common.Hash
	leaderWins common.Hash

	decryptPending bool
	requestID      [32]byte
	requestBlock   uint64
	// requestAddr/requestWins snapshot the leaderboard handles at request
	// time. Plays landing after the request replace the live handles, but
	// the oracle decrypts (and holds grants on) the snapshot.
	requestAddr common.Hash
	requestWins common.Hash
	published   TopWinner

	signers *oracle.SignerSet

	log log.Logger
	mu  sync.RWMutex
}

// NewGame creates a game bound to the precompile address it runs at.
func NewGame(addr common.Address) *Game {
	return &Game{
		addr:  addr,
		stats: make(map[common.Address]*PlayerStats),
		log:   log.NewTestLogger(log.InfoLevel),
	}
}

// SetSignerSet configures the oracle signer set callbacks are verified
// against.
func (g *Game) SetSignerSet(signers *oracle.SignerSet) {
	g.mu.Lock()
	g.signers = signers
	g.mu.Unlock()
}

// Reset clears all game state. Test hook, pairs with fhe.Reset.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.houseMove = common.Hash{}
	g.plays = 0
	g.stats = make(map[common.Address]*PlayerStats)
	g.leaderInit = false
	g.leaderAddr = common.Hash{}
	g.leaderWins = common.Hash{}
	g.decryptPending = false
	g.requestID = [32]byte{}
	g.requestBlock = 0
	g.requestAddr = common.Hash{}
	g.requestWins = common.Hash{}
	g.published = TopWinner{}
}

// houseSeed derives the seed for the next encrypted house move. The caller
// and play counter are folded in so consecutive plays in one block resample
// differently.
func (g *Game) houseSeed(blockNumber uint64, caller common.Address) uint64 {
	seed := blockNumber ^ g.plays<<32
	seed ^= binary.BigEndian.Uint64(caller.Bytes()[12:])
	return seed
}

// ensureHouseMove samples the initial house move on first use.
func (g *Game) ensureHouseMove(blockNumber uint64, caller common.Address) error {
	if g.houseMove != (common.Hash{}) {
		return nil
	}
	return g.resampleHouseMove(blockNumber, caller)
}

// resampleHouseMove replaces the house move with a fresh encrypted value in
// {0,1,2}.
func (g *Game) resampleHouseMove(blockNumber uint64, caller common.Address) error {
	raw, err := fhe.Random(fhe.TypeEuint8, g.houseSeed(blockNumber, caller))
	if err != nil {
		return err
	}
	house, err := fhe.ScalarRem(raw, 3)
	if err != nil {
		return err
	}
	g.houseMove = house
	return nil
}

// Play verifies the caller's encrypted move, resolves it against the house
// move entirely under encryption, updates the caller's counters and the
// leaderboard, and resamples the house move. The only failure mode is a
// rejected input proof; every other error is an internal runtime fault.
func (g *Game) Play(caller common.Address, ciphertext, proof []byte, blockNumber uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	input, err := fhe.VerifyInput(ciphertext, proof, caller, g.addr, fhe.TypeEuint8)
	if err != nil {
		return ErrInvalidProof
	}

	if err := g.ensureHouseMove(blockNumber, caller); err != nil {
		return err
	}

	// playMove = input mod 3: defensive normalization, any byte folds into
	// the move domain.
	playMove, err := fhe.ScalarRem(input, 3)
	if err != nil {
		return err
	}

	// result = (3 + playMove - houseMove) mod 3
	// 0 = tie, 1 = win, 2 = loss. No intermediate value is decrypted.
	shifted, err := fhe.ScalarAdd(playMove, 3)
	if err != nil {
		return err
	}
	diff, err := fhe.Sub(shifted, g.houseMove)
	if err != nil {
		return err
	}
	result, err := fhe.ScalarRem(diff, 3)
	if err != nil {
		return err
	}

	// The three predicates are mutually exclusive and exhaustive over the
	// mod-3 domain, so exactly one counter increments per play.
	increments := make([]common.Hash, 3)
	for outcome := uint8(0); outcome < 3; outcome++ {
		constant, err := fhe.AsEuint8(outcome)
		if err != nil {
			return err
		}
		predicate, err := fhe.Eq(result, constant)
		if err != nil {
			return err
		}
		increments[outcome], err = fhe.CastBool(predicate, fhe.TypeEuint32)
		if err != nil {
			return err
		}
	}

	stats, err := g.bumpStats(caller, increments[1], increments[2], increments[0])
	if err != nil {
		return err
	}

	if err := g.trackLeader(caller, stats.Wins); err != nil {
		return err
	}

	g.plays++
	return g.resampleHouseMove(blockNumber, caller)
}

// bumpStats adds the encrypted 0/1 increments to the caller's counters,
// creating implicit zero counters on first play, and re-grants decryption to
// the caller and the game on each updated handle.
func (g *Game) bumpStats(caller common.Address, winInc, lossInc, tieInc common.Hash) (*PlayerStats, error) {
	stats, ok := g.stats[caller]
	if !ok {
		zero := func() (common.Hash, error) { return fhe.AsEuint32(0) }
		wins, err := zero()
		if err != nil {
			return nil, err
		}
		losses, err := zero()
		if err != nil {
			return nil, err
		}
		ties, err := zero()
		if err != nil {
			return nil, err
		}
		stats = &PlayerStats{Wins: wins, Losses: losses, Ties: ties}
		g.stats[caller] = stats
	}

	var err error
	if stats.Wins, err = fhe.Add(stats.Wins, winInc); err != nil {
		return nil, err
	}
	if stats.Losses, err = fhe.Add(stats.Losses, lossInc); err != nil {
		return nil, err
	}
	if stats.Ties, err = fhe.Add(stats.Ties, tieInc); err != nil {
		return nil, err
	}

	for _, handle := range []common.Hash{stats.Wins, stats.Losses, stats.Ties} {
		fhe.Allow(handle, caller)
		fhe.Allow(handle, g.addr)
	}

	return stats, nil
}

// trackLeader updates the encrypted leaderboard. The first play initializes
// it unconditionally; afterwards both candidate outcomes are computed and an
// encrypted comparison selects between them, so the update never branches on
// secret data.
func (g *Game) trackLeader(caller common.Address, updatedWins common.Hash) error {
	if !g.leaderInit {
		leaderAddr, err := fhe.AsEaddress(caller)
		if err != nil {
			return err
		}
		g.leaderAddr = leaderAddr
		g.leaderWins = updatedWins
		g.leaderInit = true
	} else {
		isNewLeader, err := fhe.Gt(updatedWins, g.leaderWins)
		if err != nil {
			return err
		}
		callerEnc, err := fhe.AsEaddress(caller)
		if err != nil {
			return err
		}
		if g.leaderAddr, err = fhe.Select(isNewLeader, callerEnc, g.leaderAddr); err != nil {
			return err
		}
		if g.leaderWins, err = fhe.Select(isNewLeader, updatedWins, g.leaderWins); err != nil {
			return err
		}
	}

	// The leaderboard stays encrypted: only the game itself may decrypt it,
	// until a handle is explicitly surrendered to the oracle gateway.
	fhe.Allow(g.leaderAddr, g.addr)
	fhe.Allow(g.leaderWins, g.addr)
	return nil
}

// Stats returns the caller-visible handles for a player's counters. Handles
// are public; only the owning player (and the game) can decrypt them.
func (g *Game) Stats(player common.Address) (PlayerStats, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stats, ok := g.stats[player]
	if !ok {
		return PlayerStats{}, false
	}
	return *stats, true
}

// RequestTopWinnerDecryption opens a decryption request for the current
// leaderboard entry. At most one request may be outstanding; the request
// block is recorded so the eventual publish is stamped with it.
func (g *Game) RequestTopWinnerDecryption(blockNumber uint64) ([32]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decryptPending {
		return [32]byte{}, ErrDecryptionPending
	}
	if !g.leaderInit {
		return [32]byte{}, ErrNoLeaderboard
	}

	requestID := deriveRequestID(g.leaderAddr, g.leaderWins, blockNumber, g.plays)

	// Surrender the two handles to the oracle gateway for this request.
	fhe.Allow(g.leaderAddr, oracle.GatewayAddress)
	fhe.Allow(g.leaderWins, oracle.GatewayAddress)

	g.decryptPending = true
	g.requestID = requestID
	g.requestBlock = blockNumber
	g.requestAddr = g.leaderAddr
	g.requestWins = g.leaderWins
	g.published.Pending = true

	g.log.Info("top winner decryption requested",
		"requestID", common.Hash(requestID),
		"block", blockNumber,
	)

	return requestID, nil
}

// PendingRequest returns the outstanding request and the two handles the
// oracle must decrypt: the leaderboard snapshot taken at request time, not
// the live handles later plays may have replaced.
func (g *Game) PendingRequest() (requestID [32]byte, leaderAddr, leaderWins common.Hash, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.decryptPending {
		return [32]byte{}, common.Hash{}, common.Hash{}, false
	}
	return g.requestID, g.requestAddr, g.requestWins, true
}

// ResolveTopWinner accepts the oracle callback. The request id must match
// the outstanding request and the proof must carry a signer-set quorum over
// the published values. Any failure aborts without mutating state, leaving
// the rightful pending callback still able to land.
func (g *Game) ResolveTopWinner(requestID [32]byte, winner common.Address, wins uint64, proof []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.decryptPending {
		return ErrNoPendingRequest
	}
	if requestID != g.requestID {
		return ErrRequestMismatch
	}
	if g.signers == nil {
		return ErrOracleNotSet
	}

	digest := oracle.PublishDigest(requestID, winner, wins)
	if err := g.signers.VerifyProof(digest, proof); err != nil {
		return ErrInvalidOracleProof
	}

	g.published = TopWinner{
		Winner: winner,
		Wins:   wins,
		// Stamp with the block the decryption was requested in: the
		// published values are a snapshot as of that block.
		PublishBlock: g.requestBlock,
	}
	g.decryptPending = false

	g.log.Info("top winner published",
		"winner", winner,
		"wins", wins,
		"block", g.requestBlock,
	)

	return nil
}

// TopWinner returns the last published leaderboard snapshot.
func (g *Game) TopWinner() TopWinner {
	g.mu.RLock()
	defer g.mu.RUnlock()
	published := g.published
	published.Pending = g.decryptPending
	return published
}

// deriveRequestID computes the correlation id for a decryption request.
func deriveRequestID(leaderAddr, leaderWins common.Hash, blockNumber, nonce uint64) [32]byte {
	data := make([]byte, 0, 2*common.HashLength+16)
	data = append(data, leaderAddr.Bytes()...)
	data = append(data, leaderWins.Bytes()...)
	data = binary.BigEndian.AppendUint64(data, blockNumber)
	data = binary.BigEndian.AppendUint64(data, nonce)

	var requestID [32]byte
	copy(requestID[:], crypto.Keccak256(data))
	return requestID
}
