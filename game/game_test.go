// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package game

import (
	"crypto/ecdsa"
	"testing"

	"github.com/parsdao/ropasci/fhe"
	"github.com/parsdao/ropasci/oracle"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T) (*Game, *oracle.LocalOracle) {
	t.Helper()
	fhe.Reset()

	g := NewGame(ContractAddress)
	localOracle, err := oracle.NewLocalOracle(3, 2)
	require.NoError(t, err)
	g.SetSignerSet(localOracle.SignerSet())
	return g, localOracle
}

func newPlayer(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, common.Address(crypto.PubkeyToAddress(key.PublicKey))
}

// setHouseMove pins the house move for the next play. Tests use this to make
// round outcomes deterministic; Play resamples afterwards.
func setHouseMove(t *testing.T, g *Game, move uint8) {
	t.Helper()
	house, err := fhe.AsEuint8(move)
	require.NoError(t, err)
	g.houseMove = house
}

func play(t *testing.T, g *Game, key *ecdsa.PrivateKey, move uint8) error {
	t.Helper()
	ct, proof, err := fhe.EncryptInput(uint64(move), fhe.TypeEuint8, key, g.addr)
	require.NoError(t, err)
	return g.Play(common.Address(crypto.PubkeyToAddress(key.PublicKey)), ct, proof, 100)
}

func decryptStats(t *testing.T, g *Game, player common.Address) (wins, losses, ties uint64) {
	t.Helper()
	stats, ok := g.Stats(player)
	require.True(t, ok)

	winsValue, err := fhe.Decrypt(stats.Wins, player)
	require.NoError(t, err)
	lossesValue, err := fhe.Decrypt(stats.Losses, player)
	require.NoError(t, err)
	tiesValue, err := fhe.Decrypt(stats.Ties, player)
	require.NoError(t, err)
	return winsValue.Uint64(), lossesValue.Uint64(), tiesValue.Uint64()
}

// truncated is the address as it survives the 64-bit encrypted plaintext
// path: only the low eight bytes.
func truncated(addr common.Address) common.Address {
	return common.BytesToAddress(addr.Bytes()[12:])
}

// TestOutcomeMatrix plays every move against every pinned house move and
// checks that exactly the right counter increments.
func TestOutcomeMatrix(t *testing.T) {
	moves := []struct {
		name string
		move uint8
	}{
		{"rock", MoveRock},
		{"paper", MovePaper},
		{"scissors", MoveScissors},
	}

	for _, player := range moves {
		for _, house := range moves {
			t.Run(player.name+"_vs_"+house.name, func(t *testing.T) {
				g, _ := newTestGame(t)
				key, addr := newPlayer(t)

				setHouseMove(t, g, house.move)
				require.NoError(t, play(t, g, key, player.move))

				wins, losses, ties := decryptStats(t, g, addr)

				switch (3 + player.move - house.move) % 3 {
				case 0:
					require.Equal(t, []uint64{0, 0, 1}, []uint64{wins, losses, ties})
				case 1:
					require.Equal(t, []uint64{1, 0, 0}, []uint64{wins, losses, ties})
				case 2:
					require.Equal(t, []uint64{0, 1, 0}, []uint64{wins, losses, ties})
				}
			})
		}
	}
}

// TestCountersSumToPlays plays rounds against the sampled house move and
// checks the counters always account for every round.
func TestCountersSumToPlays(t *testing.T) {
	g, _ := newTestGame(t)
	key, addr := newPlayer(t)

	const rounds = 6
	for i := 0; i < rounds; i++ {
		require.NoError(t, play(t, g, key, uint8(i%3)))
	}

	wins, losses, ties := decryptStats(t, g, addr)
	require.Equal(t, uint64(rounds), wins+losses+ties)
}

// TestStatsReadIsIdempotent checks that reading stats does not disturb the
// stored handles.
func TestStatsReadIsIdempotent(t *testing.T) {
	g, _ := newTestGame(t)
	key, addr := newPlayer(t)

	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, key, MovePaper))

	first, ok := g.Stats(addr)
	require.True(t, ok)
	second, ok := g.Stats(addr)
	require.True(t, ok)
	require.Equal(t, first, second)

	wins, _, _ := decryptStats(t, g, addr)
	require.Equal(t, uint64(1), wins)
}

// TestStatsUnknownPlayer checks the miss path
func TestStatsUnknownPlayer(t *testing.T) {
	g, _ := newTestGame(t)
	_, ok := g.Stats(common.HexToAddress("0x42"))
	require.False(t, ok)
}

// TestStatsDecryptionIsOwnerOnly checks that another player cannot decrypt
// someone else's counters even though the handles are public.
func TestStatsDecryptionIsOwnerOnly(t *testing.T) {
	g, _ := newTestGame(t)
	aliceKey, _ := newPlayer(t)
	_, bob := newPlayer(t)

	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, aliceKey, MovePaper))

	stats, ok := g.Stats(common.Address(crypto.PubkeyToAddress(aliceKey.PublicKey)))
	require.True(t, ok)

	_, err := fhe.Decrypt(stats.Wins, bob)
	require.ErrorIs(t, err, fhe.ErrUnauthorized)
}

// TestPlayRejectsBadProof checks that a proof signed by a different key is
// rejected and leaves no trace in the player's stats.
func TestPlayRejectsBadProof(t *testing.T) {
	g, _ := newTestGame(t)
	_, alice := newPlayer(t)
	bobKey, _ := newPlayer(t)

	ct, proof, err := fhe.EncryptInput(uint64(MovePaper), fhe.TypeEuint8, bobKey, g.addr)
	require.NoError(t, err)

	err = g.Play(alice, ct, proof, 100)
	require.ErrorIs(t, err, ErrInvalidProof)

	_, ok := g.Stats(alice)
	require.False(t, ok)
}

// TestLeaderboard plays two players to different win counts and checks the
// decryption flow publishes the right winner with request-block stamping.
func TestLeaderboard(t *testing.T) {
	g, localOracle := newTestGame(t)
	aliceKey, alice := newPlayer(t)
	bobKey, _ := newPlayer(t)

	// alice: two wins
	for i := 0; i < 2; i++ {
		setHouseMove(t, g, MoveRock)
		require.NoError(t, play(t, g, aliceKey, MovePaper))
	}
	// bob: one win
	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, bobKey, MovePaper))

	requestID, err := g.RequestTopWinnerDecryption(200)
	require.NoError(t, err)

	_, addrHandle, winsHandle, ok := g.PendingRequest()
	require.True(t, ok)

	winner, wins, proof, err := localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)
	require.NoError(t, g.ResolveTopWinner(requestID, winner, wins, proof))

	top := g.TopWinner()
	require.False(t, top.Pending)
	require.Equal(t, truncated(alice), top.Winner)
	require.Equal(t, uint64(2), top.Wins)
	require.Equal(t, uint64(200), top.PublishBlock)
}

// TestLeaderboardFirstPlaySetsLoser checks that the very first play claims
// the leaderboard even when it is a loss.
func TestLeaderboardFirstPlaySetsLoser(t *testing.T) {
	g, localOracle := newTestGame(t)
	key, addr := newPlayer(t)

	setHouseMove(t, g, MovePaper)
	require.NoError(t, play(t, g, key, MoveRock))

	requestID, err := g.RequestTopWinnerDecryption(50)
	require.NoError(t, err)
	_, addrHandle, winsHandle, ok := g.PendingRequest()
	require.True(t, ok)

	winner, wins, proof, err := localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)
	require.NoError(t, g.ResolveTopWinner(requestID, winner, wins, proof))

	top := g.TopWinner()
	require.Equal(t, truncated(addr), top.Winner)
	require.Equal(t, uint64(0), top.Wins)
}

// TestLeaderboardTieKeepsIncumbent checks that matching the leader's win
// count does not displace them.
func TestLeaderboardTieKeepsIncumbent(t *testing.T) {
	g, localOracle := newTestGame(t)
	aliceKey, alice := newPlayer(t)
	bobKey, _ := newPlayer(t)

	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, aliceKey, MovePaper))
	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, bobKey, MovePaper))

	requestID, err := g.RequestTopWinnerDecryption(10)
	require.NoError(t, err)
	_, addrHandle, winsHandle, ok := g.PendingRequest()
	require.True(t, ok)

	winner, wins, proof, err := localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)
	require.NoError(t, g.ResolveTopWinner(requestID, winner, wins, proof))

	top := g.TopWinner()
	require.Equal(t, truncated(alice), top.Winner)
	require.Equal(t, uint64(1), top.Wins)
}

// TestInterleavedPlayKeepsRequestSnapshot checks that a play landing while a
// decryption request is outstanding does not disturb the request: the oracle
// decrypts the leaderboard as of the request, and the callback still lands.
func TestInterleavedPlayKeepsRequestSnapshot(t *testing.T) {
	g, localOracle := newTestGame(t)
	key, addr := newPlayer(t)

	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, key, MovePaper))

	requestID, err := g.RequestTopWinnerDecryption(30)
	require.NoError(t, err)

	// A second win lands while the request is outstanding and replaces the
	// live leaderboard handles.
	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, key, MovePaper))

	_, addrHandle, winsHandle, ok := g.PendingRequest()
	require.True(t, ok)
	require.NotEqual(t, g.leaderWins, winsHandle)

	winner, wins, proof, err := localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)
	require.NoError(t, g.ResolveTopWinner(requestID, winner, wins, proof))

	// Published values are the snapshot as of the request block.
	top := g.TopWinner()
	require.False(t, top.Pending)
	require.Equal(t, truncated(addr), top.Winner)
	require.Equal(t, uint64(1), top.Wins)
	require.Equal(t, uint64(30), top.PublishBlock)

	// A fresh request sees the post-play leaderboard.
	requestID, err = g.RequestTopWinnerDecryption(40)
	require.NoError(t, err)
	_, addrHandle, winsHandle, ok = g.PendingRequest()
	require.True(t, ok)

	winner, wins, proof, err = localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)
	require.NoError(t, g.ResolveTopWinner(requestID, winner, wins, proof))
	require.Equal(t, uint64(2), g.TopWinner().Wins)
	require.Equal(t, uint64(40), g.TopWinner().PublishBlock)
}

// TestDecryptionRequestGuards exercises the request/callback state machine
func TestDecryptionRequestGuards(t *testing.T) {
	g, localOracle := newTestGame(t)

	// No plays yet
	_, err := g.RequestTopWinnerDecryption(1)
	require.ErrorIs(t, err, ErrNoLeaderboard)

	key, _ := newPlayer(t)
	setHouseMove(t, g, MoveRock)
	require.NoError(t, play(t, g, key, MovePaper))

	requestID, err := g.RequestTopWinnerDecryption(2)
	require.NoError(t, err)
	require.True(t, g.TopWinner().Pending)

	// Only one outstanding request at a time
	_, err = g.RequestTopWinnerDecryption(3)
	require.ErrorIs(t, err, ErrDecryptionPending)

	_, addrHandle, winsHandle, ok := g.PendingRequest()
	require.True(t, ok)
	winner, wins, proof, err := localOracle.Fulfill(requestID, addrHandle, winsHandle)
	require.NoError(t, err)

	// Stale request id
	var stale [32]byte
	stale[0] = 0xff
	err = g.ResolveTopWinner(stale, winner, wins, proof)
	require.ErrorIs(t, err, ErrRequestMismatch)
	require.True(t, g.TopWinner().Pending)

	// Tampered payload fails proof verification
	err = g.ResolveTopWinner(requestID, winner, wins+1, proof)
	require.ErrorIs(t, err, ErrInvalidOracleProof)
	require.True(t, g.TopWinner().Pending)

	// The rightful callback still lands after the failed attempts
	require.NoError(t, g.ResolveTopWinner(requestID, winner, wins, proof))
	require.False(t, g.TopWinner().Pending)

	// And cannot land twice
	err = g.ResolveTopWinner(requestID, winner, wins, proof)
	require.ErrorIs(t, err, ErrNoPendingRequest)
}

// TestHouseMoveResamples checks that the house move handle changes after
// every play.
func TestHouseMoveResamples(t *testing.T) {
	g, _ := newTestGame(t)
	key, _ := newPlayer(t)

	require.NoError(t, play(t, g, key, MoveRock))
	first := g.houseMove
	require.NotEqual(t, common.Hash{}, first)

	require.NoError(t, play(t, g, key, MoveRock))
	require.NotEqual(t, first, g.houseMove)
}
