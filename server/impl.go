// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"crypto/ecdsa"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/parsdao/ropasci/contract"
	"github.com/parsdao/ropasci/fhe"
	"github.com/parsdao/ropasci/game"
	"github.com/parsdao/ropasci/oracle"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/samber/do/v2"
	bolt "go.etcd.io/bbolt"
)

// gamePrecompile is the slice of the precompile surface the server drives.
type gamePrecompile interface {
	contract.StatefulPrecompiledContract
	Game() *game.Game
}

// hostState is the AccessibleState the server presents to the precompile.
// Each mutating call advances the block counter, standing in for the chain.
type hostState struct {
	blockNumber uint64
}

func (s *hostState) GetStateDB() contract.StateDB { return nil }
func (s *hostState) GetBlockContext() contract.BlockContext {
	return &hostBlockContext{number: new(big.Int).SetUint64(s.blockNumber)}
}

type hostBlockContext struct {
	number *big.Int
}

func (b *hostBlockContext) Number() *big.Int  { return b.number }
func (b *hostBlockContext) Timestamp() uint64 { return uint64(time.Now().Unix()) }

type GameService struct {
	precompile gamePrecompile
	oracle     *oracle.LocalOracle
	db         *DatabaseService

	mu       sync.Mutex
	block    uint64
	sessions map[string]*ecdsa.PrivateKey
	// byWinner maps the low-64-bit address form the encrypted leaderboard
	// preserves back to the owning session.
	byWinner map[common.Address]string
}

func NewGameService(i do.Injector) (*GameService, error) {
	signers := do.MustInvokeNamed[int](i, "oracle-signers")
	threshold := do.MustInvokeNamed[int](i, "oracle-threshold")

	localOracle, err := oracle.NewLocalOracle(signers, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle: %w", err)
	}

	db, err := do.Invoke[*DatabaseService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create database service: %w", err)
	}

	result := &GameService{
		precompile: game.RoPaSciPrecompile,
		oracle:     localOracle,
		db:         db,
		block:      1,
		sessions:   make(map[string]*ecdsa.PrivateKey),
		byWinner:   make(map[common.Address]string),
	}
	result.precompile.Game().SetSignerSet(localOracle.SignerSet())

	echoService, err := do.Invoke[*EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(func(e *echo.Echo) {
		e.GET("/", result.GetIndex)

		apiGroup := e.Group("/api")

		gameGroup := apiGroup.Group("/game")

		gameGroup.POST("/session", result.PostSession)
		gameGroup.POST("/play", result.PostPlay)
		gameGroup.GET("/stats/:session", result.GetStats)
		gameGroup.POST("/top-winner/decrypt", result.PostTopWinnerDecrypt)
		gameGroup.GET("/top-winner", result.GetTopWinner)
		gameGroup.GET("/top-winner/history", result.GetTopWinnerHistory)
	})

	return result, nil
}

// nextBlock advances the host block counter. Callers must hold s.mu.
func (s *GameService) nextBlock() *hostState {
	s.block++
	return &hostState{blockNumber: s.block}
}

//go:embed index.html
var indexHTML []byte

func (s *GameService) GetIndex(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

// truncated is the address form the 64-bit encrypted plaintext path
// preserves: only the low eight bytes.
func truncated(addr common.Address) common.Address {
	return common.BytesToAddress(addr.Bytes()[12:])
}

func (s *GameService) PostSession(c echo.Context) error {
	sessionID, err := uuid.NewRandom()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate session id")
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate session key")
	}
	address := common.Address(crypto.PubkeyToAddress(key.PublicKey))

	s.mu.Lock()
	s.sessions[sessionID.String()] = key
	s.byWinner[truncated(address)] = sessionID.String()
	s.mu.Unlock()

	err = s.db.DB.Update(func(tx *bolt.Tx) error {
		//nolint:wrapcheck
		return tx.Bucket([]byte(SessionBucket)).Put([]byte(sessionID.String()), address.Bytes())
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist session")
	}

	return c.JSON(http.StatusCreated, Session{
		SessionID: sessionID.String(),
		Address:   address.Hex(),
	})
}

func (s *GameService) PostPlay(c echo.Context) error {
	var req PlayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Move > game.MoveScissors {
		return echo.NewHTTPError(http.StatusBadRequest, "move must be 0, 1 or 2")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.sessions[req.SessionID]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	caller := common.Address(crypto.PubkeyToAddress(key.PublicKey))

	ct, proof, err := fhe.EncryptInput(uint64(req.Move), fhe.TypeEuint8, key, game.ContractAddress)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encrypt move")
	}

	input := make([]byte, 0, 4+32+len(ct)+len(proof))
	input = append(input, game.SelectorPlay[:]...)
	ctLen := make([]byte, 32)
	new(big.Int).SetUint64(uint64(len(ct))).FillBytes(ctLen)
	input = append(input, ctLen...)
	input = append(input, ct...)
	input = append(input, proof...)

	state := s.nextBlock()
	if _, _, err := s.precompile.Run(state, caller, game.ContractAddress, input, game.GasPlay, false); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(http.StatusOK, PlayResponse{
		SessionID: req.SessionID,
		Block:     state.blockNumber,
	})
}

func (s *GameService) GetStats(c echo.Context) error {
	sessionID := c.Param("session")

	s.mu.Lock()
	key, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	address := common.Address(crypto.PubkeyToAddress(key.PublicKey))

	stats, ok := s.precompile.Game().Stats(address)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no plays recorded for session")
	}

	// The server holds the session identity, so it decrypts on the
	// player's behalf.
	wins, err := fhe.Decrypt(stats.Wins, address)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to decrypt wins")
	}
	losses, err := fhe.Decrypt(stats.Losses, address)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to decrypt losses")
	}
	ties, err := fhe.Decrypt(stats.Ties, address)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to decrypt ties")
	}

	return c.JSON(http.StatusOK, StatsResponse{
		SessionID:    sessionID,
		WinsHandle:   stats.Wins.Hex(),
		LossesHandle: stats.Losses.Hex(),
		TiesHandle:   stats.Ties.Hex(),
		Wins:         wins.Uint64(),
		Losses:       losses.Uint64(),
		Ties:         ties.Uint64(),
	})
}

func (s *GameService) PostTopWinnerDecrypt(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.precompile.Game()

	state := s.nextBlock()
	out, _, err := s.precompile.Run(state, oracle.GatewayAddress, game.ContractAddress,
		game.SelectorDecryptTopWinner[:], game.GasDecryptReq, false)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	var requestID [32]byte
	copy(requestID[:], out)

	_, addrHandle, winsHandle, ok := g.PendingRequest()
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "request vanished")
	}

	winner, wins, proof, err := s.oracle.Fulfill(requestID, addrHandle, winsHandle)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "oracle fulfillment failed")
	}

	callback := make([]byte, 0, 4+96+len(proof))
	callback = append(callback, game.SelectorResolveTopWinner[:]...)
	callback = append(callback, requestID[:]...)
	callback = append(callback, common.LeftPadBytes(winner.Bytes(), 32)...)
	winsWord := make([]byte, 32)
	new(big.Int).SetUint64(wins).FillBytes(winsWord)
	callback = append(callback, winsWord...)
	callback = append(callback, proof...)

	if _, _, err := s.precompile.Run(state, oracle.GatewayAddress, game.ContractAddress,
		callback, game.GasCallback, false); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	top := g.TopWinner()
	record := TopWinnerRecord{
		Winner:       top.Winner.Hex(),
		Wins:         top.Wins,
		PublishBlock: top.PublishBlock,
		ResolvedAt:   time.Now().Unix(),
	}
	err = s.db.DB.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(TopWinnerBucket))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		key := make([]byte, 8)
		new(big.Int).SetUint64(seq).FillBytes(key)
		//nolint:wrapcheck
		return bucket.Put(key, encoded)
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist top winner")
	}

	return c.JSON(http.StatusOK, s.topWinnerResponse(top))
}

func (s *GameService) GetTopWinner(c echo.Context) error {
	top := s.precompile.Game().TopWinner()

	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.topWinnerResponse(top))
}

func (s *GameService) GetTopWinnerHistory(c echo.Context) error {
	records := make([]TopWinnerRecord, 0)

	err := s.db.DB.View(func(tx *bolt.Tx) error {
		//nolint:wrapcheck
		return tx.Bucket([]byte(TopWinnerBucket)).ForEach(func(_, v []byte) error {
			var record TopWinnerRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to decode record: %w", err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read history")
	}

	return c.JSON(http.StatusOK, records)
}

// topWinnerResponse resolves the published winner back to a session when the
// server created it. Callers must hold s.mu.
func (s *GameService) topWinnerResponse(top game.TopWinner) TopWinnerResponse {
	return TopWinnerResponse{
		Winner:       top.Winner.Hex(),
		SessionID:    s.byWinner[top.Winner],
		Wins:         top.Wins,
		Pending:      top.Pending,
		PublishBlock: top.PublishBlock,
	}
}
