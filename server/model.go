// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

type Session struct {
	SessionID string `json:"session_id"`
	Address   string `json:"address"`
}

type PlayRequest struct {
	SessionID string `json:"session_id"`
	Move      uint8  `json:"move"`
}

type PlayResponse struct {
	SessionID string `json:"session_id"`
	Block     uint64 `json:"block"`
}

type StatsResponse struct {
	SessionID string `json:"session_id"`

	WinsHandle   string `json:"wins_handle"`
	LossesHandle string `json:"losses_handle"`
	TiesHandle   string `json:"ties_handle"`

	Wins   uint64 `json:"wins"`
	Losses uint64 `json:"losses"`
	Ties   uint64 `json:"ties"`
}

type TopWinnerResponse struct {
	Winner       string `json:"winner"`
	SessionID    string `json:"session_id,omitempty"`
	Wins         uint64 `json:"wins"`
	Pending      bool   `json:"pending"`
	PublishBlock uint64 `json:"publish_block"`
}

type TopWinnerRecord struct {
	Winner       string `json:"winner"`
	Wins         uint64 `json:"wins"`
	PublishBlock uint64 `json:"publish_block"`
	ResolvedAt   int64  `json:"resolved_at"`
}
