// models/models.go
package models

import (
	"errors"
	"fmt"
	"time"
)

// GameType 游戏变体
type GameType string

const (
	GameAuction   GameType = "auction"   // 经典时间拍卖
	GameTerritory GameType = "territory" // 领地变体（棋盘逻辑在客户端，协调层同拍卖）
	GameCards     GameType = "cards"     // 卡牌淘汰
)

// Phase 房间内阶段
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhaseAuction   Phase = "auction"
	PhaseResults   Phase = "results"
	PhaseGameOver  Phase = "gameOver"

	// 卡牌变体阶段
	PhaseCardSelection Phase = "cardSelection"
	PhaseFinalChoice   Phase = "finalChoice"
	PhaseReveal        Phase = "reveal"
	PhaseSurvival      Phase = "survival"
)

// DeckSize is the number of cards dealt to each player in the cards variant.
const DeckSize = 8

// GameSettings 创建时写入，之后不可变
type GameSettings struct {
	TotalRounds    int   `json:"totalRounds"`
	TimeBankMs     int64 `json:"timeBankMs"`
	MinPlayers     int   `json:"minPlayers"`
	MaxPlayers     int   `json:"maxPlayers"`
	SurvivalRounds []int `json:"survivalRounds,omitempty"`
	DeckResetRounds []int `json:"deckResetRounds,omitempty"`
}

// DefaultSettings 各玩法的默认配置,创建房间未显式指定时使用
func DefaultSettings(gameType GameType) GameSettings {
	switch gameType {
	case GameCards:
		return GameSettings{
			TotalRounds:     10,
			MinPlayers:      2,
			MaxPlayers:      8,
			SurvivalRounds:  []int{4, 7, 10},
			DeckResetRounds: []int{7},
		}
	default:
		return GameSettings{
			TotalRounds: 5,
			TimeBankMs:  60_000,
			MinPlayers:  2,
			MaxPlayers:  8,
		}
	}
}

func (s GameSettings) Validate(gameType GameType) error {
	if s.TotalRounds <= 0 {
		return errors.New("totalRounds must be positive")
	}
	if s.MinPlayers < 2 || s.MaxPlayers < s.MinPlayers {
		return errors.New("invalid player limits")
	}
	switch gameType {
	case GameAuction, GameTerritory:
		if s.TimeBankMs <= 0 {
			return errors.New("timeBankMs must be positive")
		}
	case GameCards:
		// 重置轮必须是生存轮的子集
		for _, r := range s.DeckResetRounds {
			if !containsRound(s.SurvivalRounds, r) {
				return fmt.Errorf("deck reset round %d is not a survival round", r)
			}
		}
	default:
		return fmt.Errorf("unknown game type %q", gameType)
	}
	return nil
}

// IsSurvivalRound reports whether the lowest-scoring player is eliminated
// after the given round.
func (s GameSettings) IsSurvivalRound(round int) bool {
	return containsRound(s.SurvivalRounds, round)
}

// IsDeckResetRound reports whether decks are fully restored after the given
// round. Independent of the survival check even though the lists overlap.
func (s GameSettings) IsDeckResetRound(round int) bool {
	return containsRound(s.DeckResetRounds, round)
}

func containsRound(list []int, round int) bool {
	for _, r := range list {
		if r == round {
			return true
		}
	}
	return false
}

// GameState 房间阶段记录。所有客户端用其中的绝对时间戳自行推算
// 剩余时间，服务端不推送滴答值。
type GameState struct {
	Phase           Phase      `json:"gamePhase"`
	CurrentRound    int        `json:"currentRound"`
	Version         int64      `json:"version"`
	LastPhaseUpdate time.Time  `json:"lastPhaseUpdate"`
	PhaseTimeout    time.Time  `json:"phaseTimeout"`
	CountdownStart  *time.Time `json:"countdownStart,omitempty"`
	// AuctionStart 是拍卖真正开始的时刻（宽限期已计入，单一语义）
	AuctionStart *time.Time `json:"auctionStart,omitempty"`
	WinnerID     string     `json:"winnerId,omitempty"`
	WinningBidMs int64      `json:"winningBidMs,omitempty"`
	WinningCard  int        `json:"winningCard,omitempty"`
	Resolved     bool       `json:"resolved,omitempty"`
}

// Room 房间行
type Room struct {
	ID           string       `json:"id"`
	RoomCode     string       `json:"room_code"`
	HostID       string       `json:"host_id"`
	GameType     GameType     `json:"game_type"`
	GameSettings GameSettings `json:"game_settings"`
	GameState    GameState    `json:"game_state"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Player 玩家行。ID 由客户端生成（UUID），入房前即作外键使用。
type Player struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"room_id"`
	PlayerName    string     `json:"player_name"`
	IsHost        bool       `json:"is_host"`
	IsConnected   bool       `json:"is_connected"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
	PlayerData    PlayerData `json:"player_data"`
	JoinedAt      time.Time  `json:"joined_at"`
}
