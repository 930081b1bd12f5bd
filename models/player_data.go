package models

import (
	"errors"
	"fmt"
	"time"
)

// PlayerData 按游戏变体区分的标签联合。每个变体的字段固定，
// 在存储边界做校验。
type PlayerData struct {
	Type    GameType     `json:"type"`
	Auction *AuctionData `json:"auction,omitempty"`
	Cards   *CardsData   `json:"cards,omitempty"`
}

// AuctionData 时间拍卖变体的玩家负载
type AuctionData struct {
	TimeBankMs int64      `json:"timeBankMs"`
	Pressing   bool       `json:"pressing"`
	PressedAt  *time.Time `json:"pressedAt,omitempty"`
	BidMs      int64      `json:"bidMs"`
	HasBid     bool       `json:"hasBid"`
	OptedOut   bool       `json:"optedOut"`
	Tokens     int        `json:"victoryTokens"`
}

// HeldCard 暂存盒中的卡。ReturnRound 为 0 表示不再返还（等 deck reset）。
type HeldCard struct {
	Card        int `json:"card"`
	ReturnRound int `json:"returnRound"`
}

// CardsData 卡牌淘汰变体的玩家负载
type CardsData struct {
	Hand          []int      `json:"hand"`
	HoldingBox    []HeldCard `json:"holdingBox,omitempty"`
	SelectedCards []int      `json:"selectedCards,omitempty"`
	SubmittedCard int        `json:"submittedCard"`
	HasSubmitted  bool       `json:"hasSubmitted"`
	Eliminated    bool       `json:"eliminated"`
	Points        int        `json:"points"`
	Tokens        int        `json:"victoryTokens"`
}

// NewPlayerData returns the initial payload for the given variant.
func NewPlayerData(gameType GameType, settings GameSettings) PlayerData {
	switch gameType {
	case GameCards:
		return PlayerData{Type: GameCards, Cards: &CardsData{Hand: FullHand()}}
	default:
		return PlayerData{Type: gameType, Auction: &AuctionData{TimeBankMs: settings.TimeBankMs}}
	}
}

// FullHand 完整手牌 1..DeckSize
func FullHand() []int {
	hand := make([]int, 0, DeckSize)
	for c := 1; c <= DeckSize; c++ {
		hand = append(hand, c)
	}
	return hand
}

// Validate 在存储边界校验联合的形状
func (d PlayerData) Validate() error {
	switch d.Type {
	case GameAuction, GameTerritory:
		if d.Auction == nil || d.Cards != nil {
			return errors.New("auction payload requires auction data only")
		}
		if d.Auction.TimeBankMs < 0 {
			return errors.New("negative time bank")
		}
	case GameCards:
		if d.Cards == nil || d.Auction != nil {
			return errors.New("cards payload requires cards data only")
		}
		for _, c := range d.Cards.Hand {
			if c < 1 || c > DeckSize {
				return fmt.Errorf("card %d out of range", c)
			}
		}
	default:
		return fmt.Errorf("unknown payload type %q", d.Type)
	}
	return nil
}

// ResetRound 清除轮次内的临时字段。只由协调器在阶段推进时调用，
// 每轮恰好一次。
func (d *PlayerData) ResetRound(nextRound int) {
	switch {
	case d.Auction != nil:
		a := d.Auction
		a.Pressing = false
		a.PressedAt = nil
		a.BidMs = 0
		a.HasBid = false
		a.OptedOut = false
	case d.Cards != nil:
		c := d.Cards
		c.SelectedCards = nil
		c.SubmittedCard = 0
		c.HasSubmitted = false
		// 到期的卡从暂存盒返还手牌
		kept := c.HoldingBox[:0]
		for _, h := range c.HoldingBox {
			if h.ReturnRound != 0 && h.ReturnRound <= nextRound {
				c.Hand = append(c.Hand, h.Card)
			} else {
				kept = append(kept, h)
			}
		}
		c.HoldingBox = kept
	}
}
