// game/deck.go
package game

import (
	"github.com/wfunc/partyroom/models"
)

// ApplyCardsDecision mutates the per-player payloads for a resolved card
// round: the winner scores the card value plus a victory token, every
// submitted card is discarded, and each loser's unchosen selected card goes
// to the holding box to return after exactly one round.
func ApplyCardsDecision(players []*models.Player, dec CardsDecision, currentRound int) {
	for _, p := range players {
		c := p.PlayerData.Cards
		if c == nil || c.Eliminated || !c.HasSubmitted {
			continue
		}

		// 提交的牌永久弃置（直到 deck reset）
		c.Hand = removeCard(c.Hand, c.SubmittedCard)
		c.HoldingBox = append(c.HoldingBox, models.HeldCard{Card: c.SubmittedCard})

		// 未提交的候选牌隔一轮返还
		for _, sel := range c.SelectedCards {
			if sel == c.SubmittedCard {
				continue
			}
			c.Hand = removeCard(c.Hand, sel)
			c.HoldingBox = append(c.HoldingBox, models.HeldCard{Card: sel, ReturnRound: currentRound + 2})
		}

		if dec.HasWinner && p.ID == dec.WinnerID {
			c.Points += dec.WinningCard
			c.Tokens++
		}
	}
}

// EliminateLowest marks the lowest-scoring surviving player as eliminated
// and returns its id. Ties keep everyone: elimination needs a strict lowest.
func EliminateLowest(players []*models.Player) (string, bool) {
	var lowest *models.Player
	tied := false
	for _, p := range players {
		c := p.PlayerData.Cards
		if c == nil || c.Eliminated {
			continue
		}
		switch {
		case lowest == nil || c.Points < lowest.PlayerData.Cards.Points:
			lowest = p
			tied = false
		case c.Points == lowest.PlayerData.Cards.Points:
			tied = true
		}
	}
	if lowest == nil || tied {
		return "", false
	}
	lowest.PlayerData.Cards.Eliminated = true
	return lowest.ID, true
}

// ResetDecks 完整恢复所有存活玩家的手牌并清空暂存盒
func ResetDecks(players []*models.Player) {
	for _, p := range players {
		c := p.PlayerData.Cards
		if c == nil || c.Eliminated {
			continue
		}
		c.Hand = models.FullHand()
		c.HoldingBox = nil
	}
}

func removeCard(hand []int, card int) []int {
	for i, c := range hand {
		if c == card {
			return append(hand[:i], hand[i+1:]...)
		}
	}
	return hand
}
