// game/resolver.go
package game

import (
	"time"
)

// Bid 一名参与者的出价（按住时长，毫秒）
type Bid struct {
	PlayerID string
	ValueMs  int64
}

// Submission is one player's revealed card in the cards variant.
type Submission struct {
	PlayerID string
	Card     int
}

// AuctionDecision is the outcome of a time-auction round. The resolver never
// mutates player rows; the coordinator applies the decision.
type AuctionDecision struct {
	WinnerID     string
	WinningBidMs int64
	HasWinner    bool
}

// CardsDecision is the outcome of a card-elimination round.
type CardsDecision struct {
	WinnerID    string
	WinningCard int
	HasWinner   bool
}

// ResolveAuction 最大出价获胜;若有两个及以上出价落在最大值的容差内,
// 则本轮无胜者。
func ResolveAuction(bids []Bid, tolerance time.Duration) AuctionDecision {
	if len(bids) == 0 {
		return AuctionDecision{}
	}
	tolMs := tolerance.Milliseconds()

	max := bids[0].ValueMs
	winner := bids[0].PlayerID
	for _, b := range bids[1:] {
		if b.ValueMs > max {
			max = b.ValueMs
			winner = b.PlayerID
		}
	}

	contenders := 0
	for _, b := range bids {
		if max-b.ValueMs <= tolMs {
			contenders++
		}
	}
	if contenders > 1 {
		return AuctionDecision{}
	}
	return AuctionDecision{WinnerID: winner, WinningBidMs: max, HasWinner: true}
}

// ResolveUniqueMin 在出现次数恰为 1 的牌中取最小值;全部重复则无胜者。
func ResolveUniqueMin(subs []Submission) CardsDecision {
	counts := make(map[int]int, len(subs))
	for _, s := range subs {
		counts[s.Card]++
	}

	best := CardsDecision{}
	for _, s := range subs {
		if counts[s.Card] != 1 {
			continue
		}
		if !best.HasWinner || s.Card < best.WinningCard {
			best = CardsDecision{WinnerID: s.PlayerID, WinningCard: s.Card, HasWinner: true}
		}
	}
	return best
}

// ClampBid 将按住时长收敛到 [0, 剩余时间银行]
func ClampBid(elapsedMs, bankMs int64) int64 {
	if elapsedMs < 0 {
		return 0
	}
	if elapsedMs > bankMs {
		return bankMs
	}
	return elapsedMs
}
