package game

import (
	"testing"

	"github.com/wfunc/partyroom/models"
)

func containsCard(cards []int, card int) bool {
	for _, c := range cards {
		if c == card {
			return true
		}
	}
	return false
}

func cardsPlayer(id string, hand []int) *models.Player {
	return &models.Player{
		ID: id,
		PlayerData: models.PlayerData{
			Type:  models.GameCards,
			Cards: &models.CardsData{Hand: hand},
		},
	}
}

func TestApplyCardsDecision_DiscardAndHoldingBox(t *testing.T) {
	winner := cardsPlayer("W", []int{1, 2, 3, 4})
	winner.PlayerData.Cards.SelectedCards = []int{2, 4}
	winner.PlayerData.Cards.SubmittedCard = 2
	winner.PlayerData.Cards.HasSubmitted = true

	loser := cardsPlayer("L", []int{1, 5, 6})
	loser.PlayerData.Cards.SelectedCards = []int{5, 6}
	loser.PlayerData.Cards.SubmittedCard = 5
	loser.PlayerData.Cards.HasSubmitted = true

	players := []*models.Player{winner, loser}
	dec := CardsDecision{WinnerID: "W", WinningCard: 2, HasWinner: true}
	ApplyCardsDecision(players, dec, 3)

	wc := winner.PlayerData.Cards
	if containsCard(wc.Hand, 2) || containsCard(wc.Hand, 4) {
		t.Errorf("selected cards should leave the hand, hand = %v", wc.Hand)
	}
	if wc.Points != 2 {
		t.Errorf("winner points = %d, want 2", wc.Points)
	}
	if wc.Tokens != 1 {
		t.Errorf("winner tokens = %d, want 1", wc.Tokens)
	}

	// 提交的牌永久弃置,未提交的候选牌隔一轮返还
	var submitted, unchosen *models.HeldCard
	for i := range wc.HoldingBox {
		h := &wc.HoldingBox[i]
		switch h.Card {
		case 2:
			submitted = h
		case 4:
			unchosen = h
		}
	}
	if submitted == nil || submitted.ReturnRound != 0 {
		t.Errorf("submitted card should never return, got %+v", submitted)
	}
	if unchosen == nil || unchosen.ReturnRound != 5 {
		t.Errorf("unchosen card should return at round 5, got %+v", unchosen)
	}

	lc := loser.PlayerData.Cards
	if lc.Points != 0 || lc.Tokens != 0 {
		t.Errorf("loser should not score, got points %d tokens %d", lc.Points, lc.Tokens)
	}
	if containsCard(lc.Hand, 5) || containsCard(lc.Hand, 6) {
		t.Errorf("loser selections should leave the hand, hand = %v", lc.Hand)
	}
}

func TestApplyCardsDecision_SkipsEliminatedAndUnsubmitted(t *testing.T) {
	out := cardsPlayer("E", []int{1, 2})
	out.PlayerData.Cards.Eliminated = true

	idle := cardsPlayer("I", []int{3, 4})

	ApplyCardsDecision([]*models.Player{out, idle}, CardsDecision{}, 1)

	if len(out.PlayerData.Cards.Hand) != 2 || len(idle.PlayerData.Cards.Hand) != 2 {
		t.Error("players without a submission must keep their hands untouched")
	}
}

func TestEliminateLowest(t *testing.T) {
	a := cardsPlayer("A", nil)
	a.PlayerData.Cards.Points = 10
	b := cardsPlayer("B", nil)
	b.PlayerData.Cards.Points = 4
	c := cardsPlayer("C", nil)
	c.PlayerData.Cards.Points = 7

	id, ok := EliminateLowest([]*models.Player{a, b, c})
	if !ok || id != "B" {
		t.Fatalf("expected B eliminated, got %q ok=%v", id, ok)
	}
	if !b.PlayerData.Cards.Eliminated {
		t.Error("eliminated flag not set")
	}
}

func TestEliminateLowest_TieKeepsEveryone(t *testing.T) {
	a := cardsPlayer("A", nil)
	a.PlayerData.Cards.Points = 4
	b := cardsPlayer("B", nil)
	b.PlayerData.Cards.Points = 4
	c := cardsPlayer("C", nil)
	c.PlayerData.Cards.Points = 9

	if id, ok := EliminateLowest([]*models.Player{a, b, c}); ok {
		t.Errorf("tie at the bottom must eliminate nobody, got %s", id)
	}
}

func TestEliminateLowest_IgnoresAlreadyEliminated(t *testing.T) {
	gone := cardsPlayer("G", nil)
	gone.PlayerData.Cards.Points = 0
	gone.PlayerData.Cards.Eliminated = true
	b := cardsPlayer("B", nil)
	b.PlayerData.Cards.Points = 3
	c := cardsPlayer("C", nil)
	c.PlayerData.Cards.Points = 8

	id, ok := EliminateLowest([]*models.Player{gone, b, c})
	if !ok || id != "B" {
		t.Errorf("expected B, got %q ok=%v", id, ok)
	}
}

func TestResetDecks(t *testing.T) {
	p := cardsPlayer("P", []int{3})
	p.PlayerData.Cards.HoldingBox = []models.HeldCard{{Card: 1}, {Card: 2, ReturnRound: 6}}

	gone := cardsPlayer("G", []int{1})
	gone.PlayerData.Cards.Eliminated = true

	ResetDecks([]*models.Player{p, gone})

	if len(p.PlayerData.Cards.Hand) != models.DeckSize {
		t.Errorf("hand size = %d, want %d", len(p.PlayerData.Cards.Hand), models.DeckSize)
	}
	if len(p.PlayerData.Cards.HoldingBox) != 0 {
		t.Error("holding box should be cleared on reset")
	}
	if len(gone.PlayerData.Cards.Hand) != 1 {
		t.Error("eliminated players are not reset")
	}
}
