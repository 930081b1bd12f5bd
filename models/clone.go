package models

// Clone returns a deep copy so store snapshots never alias caller memory.
func (d PlayerData) Clone() PlayerData {
	out := d
	if d.Auction != nil {
		a := *d.Auction
		if d.Auction.PressedAt != nil {
			t := *d.Auction.PressedAt
			a.PressedAt = &t
		}
		out.Auction = &a
	}
	if d.Cards != nil {
		c := *d.Cards
		c.Hand = append([]int(nil), d.Cards.Hand...)
		c.HoldingBox = append([]HeldCard(nil), d.Cards.HoldingBox...)
		c.SelectedCards = append([]int(nil), d.Cards.SelectedCards...)
		out.Cards = &c
	}
	return out
}

func (p *Player) Clone() *Player {
	out := *p
	out.PlayerData = p.PlayerData.Clone()
	return &out
}

func (s GameState) Clone() GameState {
	out := s
	if s.CountdownStart != nil {
		t := *s.CountdownStart
		out.CountdownStart = &t
	}
	if s.AuctionStart != nil {
		t := *s.AuctionStart
		out.AuctionStart = &t
	}
	return out
}

func (r *Room) Clone() *Room {
	out := *r
	out.GameState = r.GameState.Clone()
	out.GameSettings.SurvivalRounds = append([]int(nil), r.GameSettings.SurvivalRounds...)
	out.GameSettings.DeckResetRounds = append([]int(nil), r.GameSettings.DeckResetRounds...)
	return &out
}
