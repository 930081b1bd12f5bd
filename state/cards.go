// state/cards.go
package state

import (
	"fmt"
	"time"

	"github.com/wfunc/partyroom/game"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
)

// 每轮候选牌数
const selectionSize = 2

// NewCardSelectionState creates the round-start state for the cards variant.
func NewCardSelectionState(room RoomContext, round int) *CardSelectionState {
	return &CardSelectionState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseCardSelection), Room: room},
		round:         round,
	}
}

// CardSelectionState 每名玩家从手牌挑出候选牌
type CardSelectionState struct {
	RoomStateBase
	round    int
	settleAt time.Time
}

func (s *CardSelectionState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseCardSelection
		st.CurrentRound = s.round
		st.LastPhaseUpdate = now
		st.PhaseTimeout = now.Add(s.Room.Timing().PhaseTimeout())
		st.WinnerID = ""
		st.WinningCard = 0
		st.Resolved = false
	})
	if err != nil {
		logger.Log.Errorf("room %s: cardSelection enter: %v", s.Room.GetID(), err)
	}
}

func (s *CardSelectionState) HandleAction(player Player, action Action) error {
	if action.Type != ActionSelectCard {
		return ErrActionNotAllowed
	}
	p := findPlayer(s.Room, player.GetID())
	if p == nil || p.PlayerData.Cards == nil {
		return ErrActionNotAllowed
	}
	c := p.PlayerData.Cards
	if c.Eliminated {
		return ErrActionNotAllowed
	}

	// 再选已选的牌 = 取消选择
	for i, sel := range c.SelectedCards {
		if sel == action.Card {
			c.SelectedCards = append(c.SelectedCards[:i], c.SelectedCards[i+1:]...)
			return s.Room.UpdatePlayerData(p.ID, p.PlayerData)
		}
	}

	if !containsCard(c.Hand, action.Card) {
		return fmt.Errorf("card %d not in hand", action.Card)
	}
	if len(c.SelectedCards) >= wantedSelections(c) {
		return nil // 已选满,无操作
	}
	c.SelectedCards = append(c.SelectedCards, action.Card)
	s.Room.LogAction(p.ID, action.Type, fmt.Sprintf("card=%d", action.Card))
	return s.Room.UpdatePlayerData(p.ID, p.PlayerData)
}

func (s *CardSelectionState) OnUpdate() {
	if s.timedOut() {
		s.advance(true)
		return
	}

	eligible := s.Room.Eligible()
	if len(eligible) < s.Room.Settings().MinPlayers || !allSelected(eligible) {
		s.settleAt = time.Time{}
		return
	}

	now := s.Room.Now()
	if s.settleAt.IsZero() {
		s.settleAt = now.Add(s.Room.Timing().SettleDelay())
		return
	}
	if now.Before(s.settleAt) {
		return
	}
	if allSelected(s.Room.Eligible()) {
		s.advance(false)
	} else {
		s.settleAt = time.Time{}
	}
}

func (s *CardSelectionState) advance(forced bool) {
	s.Room.RecordTransition(forced)
	if err := s.Room.ChangeState(NewFinalChoiceState(s.Room)); err != nil {
		logger.Log.Errorf("room %s: cardSelection->finalChoice: %v", s.Room.GetID(), err)
	}
}

func wantedSelections(c *models.CardsData) int {
	if len(c.Hand) < selectionSize {
		return len(c.Hand)
	}
	return selectionSize
}

func allSelected(players []*models.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		c := p.PlayerData.Cards
		if c == nil || len(c.SelectedCards) < wantedSelections(c) {
			return false
		}
	}
	return true
}

// NewFinalChoiceState creates the submit-one-card state.
func NewFinalChoiceState(room RoomContext) *FinalChoiceState {
	return &FinalChoiceState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseFinalChoice), Room: room},
	}
}

// FinalChoiceState 从候选牌中敲定一张提交。提交闩保证重复提交为无操作。
type FinalChoiceState struct {
	RoomStateBase
	settleAt time.Time
}

func (s *FinalChoiceState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseFinalChoice
		st.LastPhaseUpdate = now
		st.PhaseTimeout = now.Add(s.Room.Timing().PhaseTimeout())
	})
	if err != nil {
		logger.Log.Errorf("room %s: finalChoice enter: %v", s.Room.GetID(), err)
	}
}

func (s *FinalChoiceState) HandleAction(player Player, action Action) error {
	if action.Type != ActionSubmitCard {
		return ErrActionNotAllowed
	}
	p := findPlayer(s.Room, player.GetID())
	if p == nil || p.PlayerData.Cards == nil {
		return ErrActionNotAllowed
	}
	c := p.PlayerData.Cards
	if c.Eliminated {
		return ErrActionNotAllowed
	}
	if c.HasSubmitted {
		return ErrAlreadySubmitted
	}
	if !containsCard(c.SelectedCards, action.Card) {
		return fmt.Errorf("card %d not among selections", action.Card)
	}
	c.SubmittedCard = action.Card
	c.HasSubmitted = true
	s.Room.LogAction(p.ID, action.Type, fmt.Sprintf("card=%d", action.Card))
	return s.Room.UpdatePlayerData(p.ID, p.PlayerData)
}

func (s *FinalChoiceState) OnUpdate() {
	if s.timedOut() {
		s.advance(true)
		return
	}

	eligible := s.Room.Eligible()
	if !allSubmitted(eligible) {
		s.settleAt = time.Time{}
		return
	}

	now := s.Room.Now()
	if s.settleAt.IsZero() {
		s.settleAt = now.Add(s.Room.Timing().SettleDelay())
		return
	}
	if now.Before(s.settleAt) {
		return
	}
	if allSubmitted(s.Room.Eligible()) {
		s.advance(false)
	} else {
		s.settleAt = time.Time{}
	}
}

func (s *FinalChoiceState) advance(forced bool) {
	s.Room.RecordTransition(forced)
	if err := s.Room.ChangeState(NewRevealState(s.Room)); err != nil {
		logger.Log.Errorf("room %s: finalChoice->reveal: %v", s.Room.GetID(), err)
	}
}

func allSubmitted(players []*models.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		c := p.PlayerData.Cards
		if c == nil {
			return false
		}
		// 没有候选牌的玩家(被强推进来)跳过
		if len(c.SelectedCards) == 0 {
			continue
		}
		if !c.HasSubmitted {
			return false
		}
	}
	return true
}

// NewRevealState creates the reveal/scoring state.
func NewRevealState(room RoomContext) *RevealState {
	return &RevealState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseReveal), Room: room},
	}
}

// RevealState 公示并结算:唯一最小值获胜
type RevealState struct {
	RoomStateBase
}

func (s *RevealState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseReveal
		st.LastPhaseUpdate = now
		st.PhaseTimeout = now.Add(s.Room.Timing().ResultsDelay())
	})
	if err != nil {
		logger.Log.Errorf("room %s: reveal enter: %v", s.Room.GetID(), err)
	}
	s.resolve()
}

func (s *RevealState) resolve() {
	if !s.Room.TryBeginProcessing() {
		return
	}
	defer s.Room.EndProcessing()

	if s.Room.State().Resolved {
		return
	}

	players := s.Room.Players()
	var subs []game.Submission
	for _, p := range players {
		c := p.PlayerData.Cards
		if c == nil || c.Eliminated || !c.HasSubmitted {
			continue
		}
		subs = append(subs, game.Submission{PlayerID: p.ID, Card: c.SubmittedCard})
	}

	round := s.Room.State().CurrentRound
	dec := game.ResolveUniqueMin(subs)

	// 先落盘 Resolved 再改玩家行:状态写失败时牌面未动,
	// 下次轮询整体重试,不会重复计分或重复入收纳盒
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.WinnerID = dec.WinnerID
		st.WinningCard = dec.WinningCard
		st.Resolved = true
	})
	if err != nil {
		logger.Log.Errorf("room %s: record reveal: %v", s.Room.GetID(), err)
		return
	}

	game.ApplyCardsDecision(players, dec, round)
	for _, p := range players {
		if p.PlayerData.Cards == nil {
			continue
		}
		if err := s.Room.UpdatePlayerData(p.ID, p.PlayerData); err != nil {
			logger.Log.Errorf("room %s: apply decision %s: %v", s.Room.GetID(), p.ID, err)
		}
	}
}

func (s *RevealState) HandleAction(player Player, action Action) error {
	if action.Type != ActionContinue {
		return ErrActionNotAllowed
	}
	s.advance(false)
	return nil
}

func (s *RevealState) OnUpdate() {
	if !s.Room.State().Resolved {
		s.resolve()
	}
	if s.timedOut() {
		s.advance(true)
	}
}

func (s *RevealState) advance(forced bool) {
	s.Room.RecordTransition(forced)
	round := s.Room.State().CurrentRound
	// 淘汰检查与重置检查基于同一轮次表但相互独立
	if s.Room.Settings().IsSurvivalRound(round) || s.Room.Settings().IsDeckResetRound(round) {
		if err := s.Room.ChangeState(NewSurvivalState(s.Room)); err != nil {
			logger.Log.Errorf("room %s: reveal->survival: %v", s.Room.GetID(), err)
		}
		return
	}
	advanceCardsRound(s.Room)
}

// NewSurvivalState creates the elimination/deck-reset state.
func NewSurvivalState(room RoomContext) *SurvivalState {
	return &SurvivalState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseSurvival), Room: room},
	}
}

// SurvivalState 指定轮次后淘汰最低分;重置轮次(生存轮子集)完整恢复牌库
type SurvivalState struct {
	RoomStateBase
}

func (s *SurvivalState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseSurvival
		st.LastPhaseUpdate = now
		st.PhaseTimeout = now.Add(s.Room.Timing().ResultsDelay())
	})
	if err != nil {
		logger.Log.Errorf("room %s: survival enter: %v", s.Room.GetID(), err)
	}
	s.process()
}

func (s *SurvivalState) process() {
	if !s.Room.TryBeginProcessing() {
		return
	}
	defer s.Room.EndProcessing()

	round := s.Room.State().CurrentRound
	players := s.Room.Players()

	if s.Room.Settings().IsSurvivalRound(round) {
		if id, ok := game.EliminateLowest(players); ok {
			logger.Log.Infof("room %s: player %s eliminated after round %d", s.Room.GetID(), id, round)
		}
	}
	if s.Room.Settings().IsDeckResetRound(round) {
		game.ResetDecks(players)
	}
	for _, p := range players {
		if p.PlayerData.Cards == nil {
			continue
		}
		if err := s.Room.UpdatePlayerData(p.ID, p.PlayerData); err != nil {
			logger.Log.Errorf("room %s: survival update %s: %v", s.Room.GetID(), p.ID, err)
		}
	}
}

func (s *SurvivalState) HandleAction(player Player, action Action) error {
	if action.Type != ActionContinue {
		return ErrActionNotAllowed
	}
	s.advance(false)
	return nil
}

func (s *SurvivalState) OnUpdate() {
	if s.timedOut() {
		s.advance(true)
	}
}

func (s *SurvivalState) advance(forced bool) {
	s.Room.RecordTransition(forced)

	// 只剩一名存活者则提前终局
	survivors := 0
	for _, p := range s.Room.Players() {
		if c := p.PlayerData.Cards; c != nil && !c.Eliminated {
			survivors++
		}
	}
	if survivors <= 1 {
		if err := s.Room.ChangeState(NewGameOverState(s.Room)); err != nil {
			logger.Log.Errorf("room %s: survival->gameOver: %v", s.Room.GetID(), err)
		}
		return
	}
	advanceCardsRound(s.Room)
}

// advanceCardsRound 进入下一轮或终局,轮次临时字段在此恰好清一次
func advanceCardsRound(room RoomContext) {
	st := room.State()
	if st.CurrentRound >= room.Settings().TotalRounds {
		if err := room.ChangeState(NewGameOverState(room)); err != nil {
			logger.Log.Errorf("room %s: ->gameOver: %v", room.GetID(), err)
		}
		return
	}
	next := st.CurrentRound + 1
	room.ResetRoundPlayers(next)
	if err := room.ChangeState(NewCardSelectionState(room, next)); err != nil {
		logger.Log.Errorf("room %s: ->cardSelection: %v", room.GetID(), err)
	}
}

func containsCard(cards []int, card int) bool {
	for _, c := range cards {
		if c == card {
			return true
		}
	}
	return false
}
