// state/auction.go
package state

import (
	"time"

	"github.com/wfunc/partyroom/game"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
)

// NewWaitingState creates the round-start state for the auction variants.
func NewWaitingState(room RoomContext, round int) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseWaiting), Room: room},
		round:         round,
	}
}

// WaitingState 等待所有可参与玩家按下控制键
type WaitingState struct {
	RoomStateBase
	round    int
	settleAt time.Time
}

func (s *WaitingState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseWaiting
		st.CurrentRound = s.round
		st.LastPhaseUpdate = now
		st.PhaseTimeout = now.Add(s.Room.Timing().PhaseTimeout())
		st.CountdownStart = nil
		st.AuctionStart = nil
		st.WinnerID = ""
		st.WinningBidMs = 0
		st.Resolved = false
	})
	if err != nil {
		logger.Log.Errorf("room %s: waiting enter: %v", s.Room.GetID(), err)
	}
}

func (s *WaitingState) HandleAction(player Player, action Action) error {
	p := findPlayer(s.Room, player.GetID())
	if p == nil || p.PlayerData.Auction == nil {
		return ErrActionNotAllowed
	}
	a := p.PlayerData.Auction
	switch action.Type {
	case ActionPress:
		if a.Pressing {
			return nil // 重复按下,无操作
		}
		now := s.Room.Now()
		a.Pressing = true
		a.PressedAt = &now
	case ActionRelease:
		// 等待阶段允许反悔,不算弃权
		if !a.Pressing {
			return nil
		}
		a.Pressing = false
		a.PressedAt = nil
	default:
		return ErrActionNotAllowed
	}
	s.Room.LogAction(p.ID, action.Type, "")
	return s.Room.UpdatePlayerData(p.ID, p.PlayerData)
}

func (s *WaitingState) OnUpdate() {
	if s.timedOut() {
		s.advance(true)
		return
	}

	eligible := s.Room.Eligible()
	if len(eligible) < s.Room.Settings().MinPlayers || !allPressing(eligible) {
		s.settleAt = time.Time{}
		return
	}

	// 首次观察到全员就绪:等一个沉降窗口再用新快照复查,
	// 吸收写入传播延迟。
	now := s.Room.Now()
	if s.settleAt.IsZero() {
		s.settleAt = now.Add(s.Room.Timing().SettleDelay())
		return
	}
	if now.Before(s.settleAt) {
		return
	}
	if allPressing(s.Room.Eligible()) {
		s.advance(false)
	} else {
		s.settleAt = time.Time{}
	}
}

func (s *WaitingState) advance(forced bool) {
	s.Room.RecordTransition(forced)
	if err := s.Room.ChangeState(NewCountdownState(s.Room)); err != nil {
		logger.Log.Errorf("room %s: waiting->countdown: %v", s.Room.GetID(), err)
	}
}

func allPressing(players []*models.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if p.PlayerData.Auction == nil || !p.PlayerData.Auction.Pressing {
			return false
		}
	}
	return true
}

// NewCountdownState creates the fixed-duration countdown state.
func NewCountdownState(room RoomContext) *CountdownState {
	return &CountdownState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseCountdown), Room: room},
	}
}

// CountdownState 固定时长倒计时。客户端用 CountdownStart 自行推算剩余,
// 服务端不推送滴答。
type CountdownState struct {
	RoomStateBase
}

func (s *CountdownState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseCountdown
		st.LastPhaseUpdate = now
		st.CountdownStart = &now
		st.PhaseTimeout = now.Add(s.Room.Timing().Countdown() + s.Room.Timing().PhaseTimeout())
	})
	if err != nil {
		logger.Log.Errorf("room %s: countdown enter: %v", s.Room.GetID(), err)
	}
}

func (s *CountdownState) HandleAction(player Player, action Action) error {
	p := findPlayer(s.Room, player.GetID())
	if p == nil || p.PlayerData.Auction == nil {
		return ErrActionNotAllowed
	}
	a := p.PlayerData.Auction
	switch action.Type {
	case ActionRelease:
		// 倒计时中松开 = 本轮弃权,不是出局
		if a.OptedOut {
			return nil
		}
		a.Pressing = false
		a.PressedAt = nil
		a.OptedOut = true
	case ActionPress:
		// 倒计时开始后不能再加入本轮
		return nil
	default:
		return ErrActionNotAllowed
	}
	s.Room.LogAction(p.ID, "optOut", "")
	return s.Room.UpdatePlayerData(p.ID, p.PlayerData)
}

func (s *CountdownState) OnUpdate() {
	st := s.Room.State()
	if st.CountdownStart == nil {
		return
	}
	elapsed := s.Room.Now().Sub(*st.CountdownStart)
	if elapsed >= s.Room.Timing().Countdown() {
		s.Room.RecordTransition(false)
		if err := s.Room.ChangeState(NewAuctionState(s.Room)); err != nil {
			logger.Log.Errorf("room %s: countdown->auction: %v", s.Room.GetID(), err)
		}
		return
	}
	if s.timedOut() {
		s.Room.RecordTransition(true)
		if err := s.Room.ChangeState(NewAuctionState(s.Room)); err != nil {
			logger.Log.Errorf("room %s: countdown->auction (forced): %v", s.Room.GetID(), err)
		}
	}
}

// NewAuctionState creates the live auction state.
func NewAuctionState(room RoomContext) *AuctionState {
	return &AuctionState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseAuction), Room: room},
	}
}

// AuctionState 拍卖进行中。AuctionStart 是拍卖真正开始的唯一时间戳,
// 宽限期在进入时一次性计入。
type AuctionState struct {
	RoomStateBase
}

func (s *AuctionState) OnEnter() {
	start := s.Room.Now().Add(s.Room.Timing().Grace())
	maxBank := time.Duration(s.Room.Settings().TimeBankMs) * time.Millisecond
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseAuction
		st.LastPhaseUpdate = s.Room.Now()
		st.AuctionStart = &start
		st.PhaseTimeout = start.Add(maxBank + s.Room.Timing().PhaseTimeout())
	})
	if err != nil {
		logger.Log.Errorf("room %s: auction enter: %v", s.Room.GetID(), err)
	}
}

func (s *AuctionState) HandleAction(player Player, action Action) error {
	if action.Type != ActionRelease {
		return ErrActionNotAllowed
	}
	p := findPlayer(s.Room, player.GetID())
	if p == nil || p.PlayerData.Auction == nil {
		return ErrActionNotAllowed
	}
	a := p.PlayerData.Auction
	if a.OptedOut || !a.Pressing || a.HasBid {
		// 快速输入下 release 可能触发多次,重复的按无操作处理
		return nil
	}
	s.finalize(p, s.Room.Now())
	return s.Room.UpdatePlayerData(p.ID, p.PlayerData)
}

// finalize 写入最终出价并一次性扣减时间银行,此后同轮不再调整
func (s *AuctionState) finalize(p *models.Player, at time.Time) {
	st := s.Room.State()
	a := p.PlayerData.Auction
	var elapsed int64
	if st.AuctionStart != nil {
		elapsed = at.Sub(*st.AuctionStart).Milliseconds()
	}
	bid := game.ClampBid(elapsed, a.TimeBankMs)
	a.BidMs = bid
	a.HasBid = true
	a.Pressing = false
	a.TimeBankMs -= bid
	s.Room.LogAction(p.ID, ActionRelease, "")
}

func (s *AuctionState) OnUpdate() {
	st := s.Room.State()
	if st.AuctionStart == nil {
		return
	}
	now := s.Room.Now()
	forced := s.timedOut()

	holders := 0
	for _, p := range s.Room.Players() {
		a := p.PlayerData.Auction
		if a == nil || a.OptedOut || a.HasBid || !a.Pressing {
			continue
		}
		// 时间银行耗尽时自动敲定,参与资格随之终止
		exhausted := now.Sub(*st.AuctionStart).Milliseconds() >= a.TimeBankMs
		if exhausted || forced {
			s.finalize(p, now)
			if err := s.Room.UpdatePlayerData(p.ID, p.PlayerData); err != nil {
				logger.Log.Errorf("room %s: finalize %s: %v", s.Room.GetID(), p.ID, err)
			}
			continue
		}
		holders++
	}

	if holders == 0 {
		s.Room.RecordTransition(forced)
		if err := s.Room.ChangeState(NewResultsState(s.Room)); err != nil {
			logger.Log.Errorf("room %s: auction->results: %v", s.Room.GetID(), err)
		}
	}
}

// NewResultsState creates the round-result state.
func NewResultsState(room RoomContext) *ResultsState {
	return &ResultsState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseResults), Room: room},
	}
}

// ResultsState 结算并公示胜者。只公开胜者身份和出价,
// 落败出价保持私密。
type ResultsState struct {
	RoomStateBase
}

func (s *ResultsState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseResults
		st.LastPhaseUpdate = now
		st.PhaseTimeout = now.Add(s.Room.Timing().ResultsDelay())
	})
	if err != nil {
		logger.Log.Errorf("room %s: results enter: %v", s.Room.GetID(), err)
	}
	s.resolve()
}

// resolve 结算本轮。进行中闩 + Resolved 标记双重保护,
// 轮询和事件回调重复触发也不会二次加分。
func (s *ResultsState) resolve() {
	if !s.Room.TryBeginProcessing() {
		return
	}
	defer s.Room.EndProcessing()

	if s.Room.State().Resolved {
		return
	}

	var bids []game.Bid
	for _, p := range s.Room.Players() {
		a := p.PlayerData.Auction
		if a == nil || a.OptedOut || !a.HasBid {
			continue
		}
		bids = append(bids, game.Bid{PlayerID: p.ID, ValueMs: a.BidMs})
	}

	dec := game.ResolveAuction(bids, s.Room.Timing().TieTolerance())

	// 先落盘 Resolved 再发奖:状态写失败时玩家行未动,
	// 下次轮询整体重试,令牌不会加两次
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.WinnerID = dec.WinnerID
		st.WinningBidMs = dec.WinningBidMs
		st.Resolved = true
	})
	if err != nil {
		logger.Log.Errorf("room %s: record result: %v", s.Room.GetID(), err)
		return
	}

	if dec.HasWinner {
		if winner := findPlayer(s.Room, dec.WinnerID); winner != nil && winner.PlayerData.Auction != nil {
			winner.PlayerData.Auction.Tokens++
			if err := s.Room.UpdatePlayerData(winner.ID, winner.PlayerData); err != nil {
				logger.Log.Errorf("room %s: award token: %v", s.Room.GetID(), err)
			}
		}
	}
}

func (s *ResultsState) HandleAction(player Player, action Action) error {
	if action.Type != ActionContinue {
		return ErrActionNotAllowed
	}
	// 主持人校验在协调器完成
	s.advance(false)
	return nil
}

func (s *ResultsState) OnUpdate() {
	// 处理结算可能因写失败未完成的情形
	if !s.Room.State().Resolved {
		s.resolve()
	}
	if s.timedOut() {
		s.advance(true)
	}
}

func (s *ResultsState) advance(forced bool) {
	s.Room.RecordTransition(forced)
	st := s.Room.State()
	if st.CurrentRound >= s.Room.Settings().TotalRounds {
		if err := s.Room.ChangeState(NewGameOverState(s.Room)); err != nil {
			logger.Log.Errorf("room %s: results->gameOver: %v", s.Room.GetID(), err)
		}
		return
	}
	next := st.CurrentRound + 1
	s.Room.ResetRoundPlayers(next)
	if err := s.Room.ChangeState(NewWaitingState(s.Room, next)); err != nil {
		logger.Log.Errorf("room %s: results->waiting: %v", s.Room.GetID(), err)
	}
}

// NewGameOverState creates the terminal state.
func NewGameOverState(room RoomContext) *GameOverState {
	return &GameOverState{
		RoomStateBase: RoomStateBase{ID: string(models.PhaseGameOver), Room: room},
	}
}

// GameOverState 终态
type GameOverState struct {
	RoomStateBase
}

func (s *GameOverState) OnEnter() {
	now := s.Room.Now()
	err := s.Room.ApplyState(func(st *models.GameState) {
		st.Phase = models.PhaseGameOver
		st.LastPhaseUpdate = now
		st.PhaseTimeout = time.Time{}
	})
	if err != nil {
		logger.Log.Errorf("room %s: gameOver enter: %v", s.Room.GetID(), err)
	}
	s.Room.FinishGame()
}

func findPlayer(room RoomContext, id string) *models.Player {
	for _, p := range room.Players() {
		if p.ID == id {
			return p
		}
	}
	return nil
}
