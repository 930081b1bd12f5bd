package state

import (
	"testing"
	"time"

	"github.com/wfunc/partyroom/models"
)

func TestWaitingState_AllPressingAdvancesAfterSettle(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	w := NewWaitingState(m, 1)
	m.enter(w)

	if m.state.Phase != models.PhaseWaiting || m.state.CurrentRound != 1 {
		t.Fatalf("enter wrote phase %s round %d", m.state.Phase, m.state.CurrentRound)
	}

	if err := w.HandleAction(playerRef("a"), Action{Type: ActionPress}); err != nil {
		t.Fatalf("press a: %v", err)
	}
	w.OnUpdate()
	if len(m.transitions) != 0 {
		t.Fatal("one player pressing must not start the countdown")
	}

	if err := w.HandleAction(playerRef("b"), Action{Type: ActionPress}); err != nil {
		t.Fatalf("press b: %v", err)
	}

	// 首次观察到全员就绪只设置沉降窗口
	w.OnUpdate()
	if len(m.transitions) != 0 {
		t.Fatal("transition before the settle window elapsed")
	}

	m.clock.Advance(400 * time.Millisecond)
	w.OnUpdate()
	if len(m.transitions) != 1 || m.transitions[0] != string(models.PhaseCountdown) {
		t.Fatalf("expected countdown transition, got %v", m.transitions)
	}
	if m.forced != 0 {
		t.Error("normal advance must not count as forced")
	}
}

func TestWaitingState_ReleaseDuringSettleCancels(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	w := NewWaitingState(m, 1)
	m.enter(w)

	w.HandleAction(playerRef("a"), Action{Type: ActionPress})
	w.HandleAction(playerRef("b"), Action{Type: ActionPress})
	w.OnUpdate() // settle window armed

	// 沉降窗口内反悔
	if err := w.HandleAction(playerRef("b"), Action{Type: ActionRelease}); err != nil {
		t.Fatalf("release b: %v", err)
	}
	m.clock.Advance(400 * time.Millisecond)
	w.OnUpdate()
	if len(m.transitions) != 0 {
		t.Fatal("release during the settle window must cancel the advance")
	}
	if m.player("b").PlayerData.Auction.OptedOut {
		t.Error("a release while waiting is not an opt-out")
	}

	// 重新全员按下仍可推进
	w.HandleAction(playerRef("b"), Action{Type: ActionPress})
	w.OnUpdate()
	m.clock.Advance(400 * time.Millisecond)
	w.OnUpdate()
	if len(m.transitions) != 1 {
		t.Fatalf("expected countdown after re-press, got %v", m.transitions)
	}
}

func TestWaitingState_TimeoutForcesAdvance(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	w := NewWaitingState(m, 1)
	m.enter(w)

	m.clock.Advance(61 * time.Second)
	w.OnUpdate()
	if len(m.transitions) != 1 || m.transitions[0] != string(models.PhaseCountdown) {
		t.Fatalf("expected forced countdown, got %v", m.transitions)
	}
	if m.forced != 1 {
		t.Error("timeout advance should be recorded as forced")
	}
}

func TestCountdownState_ReleaseIsOptOut(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	for _, p := range m.players {
		p.PlayerData.Auction.Pressing = true
	}
	c := NewCountdownState(m)
	m.enter(c)

	if m.state.CountdownStart == nil {
		t.Fatal("countdown start not recorded")
	}

	if err := c.HandleAction(playerRef("b"), Action{Type: ActionRelease}); err != nil {
		t.Fatalf("release: %v", err)
	}
	b := m.player("b").PlayerData.Auction
	if !b.OptedOut || b.Pressing {
		t.Errorf("release during countdown should opt the player out, got %+v", b)
	}

	// 倒计时开始后不能再加入
	if err := c.HandleAction(playerRef("b"), Action{Type: ActionPress}); err != nil {
		t.Fatalf("late press should be a no-op, got %v", err)
	}
	if m.player("b").PlayerData.Auction.Pressing {
		t.Error("late press must not rejoin the round")
	}

	m.clock.Advance(5 * time.Second)
	c.OnUpdate()
	if len(m.transitions) != 1 || m.transitions[0] != string(models.PhaseAuction) {
		t.Fatalf("expected auction after the countdown, got %v", m.transitions)
	}
}

func TestAuctionState_GraceAndBidClamping(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	for _, p := range m.players {
		p.PlayerData.Auction.Pressing = true
	}
	a := NewAuctionState(m)
	m.enter(a)

	start := m.state.AuctionStart
	if start == nil {
		t.Fatal("auction start not recorded")
	}
	if got := start.Sub(m.clock.Now()); got != 5*time.Second {
		t.Fatalf("auction start should sit one grace period ahead, got %v", got)
	}

	// 宽限期内松开:按 0 出价处理,不透支
	if err := a.HandleAction(playerRef("a"), Action{Type: ActionRelease}); err != nil {
		t.Fatalf("early release: %v", err)
	}
	pa := m.player("a").PlayerData.Auction
	if pa.BidMs != 0 || !pa.HasBid {
		t.Errorf("early release should record a zero bid, got %+v", pa)
	}
	if pa.TimeBankMs != 10000 {
		t.Errorf("zero bid must not touch the bank, got %d", pa.TimeBankMs)
	}

	// b 在拍卖开始 3 秒后松开
	m.clock.Advance(8 * time.Second)
	if err := a.HandleAction(playerRef("b"), Action{Type: ActionRelease}); err != nil {
		t.Fatalf("release b: %v", err)
	}
	pb := m.player("b").PlayerData.Auction
	if pb.BidMs != 3000 {
		t.Errorf("bid = %d, want 3000", pb.BidMs)
	}
	if pb.TimeBankMs != 7000 {
		t.Errorf("bank after deduction = %d, want 7000", pb.TimeBankMs)
	}

	// 重复 release 是无操作,不会二次扣减
	if err := a.HandleAction(playerRef("b"), Action{Type: ActionRelease}); err != nil {
		t.Fatalf("duplicate release: %v", err)
	}
	pb = m.player("b").PlayerData.Auction
	if pb.BidMs != 3000 || pb.TimeBankMs != 7000 {
		t.Errorf("duplicate release changed the bid: %+v", pb)
	}

	a.OnUpdate()
	if len(m.transitions) != 1 || m.transitions[0] != string(models.PhaseResults) {
		t.Fatalf("expected results once nobody holds, got %v", m.transitions)
	}
}

func TestAuctionState_ExhaustedBankAutoFinalizes(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	for _, p := range m.players {
		p.PlayerData.Auction.Pressing = true
	}
	a := NewAuctionState(m)
	m.enter(a)

	// a 提前敲定,b 一直按住直到银行耗尽
	m.clock.Advance(6 * time.Second)
	a.HandleAction(playerRef("a"), Action{Type: ActionRelease})

	a.OnUpdate()
	if len(m.transitions) != 0 {
		t.Fatal("auction must stay open while a holder has bank left")
	}

	m.clock.Advance(10 * time.Second)
	a.OnUpdate()

	pb := m.player("b").PlayerData.Auction
	if !pb.HasBid || pb.BidMs != 10000 {
		t.Errorf("exhausted holder should be finalized at the full bank, got %+v", pb)
	}
	if pb.TimeBankMs != 0 {
		t.Errorf("bank should be empty, got %d", pb.TimeBankMs)
	}
	if len(m.transitions) != 1 || m.transitions[0] != string(models.PhaseResults) {
		t.Fatalf("expected results after auto-finalize, got %v", m.transitions)
	}
}

func TestResultsState_ResolvesOnceAndAdvances(t *testing.T) {
	m := newMockAuctionRoom("a", "b", "c")
	m.state.CurrentRound = 1
	setBid := func(id string, ms int64) {
		p := m.player(id).PlayerData.Auction
		p.HasBid = true
		p.BidMs = ms
	}
	setBid("a", 4700)
	setBid("b", 3200)
	setBid("c", 1800)

	r := NewResultsState(m)
	m.enter(r)

	if m.state.WinnerID != "a" || m.state.WinningBidMs != 4700 {
		t.Fatalf("winner = %s bid %d", m.state.WinnerID, m.state.WinningBidMs)
	}
	if !m.state.Resolved {
		t.Fatal("resolved flag not set")
	}
	if m.player("a").PlayerData.Auction.Tokens != 1 {
		t.Errorf("winner tokens = %d, want 1", m.player("a").PlayerData.Auction.Tokens)
	}

	// 轮询重复触发不会二次加分
	r.OnUpdate()
	r.OnUpdate()
	if m.player("a").PlayerData.Auction.Tokens != 1 {
		t.Errorf("resolution ran twice, tokens = %d", m.player("a").PlayerData.Auction.Tokens)
	}

	// continue 进入下一轮,轮次临时字段被清除
	if err := r.HandleAction(playerRef("a"), Action{Type: ActionContinue}); err != nil {
		t.Fatalf("continue: %v", err)
	}
	last := m.transitions[len(m.transitions)-1]
	if last != string(models.PhaseWaiting) {
		t.Fatalf("expected waiting, got %v", m.transitions)
	}
	if m.state.CurrentRound != 2 {
		t.Errorf("round = %d, want 2", m.state.CurrentRound)
	}
	pa := m.player("a").PlayerData.Auction
	if pa.HasBid || pa.BidMs != 0 {
		t.Errorf("round transients not cleared: %+v", pa)
	}
	if pa.Tokens != 1 {
		t.Error("tokens must survive the round reset")
	}
}

func TestResultsState_TieYieldsNoWinner(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	m.state.CurrentRound = 1
	for _, id := range []string{"a", "b"} {
		p := m.player(id).PlayerData.Auction
		p.HasBid = true
		p.BidMs = 3200
	}
	m.player("b").PlayerData.Auction.BidMs = 3150

	r := NewResultsState(m)
	m.enter(r)

	if m.state.WinnerID != "" {
		t.Errorf("bids within tolerance should yield no winner, got %s", m.state.WinnerID)
	}
	if m.player("a").PlayerData.Auction.Tokens != 0 {
		t.Error("no tokens on a void round")
	}
}

func TestResultsState_FinalRoundEndsGame(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	m.state.CurrentRound = 3 // TotalRounds = 3
	p := m.player("a").PlayerData.Auction
	p.HasBid = true
	p.BidMs = 1000

	r := NewResultsState(m)
	m.enter(r)

	m.clock.Advance(9 * time.Second) // past the results delay
	r.OnUpdate()

	last := m.transitions[len(m.transitions)-1]
	if last != string(models.PhaseGameOver) {
		t.Fatalf("expected gameOver after the final round, got %v", m.transitions)
	}
	if !m.finished {
		t.Error("FinishGame not invoked")
	}
	if !m.state.PhaseTimeout.IsZero() {
		t.Error("terminal state must not carry a timeout")
	}
}

func TestResultsState_RetryAfterWriteFailureAwardsOnce(t *testing.T) {
	m := newMockAuctionRoom("a", "b")
	a := m.player("a").PlayerData.Auction
	a.HasBid, a.BidMs, a.TimeBankMs = true, 4700, 5300
	b := m.player("b").PlayerData.Auction
	b.HasBid, b.BidMs, b.TimeBankMs = true, 3200, 6800
	m.state.Phase = models.PhaseResults

	s := NewResultsState(m)
	m.current = s

	// 结果写失败:玩家行必须原封不动,下次轮询整体重试
	m.failApplies = 1
	s.OnUpdate()
	if m.state.Resolved {
		t.Fatal("resolved flag set despite failed state write")
	}
	if got := m.player("a").PlayerData.Auction.Tokens; got != 0 {
		t.Fatalf("tokens after failed write = %d, want 0", got)
	}

	s.OnUpdate()
	if !m.state.Resolved || m.state.WinnerID != "a" {
		t.Fatalf("retry did not resolve: winner=%q resolved=%v", m.state.WinnerID, m.state.Resolved)
	}
	if got := m.player("a").PlayerData.Auction.Tokens; got != 1 {
		t.Fatalf("tokens = %d, want 1", got)
	}

	// 已结算后继续轮询不再加分
	s.OnUpdate()
	if got := m.player("a").PlayerData.Auction.Tokens; got != 1 {
		t.Fatalf("tokens after extra poll = %d, want 1", got)
	}
}
