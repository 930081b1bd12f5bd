package state

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wfunc/partyroom/config"
	"github.com/wfunc/partyroom/models"
)

// mockRoom is a hand-rolled RoomContext double driving states directly,
// without the coordinator loop or a real store.
type mockRoom struct {
	id       string
	gameType models.GameType
	settings models.GameSettings
	timing   config.GameConfig
	clock    *clockwork.FakeClock

	players []*models.Player
	state   models.GameState

	current     State
	transitions []string
	forced      int
	processing  bool
	finished    bool
	actions     []string

	// failApplies 使接下来 N 次 ApplyState 返回写失败
	failApplies int
}

func testTiming() config.GameConfig {
	return config.GameConfig{
		CountdownSeconds: 5,
		GraceSeconds:     5,
		TieToleranceMs:   100,
		PhaseTimeoutSec:  60,
		HeartbeatSeconds: 5,
		StalenessSeconds: 12,
		PollIntervalMs:   100,
		SettleDelayMs:    300,
		ResultsDelaySec:  8,
	}
}

func newMockAuctionRoom(playerIDs ...string) *mockRoom {
	m := &mockRoom{
		id:       "room1",
		gameType: models.GameAuction,
		settings: models.GameSettings{TotalRounds: 3, TimeBankMs: 10000, MinPlayers: 2, MaxPlayers: 8},
		timing:   testTiming(),
		clock:    clockwork.NewFakeClock(),
	}
	for _, id := range playerIDs {
		m.players = append(m.players, &models.Player{
			ID:          id,
			RoomID:      m.id,
			PlayerName:  id,
			IsConnected: true,
			PlayerData:  models.NewPlayerData(m.gameType, m.settings),
		})
	}
	return m
}

func newMockCardsRoom(playerIDs ...string) *mockRoom {
	m := &mockRoom{
		id:       "room1",
		gameType: models.GameCards,
		settings: models.GameSettings{
			TotalRounds: 10, MinPlayers: 2, MaxPlayers: 8,
			SurvivalRounds:  []int{4, 7, 10},
			DeckResetRounds: []int{7},
		},
		timing: testTiming(),
		clock:  clockwork.NewFakeClock(),
	}
	for _, id := range playerIDs {
		m.players = append(m.players, &models.Player{
			ID:          id,
			RoomID:      m.id,
			PlayerName:  id,
			IsConnected: true,
			PlayerData:  models.NewPlayerData(m.gameType, m.settings),
		})
	}
	return m
}

func (m *mockRoom) GetID() string                 { return m.id }
func (m *mockRoom) GetGameType() models.GameType  { return m.gameType }
func (m *mockRoom) Settings() models.GameSettings { return m.settings }
func (m *mockRoom) Timing() config.GameConfig     { return m.timing }
func (m *mockRoom) Now() time.Time                { return m.clock.Now() }

func (m *mockRoom) Players() []*models.Player { return m.players }

func (m *mockRoom) Eligible() []*models.Player {
	var eligible []*models.Player
	for _, p := range m.players {
		if !p.IsConnected {
			continue
		}
		switch {
		case p.PlayerData.Auction != nil:
			a := p.PlayerData.Auction
			if a.OptedOut || a.TimeBankMs <= 0 {
				continue
			}
		case p.PlayerData.Cards != nil:
			if p.PlayerData.Cards.Eliminated {
				continue
			}
		}
		eligible = append(eligible, p)
	}
	return eligible
}

func (m *mockRoom) State() models.GameState { return m.state.Clone() }

func (m *mockRoom) ApplyState(mutate func(*models.GameState)) error {
	if m.failApplies > 0 {
		m.failApplies--
		return errors.New("store unavailable")
	}
	st := m.state.Clone()
	mutate(&st)
	st.Version = m.state.Version + 1
	m.state = st
	return nil
}

func (m *mockRoom) UpdatePlayerData(playerID string, data models.PlayerData) error {
	for _, p := range m.players {
		if p.ID == playerID {
			p.PlayerData = data.Clone()
			return nil
		}
	}
	return nil
}

func (m *mockRoom) ResetRoundPlayers(nextRound int) {
	for _, p := range m.players {
		p.PlayerData.ResetRound(nextRound)
	}
}

func (m *mockRoom) ChangeState(newState State) error {
	if m.current != nil {
		m.current.OnExit()
	}
	m.current = newState
	m.transitions = append(m.transitions, newState.GetID())
	newState.OnEnter()
	return nil
}

func (m *mockRoom) TryBeginProcessing() bool {
	if m.processing {
		return false
	}
	m.processing = true
	return true
}

func (m *mockRoom) EndProcessing() { m.processing = false }

func (m *mockRoom) RecordTransition(forced bool) {
	if forced {
		m.forced++
	}
}

func (m *mockRoom) FinishGame() { m.finished = true }

func (m *mockRoom) LogAction(playerID, action, detail string) {
	m.actions = append(m.actions, playerID+":"+action)
}

// enter installs a state as current the way the coordinator would.
func (m *mockRoom) enter(s State) {
	m.current = s
	s.OnEnter()
}

func (m *mockRoom) player(id string) *models.Player {
	for _, p := range m.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// playerRef satisfies the Player interface for HandleAction calls.
type playerRef string

func (p playerRef) GetID() string { return string(p) }
