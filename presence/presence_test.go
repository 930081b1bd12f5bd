package presence

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/persistence"
)

func setup(t *testing.T) (*Tracker, *persistence.MemoryStore, *clockwork.FakeClock, string) {
	t.Helper()
	store := persistence.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	clock := clockwork.NewFakeClock()

	room, err := store.CreateRoom(&models.Room{
		RoomCode: "TEST42",
		HostID:   "p1",
		GameType: models.GameAuction,
		GameSettings: models.GameSettings{
			TotalRounds: 5, TimeBankMs: 30000, MinPlayers: 2, MaxPlayers: 8,
		},
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	p := &models.Player{
		ID:          "p1",
		RoomID:      room.ID,
		PlayerName:  "alice",
		IsConnected: true,
		PlayerData:  models.NewPlayerData(models.GameAuction, models.GameSettings{TimeBankMs: 30000}),
	}
	if err := store.CreatePlayer(p); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}

	return NewTracker(store, 12*time.Second, clock), store, clock, room.ID
}

func TestHeartbeatRefreshesPlayer(t *testing.T) {
	tracker, store, clock, _ := setup(t)

	if err := tracker.Heartbeat("p1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	p, _ := store.GetPlayer("p1")
	if !p.IsConnected {
		t.Error("heartbeat should mark the player connected")
	}
	if !p.LastHeartbeat.Equal(clock.Now()) {
		t.Errorf("heartbeat timestamp = %v, want %v", p.LastHeartbeat, clock.Now())
	}
}

func TestConnectedWindow(t *testing.T) {
	tracker, store, clock, _ := setup(t)

	tracker.Heartbeat("p1")
	p, _ := store.GetPlayer("p1")

	if !tracker.Connected(p, clock.Now().Add(11*time.Second)) {
		t.Error("player inside the staleness window should count as connected")
	}
	if tracker.Connected(p, clock.Now().Add(13*time.Second)) {
		t.Error("player outside the staleness window should count as disconnected")
	}

	fresh := &models.Player{ID: "never"}
	if tracker.Connected(fresh, clock.Now()) {
		t.Error("player without any heartbeat is not connected")
	}
}

func TestSweepMarksStalePlayers(t *testing.T) {
	tracker, store, clock, roomID := setup(t)

	tracker.Heartbeat("p1")
	clock.Advance(20 * time.Second)

	changed, err := tracker.Sweep(roomID)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(changed) != 1 || changed[0] != "p1" {
		t.Fatalf("changed = %v, want [p1]", changed)
	}
	p, _ := store.GetPlayer("p1")
	if p.IsConnected {
		t.Error("stale player should be marked disconnected")
	}

	// 再次清扫无变化
	changed, _ = tracker.Sweep(roomID)
	if len(changed) != 0 {
		t.Errorf("second sweep should change nothing, got %v", changed)
	}

	// 心跳恢复在线
	tracker.Heartbeat("p1")
	p, _ = store.GetPlayer("p1")
	if !p.IsConnected {
		t.Error("heartbeat should restore the connected flag")
	}
}
