// presence/presence.go
package presence

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/persistence"
)

// Tracker 心跳存活判定。窗口必须大于心跳间隔,避免抖动误判掉线。
type Tracker struct {
	store     persistence.Store
	staleness time.Duration
	clock     clockwork.Clock
}

func NewTracker(store persistence.Store, staleness time.Duration, clock clockwork.Clock) *Tracker {
	return &Tracker{store: store, staleness: staleness, clock: clock}
}

// Heartbeat 记录一次玩家心跳
func (t *Tracker) Heartbeat(playerID string) error {
	now := t.clock.Now()
	connected := true
	return t.store.UpdatePlayer(playerID, persistence.PlayerPatch{
		IsConnected:   &connected,
		LastHeartbeat: &now,
	})
}

// Connected 派生判定:心跳时间戳落在窗口内
func (t *Tracker) Connected(p *models.Player, now time.Time) bool {
	if p.LastHeartbeat.IsZero() {
		return false
	}
	return now.Sub(p.LastHeartbeat) <= t.staleness
}

// Sweep 将心跳过期的玩家标记为离线,返回状态变化的玩家 id。
// 由定时任务周期调用。
func (t *Tracker) Sweep(roomID string) ([]string, error) {
	players, err := t.store.PlayersByRoom(roomID)
	if err != nil {
		return nil, err
	}
	now := t.clock.Now()
	var changed []string
	for _, p := range players {
		alive := t.Connected(p, now)
		if p.IsConnected == alive {
			continue
		}
		conn := alive
		if err := t.store.UpdatePlayer(p.ID, persistence.PlayerPatch{IsConnected: &conn}); err != nil {
			continue
		}
		changed = append(changed, p.ID)
	}
	return changed, nil
}
