// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wfunc/partyroom/config"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/network"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/presence"
	"github.com/wfunc/partyroom/state"
)

// RoomStatus 表示房间的业务状态，例如等待、游戏中等
type RoomStatus int

const (
	StatusIdle RoomStatus = iota
	StatusLobby
	StatusGaming
	StatusFinished
)

// Deps 协调器的外部依赖
type Deps struct {
	Store       persistence.Store
	Tracker     *presence.Tracker
	Clock       clockwork.Clock
	Cfg         config.GameConfig
	Broadcaster Broadcaster
	Metrics     Metrics
	Actions     *persistence.ActionLog
	OnGameOver  func(roomID string, players []*models.Player)
}

// Room 是阶段协调的核心。所有改变阶段的决策都经由服务端持有的
// 协调循环,不存在与客户端宿主的竞争。
type Room struct {
	ID       string
	Code     string
	GameType models.GameType
	HostID   string
	CreatedAt time.Time

	settings models.GameSettings
	deps     Deps

	StateMachine state.StateMachine

	status      RoomStatus
	statusMutex sync.RWMutex
	mu          sync.Mutex // 串行化 Update 和 HandleAction
	joinMu      sync.Mutex // 串行化同房间的并发加入,防止超员
	processing  atomic.Bool
	roundStart  time.Time
	lastSweep   time.Time

	ticker    clockwork.Ticker
	closeChan chan bool
	closeOnce sync.Once
	cancelSub func()
}

// NewRoom 从房间行构建协调器。加入大厅阶段即订阅存储事件,
// 状态机在 Start 时才装配。
func NewRoom(row *models.Room, deps Deps) *Room {
	r := &Room{
		ID:        row.ID,
		Code:      row.RoomCode,
		GameType:  row.GameType,
		HostID:    row.HostID,
		CreatedAt: row.CreatedAt,
		settings:  row.GameSettings,
		deps:      deps,
		status:    StatusLobby,
		closeChan: make(chan bool),
	}
	r.cancelSub = deps.Store.Subscribe(r.ID, func(ev persistence.Event) {
		r.broadcastSnapshot()
	})
	return r
}

// Start 装配状态机并启动轮询循环。只能由房主触发一次。
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.GetStatus() == StatusGaming {
		return ErrGameAlreadyStarted
	}
	r.SetStatus(StatusGaming)
	r.roundStart = r.deps.Clock.Now()

	var initial state.State
	switch r.GameType {
	case models.GameCards:
		initial = state.NewCardSelectionState(r, 1)
	default:
		initial = state.NewWaitingState(r, 1)
	}
	r.StateMachine = state.NewBaseStateMachine(initial)

	r.ticker = r.deps.Clock.NewTicker(r.deps.Cfg.PollInterval())
	go r.loop()
	return nil
}

// loop 是房间的主循环，定时驱动状态更新
func (r *Room) loop() {
	for {
		select {
		case <-r.ticker.Chan():
			r.Update()
		case <-r.closeChan:
			r.ticker.Stop()
			return
		}
	}
}

// Update 由主循环调用:心跳清扫、宿主接替、驱动状态机
func (r *Room) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maybeSweep()

	if r.StateMachine == nil {
		return
	}
	if current := r.StateMachine.GetCurrentState(); current != nil {
		current.OnUpdate()
	}
}

// maybeSweep 周期性将过期心跳标记为离线,并在宿主掉线时接替
func (r *Room) maybeSweep() {
	now := r.deps.Clock.Now()
	if !r.lastSweep.IsZero() && now.Sub(r.lastSweep) < r.deps.Cfg.Heartbeat() {
		return
	}
	r.lastSweep = now

	if _, err := r.deps.Tracker.Sweep(r.ID); err != nil {
		logger.Log.Warnf("room %s: presence sweep: %v", r.ID, err)
		return
	}
	r.migrateHostIfNeeded()
}

// migrateHostIfNeeded 宿主心跳过期时,把最早加入的在线玩家提升为宿主。
// 阶段推进不依赖宿主,这里只关乎宿主专属操作的可用性。
func (r *Room) migrateHostIfNeeded() {
	players := r.Players()
	now := r.deps.Clock.Now()

	var host *models.Player
	for _, p := range players {
		if p.ID == r.HostID {
			host = p
		}
	}
	if host != nil && r.deps.Tracker.Connected(host, now) {
		return
	}

	var successor *models.Player
	for _, p := range players {
		if p.ID == r.HostID || !r.deps.Tracker.Connected(p, now) {
			continue
		}
		if successor == nil || p.JoinedAt.Before(successor.JoinedAt) {
			successor = p
		}
	}
	if successor == nil {
		return
	}

	logger.Log.Infof("room %s: host %s unreachable, promoting %s", r.ID, r.HostID, successor.ID)
	isHost := true
	notHost := false
	if host != nil {
		_ = r.deps.Store.UpdatePlayer(host.ID, persistence.PlayerPatch{IsHost: &notHost})
	}
	if err := r.deps.Store.UpdatePlayer(successor.ID, persistence.PlayerPatch{IsHost: &isHost}); err != nil {
		logger.Log.Errorf("room %s: promote host: %v", r.ID, err)
		return
	}
	newHost := successor.ID
	if err := r.deps.Store.UpdateRoom(r.ID, persistence.RoomPatch{HostID: &newHost}); err != nil {
		logger.Log.Errorf("room %s: update host id: %v", r.ID, err)
		return
	}
	r.HostID = successor.ID
}

// HandleAction 将玩家动作派发给当前状态。宿主专属动作在此校验。
func (r *Room) HandleAction(playerID string, raw []byte) error {
	var action state.Action
	if err := json.Unmarshal(raw, &action); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if action.Type == state.ActionContinue && playerID != r.HostID {
		return ErrNotHost
	}

	if r.StateMachine == nil {
		return ErrGameNotStarted
	}
	current := r.StateMachine.GetCurrentState()
	if current == nil {
		return ErrGameNotStarted
	}
	if err := current.HandleAction(playerRef(playerID), action); err != nil {
		// 重复提交静默吞掉,不回传错误
		if errors.Is(err, state.ErrAlreadySubmitted) {
			return nil
		}
		return err
	}
	return nil
}

// Close 关闭房间，停止主循环
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		if r.cancelSub != nil {
			r.cancelSub()
		}
		close(r.closeChan)
	})
}

// SetStatus 设置房间的业务状态
func (r *Room) SetStatus(status RoomStatus) {
	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()
	r.status = status
}

// GetStatus 获取房间的业务状态
func (r *Room) GetStatus() RoomStatus {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.status
}

// playerRef 以 id 实现 state.Player
type playerRef string

func (p playerRef) GetID() string { return string(p) }

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetID() string                  { return r.ID }
func (r *Room) GetGameType() models.GameType   { return r.GameType }
func (r *Room) Settings() models.GameSettings  { return r.settings }
func (r *Room) Timing() config.GameConfig      { return r.deps.Cfg }
func (r *Room) Now() time.Time                 { return r.deps.Clock.Now() }

// Players 每次决策前从存储取新快照
func (r *Room) Players() []*models.Player {
	players, err := r.deps.Store.PlayersByRoom(r.ID)
	if err != nil {
		logger.Log.Errorf("room %s: query players: %v", r.ID, err)
		return nil
	}
	return players
}

// Eligible 在线、未弃权、未淘汰且资源未耗尽的玩家,
// 每次评估时重新推导,绝不缓存。
func (r *Room) Eligible() []*models.Player {
	now := r.deps.Clock.Now()
	var eligible []*models.Player
	for _, p := range r.Players() {
		if !r.deps.Tracker.Connected(p, now) {
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

func (r *Room) State() models.GameState {
	row, err := r.deps.Store.GetRoom(r.ID)
	if err != nil {
		logger.Log.Errorf("room %s: read state: %v", r.ID, err)
		return models.GameState{}
	}
	return row.GameState
}

// ApplyState 版本 CAS 写入阶段记录;冲突时取新版本重试一次
func (r *Room) ApplyState(mutate func(*models.GameState)) error {
	for attempt := 0; attempt < 2; attempt++ {
		row, err := r.deps.Store.GetRoom(r.ID)
		if err != nil {
			r.deps.Metrics.StoreWriteFailure()
			return err
		}
		st := row.GameState.Clone()
		mutate(&st)
		err = r.deps.Store.CompareAndSwapState(r.ID, row.GameState.Version, st)
		if err == nil {
			return nil
		}
		if err != persistence.ErrVersionConflict {
			r.deps.Metrics.StoreWriteFailure()
			return err
		}
	}
	return persistence.ErrVersionConflict
}

func (r *Room) UpdatePlayerData(playerID string, data models.PlayerData) error {
	err := r.deps.Store.UpdatePlayer(playerID, persistence.PlayerPatch{Data: &data})
	if err != nil {
		r.deps.Metrics.StoreWriteFailure()
	}
	return err
}

// ResetRoundPlayers 清除所有玩家的轮次临时字段,每轮恰好一次
func (r *Room) ResetRoundPlayers(nextRound int) {
	for _, p := range r.Players() {
		data := p.PlayerData
		data.ResetRound(nextRound)
		if err := r.UpdatePlayerData(p.ID, data); err != nil {
			logger.Log.Errorf("room %s: reset player %s: %v", r.ID, p.ID, err)
		}
	}
	r.roundStart = r.deps.Clock.Now()
}

func (r *Room) ChangeState(newState state.State) error {
	return r.StateMachine.ChangeState(newState)
}

// TryBeginProcessing 轮次结算的进行中闩
func (r *Room) TryBeginProcessing() bool {
	return r.processing.CompareAndSwap(false, true)
}

func (r *Room) EndProcessing() {
	r.processing.Store(false)
}

func (r *Room) RecordTransition(forced bool) {
	r.deps.Metrics.PhaseTransition(forced)
}

// FinishGame 终局:记录结果并停止循环
func (r *Room) FinishGame() {
	r.SetStatus(StatusFinished)
	r.deps.Metrics.RoundResolved(r.deps.Clock.Now().Sub(r.roundStart))
	if r.deps.OnGameOver != nil {
		r.deps.OnGameOver(r.ID, r.Players())
	}
	inactive := false
	if err := r.deps.Store.UpdateRoom(r.ID, persistence.RoomPatch{IsActive: &inactive}); err != nil {
		logger.Log.Warnf("room %s: deactivate: %v", r.ID, err)
	}
}

// LogAction 尽力而为地写动作审计日志
func (r *Room) LogAction(playerID, action, detail string) {
	if r.deps.Actions == nil {
		return
	}
	at := r.deps.Clock.Now()
	go func() {
		if err := r.deps.Actions.Append(r.ID, playerID, action, detail, at); err != nil {
			logger.Log.Debugf("room %s: action log: %v", r.ID, err)
		}
	}()
}

// broadcastSnapshot 存储扇出事件触发:向房间推送公共快照
func (r *Room) broadcastSnapshot() {
	if r.deps.Broadcaster == nil {
		return
	}
	row, err := r.deps.Store.GetRoom(r.ID)
	if err != nil {
		return
	}
	snap := BuildSnapshot(row, r.Players(), r.GetStatus())
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := r.deps.Broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRoomState, data); err != nil {
		logger.Log.Debugf("room %s: broadcast: %v", r.ID, err)
	}
}
