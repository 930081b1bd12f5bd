// room/manager.go
package room

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/persistence"
)

// Manager 管理所有房间
type Manager struct {
	deps   Deps
	rooms  map[string]*Room // room id -> room
	byCode map[string]string
	mutex  sync.RWMutex
}

// NewManager 创建一个新的房间管理器
func NewManager(deps Deps) *Manager {
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	return &Manager{
		deps:   deps,
		rooms:  make(map[string]*Room),
		byCode: make(map[string]string),
	}
}

// CreateRoom 创建房间和宿主玩家,返回 {roomCode, playerId} 所需的行
func (m *Manager) CreateRoom(hostName string, gameType models.GameType, settings models.GameSettings) (*Room, *models.Player, error) {
	hostID := uuid.New().String()
	now := m.deps.Clock.Now()

	row := &models.Room{
		RoomCode:     m.newCode(),
		HostID:       hostID,
		GameType:     gameType,
		GameSettings: settings,
		GameState: models.GameState{
			Phase:           models.PhaseLobby,
			LastPhaseUpdate: now,
		},
		IsActive: true,
	}
	created, err := m.deps.Store.CreateRoom(row)
	if err != nil {
		return nil, nil, err
	}

	host := &models.Player{
		ID:            hostID,
		RoomID:        created.ID,
		PlayerName:    hostName,
		IsHost:        true,
		IsConnected:   true,
		LastHeartbeat: now,
		JoinedAt:      now,
		PlayerData:    models.NewPlayerData(gameType, settings),
	}
	if err := m.deps.Store.CreatePlayer(host); err != nil {
		return nil, nil, err
	}

	r := NewRoom(created, m.deps)
	m.mutex.Lock()
	m.rooms[created.ID] = r
	m.byCode[created.RoomCode] = created.ID
	m.deps.Metrics.SetActiveRooms(len(m.rooms))
	m.mutex.Unlock()

	logger.Log.Infof("room %s created (code %s, type %s)", created.ID, created.RoomCode, gameType)
	return r, host, nil
}

// JoinRoom 通过房间码加入
func (m *Manager) JoinRoom(code, playerName string) (*Room, *models.Player, error) {
	row, err := m.deps.Store.FindRoomByCode(code)
	if err != nil {
		return nil, nil, ErrRoomNotFound
	}
	r, exists := m.GetRoom(row.ID)
	if !exists {
		return nil, nil, ErrRoomNotFound
	}
	if r.GetStatus() != StatusLobby {
		return nil, nil, ErrGameAlreadyStarted
	}

	// 容量检查到建行之间持有房间级加入锁,并发加入不会超员
	r.joinMu.Lock()
	defer r.joinMu.Unlock()

	players, err := m.deps.Store.PlayersByRoom(row.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(players) >= row.GameSettings.MaxPlayers {
		return nil, nil, ErrRoomFull
	}

	now := m.deps.Clock.Now()
	p := &models.Player{
		ID:            uuid.New().String(),
		RoomID:        row.ID,
		PlayerName:    playerName,
		IsConnected:   true,
		LastHeartbeat: now,
		JoinedAt:      now,
		PlayerData:    models.NewPlayerData(row.GameType, row.GameSettings),
	}
	if err := m.deps.Store.CreatePlayer(p); err != nil {
		return nil, nil, err
	}
	return r, p, nil
}

// StartGame 宿主专属:装配状态机并开始第一轮
func (m *Manager) StartGame(roomID, playerID string) error {
	r, exists := m.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}
	if playerID != r.HostID {
		return ErrNotHost
	}
	players, err := m.deps.Store.PlayersByRoom(roomID)
	if err != nil {
		return err
	}
	if len(players) < r.settings.MinPlayers {
		return ErrTooFewPlayers
	}
	return r.Start()
}

// LeaveRoom 显式离开,尽力而为删除玩家行
func (m *Manager) LeaveRoom(roomID, playerID string) error {
	if err := m.deps.Store.DeletePlayer(playerID); err != nil {
		return err
	}
	r, exists := m.GetRoom(roomID)
	if !exists {
		return nil
	}
	// 宿主在开局前离开则让最早加入者接替;Update 循环会在局中处理
	if playerID == r.HostID && r.GetStatus() == StatusLobby {
		r.migrateHostIfNeeded()
	}
	return nil
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[id]
	return r, exists
}

// GetRoomByCode 按房间码查找
func (m *Manager) GetRoomByCode(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, false
	}
	r, exists := m.rooms[id]
	return r, exists
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if r, exists := m.rooms[id]; exists {
		r.Close()
		delete(m.byCode, r.Code)
		delete(m.rooms, id)
		m.deps.Metrics.SetActiveRooms(len(m.rooms))
	}
}

// Reap 回收终局或被遗弃的房间。由定时任务周期调用。
func (m *Manager) Reap() {
	m.mutex.RLock()
	var candidates []*Room
	for _, r := range m.rooms {
		candidates = append(candidates, r)
	}
	m.mutex.RUnlock()

	now := m.deps.Clock.Now()
	for _, r := range candidates {
		if r.GetStatus() == StatusFinished {
			m.RemoveRoom(r.ID)
			continue
		}
		players, err := m.deps.Store.PlayersByRoom(r.ID)
		if err != nil {
			continue
		}
		abandoned := true
		for _, p := range players {
			if m.deps.Tracker.Connected(p, now) {
				abandoned = false
				break
			}
		}
		// 全员心跳过期超过两个窗口即视为遗弃
		if abandoned && now.Sub(r.CreatedAt) > 2*m.deps.Cfg.Staleness() {
			inactive := false
			_ = m.deps.Store.UpdateRoom(r.ID, persistence.RoomPatch{IsActive: &inactive})
			m.RemoveRoom(r.ID)
		}
	}
}

// Count 当前房间数
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newCode 生成人类可分享的短房间码,与活跃房间不冲突
func (m *Manager) newCode() string {
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand 不可用时退化为时间熵
			return time.Now().Format("150405")
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)
		if _, err := m.deps.Store.FindRoomByCode(code); err == persistence.ErrRecordNotFound {
			return code
		}
	}
}
