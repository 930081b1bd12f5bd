// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/partyroom/models"
)

// GormStore 使用GORM的PostgreSQL存储实现。订阅扇出在进程内完成,
// 行写入落到 Postgres。
type GormStore struct {
	db       *gorm.DB
	notifier *notifier
}

// NewGormStore 创建GORM PostgreSQL存储
func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gl := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRoom{}, &models.GormPlayer{}, &models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db, notifier: newNotifier()}, nil
}

// DB exposes the underlying handle for the result service layer.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func toGormRoom(room *models.Room) (*models.GormRoom, error) {
	settings, err := json.Marshal(room.GameSettings)
	if err != nil {
		return nil, err
	}
	state, err := json.Marshal(room.GameState)
	if err != nil {
		return nil, err
	}
	return &models.GormRoom{
		RoomID:   room.ID,
		RoomCode: room.RoomCode,
		HostID:   room.HostID,
		GameType: string(room.GameType),
		Settings: settings,
		State:    state,
		Version:  room.GameState.Version,
		IsActive: room.IsActive,
	}, nil
}

func fromGormRoom(row *models.GormRoom) (*models.Room, error) {
	room := &models.Room{
		ID:        row.RoomID,
		RoomCode:  row.RoomCode,
		HostID:    row.HostID,
		GameType:  models.GameType(row.GameType),
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Settings, &room.GameSettings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.State, &room.GameState); err != nil {
		return nil, err
	}
	return room, nil
}

func fromGormPlayer(row *models.GormPlayer) (*models.Player, error) {
	p := &models.Player{
		ID:            row.PlayerID,
		RoomID:        row.RoomID,
		PlayerName:    row.Name,
		IsHost:        row.IsHost,
		IsConnected:   row.IsConnected,
		LastHeartbeat: time.UnixMilli(row.LastHeartbeat),
		JoinedAt:      row.CreatedAt,
	}
	if err := json.Unmarshal(row.Data, &p.PlayerData); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *GormStore) CreateRoom(room *models.Room) (*models.Room, error) {
	if err := room.GameSettings.Validate(room.GameType); err != nil {
		return nil, err
	}
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	room.CreatedAt = time.Now()
	row, err := toGormRoom(room)
	if err != nil {
		return nil, err
	}
	if err := s.db.Create(row).Error; err != nil {
		return nil, err
	}
	s.notifier.emit(room.ID, Event{Type: EventInsert, Table: "rooms", Room: room.Clone()})
	return room.Clone(), nil
}

func (s *GormStore) GetRoom(id string) (*models.Room, error) {
	var row models.GormRoom
	if err := s.db.Where("room_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return fromGormRoom(&row)
}

func (s *GormStore) FindRoomByCode(code string) (*models.Room, error) {
	var row models.GormRoom
	if err := s.db.Where("room_code = ? AND is_active = ?", code, true).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return fromGormRoom(&row)
}

func (s *GormStore) UpdateRoom(id string, patch RoomPatch) error {
	updates := map[string]interface{}{}
	if patch.HostID != nil {
		updates["host_id"] = *patch.HostID
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if patch.State != nil {
		raw, err := json.Marshal(patch.State)
		if err != nil {
			return err
		}
		updates["state"] = raw
		updates["version"] = patch.State.Version
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.Model(&models.GormRoom{}).Where("room_id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	room, err := s.GetRoom(id)
	if err == nil {
		s.notifier.emit(id, Event{Type: EventUpdate, Table: "rooms", Room: room})
	}
	return nil
}

func (s *GormStore) CompareAndSwapState(id string, expectVersion int64, state models.GameState) error {
	state.Version = expectVersion + 1
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	res := s.db.Model(&models.GormRoom{}).
		Where("room_id = ? AND version = ?", id, expectVersion).
		Updates(map[string]interface{}{"state": raw, "version": state.Version})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetRoom(id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	room, err := s.GetRoom(id)
	if err == nil {
		s.notifier.emit(id, Event{Type: EventUpdate, Table: "rooms", Room: room})
	}
	return nil
}

func (s *GormStore) CreatePlayer(p *models.Player) error {
	if err := p.PlayerData.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(p.PlayerData)
	if err != nil {
		return err
	}
	row := &models.GormPlayer{
		PlayerID:      p.ID,
		RoomID:        p.RoomID,
		Name:          p.PlayerName,
		IsHost:        p.IsHost,
		IsConnected:   p.IsConnected,
		LastHeartbeat: p.LastHeartbeat.UnixMilli(),
		Data:          raw,
	}
	if err := s.db.Create(row).Error; err != nil {
		return err
	}
	s.notifier.emit(p.RoomID, Event{Type: EventInsert, Table: "players", Player: p.Clone()})
	return nil
}

func (s *GormStore) GetPlayer(id string) (*models.Player, error) {
	var row models.GormPlayer
	if err := s.db.Where("player_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return fromGormPlayer(&row)
}

func (s *GormStore) PlayersByRoom(roomID string) ([]*models.Player, error) {
	var rows []models.GormPlayer
	if err := s.db.Where("room_id = ?", roomID).Find(&rows).Error; err != nil {
		return nil, err
	}
	players := make([]*models.Player, 0, len(rows))
	for i := range rows {
		p, err := fromGormPlayer(&rows[i])
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

func (s *GormStore) UpdatePlayer(id string, patch PlayerPatch) error {
	updates := map[string]interface{}{}
	if patch.IsHost != nil {
		updates["is_host"] = *patch.IsHost
	}
	if patch.IsConnected != nil {
		updates["is_connected"] = *patch.IsConnected
	}
	if patch.LastHeartbeat != nil {
		updates["last_heartbeat"] = patch.LastHeartbeat.UnixMilli()
	}
	if patch.Data != nil {
		if err := patch.Data.Validate(); err != nil {
			return err
		}
		raw, err := json.Marshal(patch.Data)
		if err != nil {
			return err
		}
		updates["data"] = raw
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.Model(&models.GormPlayer{}).Where("player_id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	p, err := s.GetPlayer(id)
	if err == nil {
		s.notifier.emit(p.RoomID, Event{Type: EventUpdate, Table: "players", Player: p})
	}
	return nil
}

func (s *GormStore) DeletePlayer(id string) error {
	p, err := s.GetPlayer(id)
	if err != nil {
		return err
	}
	res := s.db.Where("player_id = ?", id).Delete(&models.GormPlayer{})
	if res.Error != nil {
		return res.Error
	}
	s.notifier.emit(p.RoomID, Event{Type: EventDelete, Table: "players", Player: p})
	return nil
}

func (s *GormStore) Subscribe(roomID string, fn func(Event)) (cancel func()) {
	return s.notifier.subscribe(roomID, fn)
}

func (s *GormStore) Close() error {
	s.notifier.close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
