// persistence/interface.go
package persistence

import (
	"errors"
	"time"

	"github.com/wfunc/partyroom/models"
)

// 错误定义
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrVersionConflict = errors.New("room state version conflict")
	ErrDuplicateID     = errors.New("duplicate record id")
)

// EventType 行变更事件类型
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event 推送给订阅者的行变更。投递是 at-least-once、无跨行顺序保证，
// 消费侧必须以重新查询兜底。
type Event struct {
	Type   EventType
	Table  string // "rooms" | "players"
	Room   *models.Room
	Player *models.Player
}

// RoomPatch 房间行的部分更新（last-write-wins）
type RoomPatch struct {
	HostID   *string
	IsActive *bool
	State    *models.GameState
}

// PlayerPatch 玩家行的部分更新（last-write-wins）
type PlayerPatch struct {
	IsHost        *bool
	IsConnected   *bool
	LastHeartbeat *time.Time
	Data          *models.PlayerData
}

// Store 记录存储接口。Room/Player 两族实体,乐观按 id 更新,
// 行级订阅推送变更。
type Store interface {
	CreateRoom(room *models.Room) (*models.Room, error)
	GetRoom(id string) (*models.Room, error)
	FindRoomByCode(code string) (*models.Room, error)
	UpdateRoom(id string, patch RoomPatch) error
	// CompareAndSwapState 只有协调器使用:版本号匹配才落盘,
	// 确保超时强推和常规推进不会同时生效。
	CompareAndSwapState(id string, expectVersion int64, state models.GameState) error

	CreatePlayer(p *models.Player) error
	GetPlayer(id string) (*models.Player, error)
	PlayersByRoom(roomID string) ([]*models.Player, error)
	UpdatePlayer(id string, patch PlayerPatch) error
	DeletePlayer(id string) error

	Subscribe(roomID string, fn func(Event)) (cancel func())
	Close() error
}
