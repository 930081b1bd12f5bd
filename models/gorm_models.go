// models/gorm_models.go
package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormRoom 房间持久化模型
type GormRoom struct {
	gorm.Model
	RoomID   string         `gorm:"uniqueIndex;not null"`
	RoomCode string         `gorm:"uniqueIndex;not null;size:8"`
	HostID   string         `gorm:"not null"`
	GameType string         `gorm:"not null"`
	Settings datatypes.JSON `gorm:"not null"`
	State    datatypes.JSON `gorm:"not null"`
	Version  int64          `gorm:"not null;default:0"`
	IsActive bool           `gorm:"not null;default:true"`
}

// GormPlayer 玩家持久化模型
type GormPlayer struct {
	gorm.Model
	PlayerID      string         `gorm:"uniqueIndex;not null"`
	RoomID        string         `gorm:"index;not null"`
	Name          string         `gorm:"not null"`
	IsHost        bool           `gorm:"not null;default:false"`
	IsConnected   bool           `gorm:"not null;default:true"`
	LastHeartbeat int64          `gorm:"not null;default:0"` // unix millis
	Data          datatypes.JSON `gorm:"not null"`
}

// GormGameRecord 对局记录模型
type GormGameRecord struct {
	gorm.Model
	RoomID   string         `gorm:"index;not null"`
	GameType string         `gorm:"not null"`
	Players  datatypes.JSON `gorm:"not null"`
	Result   datatypes.JSON `gorm:"not null"`
	Duration int            `gorm:"default:0"` // 对局时长(秒)
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	TotalGames  int `json:"total_games"`
	Wins        int `json:"wins"`
	TotalTokens int `json:"total_tokens"`
	TotalPoints int `json:"total_points"`
}
