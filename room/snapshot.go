// room/snapshot.go
package room

import (
	"github.com/wfunc/partyroom/models"
)

// PlayerView 玩家的公共投影。出价值、时间银行和手牌不在公共快照中:
// 敲定时银行即时扣减,广播余额等于广播出价。
// 自己的余额走 PlayerState 私有推送,胜者出价经由 GameState 公开。
type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	IsConnected  bool   `json:"isConnected"`
	Pressing     bool   `json:"pressing,omitempty"`
	OptedOut     bool   `json:"optedOut,omitempty"`
	HasBid       bool   `json:"hasBid,omitempty"`
	Tokens       int    `json:"victoryTokens"`
	HandSize     int    `json:"handSize,omitempty"`
	SelectedDone bool   `json:"selectedDone,omitempty"`
	HasSubmitted bool   `json:"hasSubmitted,omitempty"`
	Eliminated   bool   `json:"eliminated,omitempty"`
	Points       int    `json:"points,omitempty"`
}

// Snapshot 房间的公共快照,经存储扇出推送给所有客户端
type Snapshot struct {
	RoomID   string           `json:"roomId"`
	RoomCode string           `json:"roomCode"`
	GameType models.GameType  `json:"gameType"`
	HostID   string           `json:"hostId"`
	Status   RoomStatus       `json:"status"`
	State    models.GameState `json:"state"`
	Players  []PlayerView     `json:"players"`
}

// BuildSnapshot 从行快照构造公共投影
func BuildSnapshot(row *models.Room, players []*models.Player, status RoomStatus) Snapshot {
	snap := Snapshot{
		RoomID:   row.ID,
		RoomCode: row.RoomCode,
		GameType: row.GameType,
		HostID:   row.HostID,
		Status:   status,
		State:    row.GameState,
		Players:  make([]PlayerView, 0, len(players)),
	}
	for _, p := range players {
		view := PlayerView{
			ID:          p.ID,
			Name:        p.PlayerName,
			IsHost:      p.IsHost,
			IsConnected: p.IsConnected,
		}
		switch {
		case p.PlayerData.Auction != nil:
			a := p.PlayerData.Auction
			view.Pressing = a.Pressing
			view.OptedOut = a.OptedOut
			view.HasBid = a.HasBid
			view.Tokens = a.Tokens
		case p.PlayerData.Cards != nil:
			c := p.PlayerData.Cards
			view.HandSize = len(c.Hand)
			view.SelectedDone = len(c.SelectedCards) > 0
			view.HasSubmitted = c.HasSubmitted
			view.Eliminated = c.Eliminated
			view.Points = c.Points
			view.Tokens = c.Tokens
		}
		snap.Players = append(snap.Players, view)
	}
	return snap
}
