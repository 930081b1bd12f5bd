// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/partyroom/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToPlayer(playerID string, msgID uint16, data []byte) error
}

// RoomBroadcaster 通过会话管理器按房间扇出
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessionManager: sessionManager}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	sessions := b.sessionManager.GetByRoomID(roomID)
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败不影响其他客户端,由读循环负责清理
			continue
		}
	}
	return nil
}

// BroadcastToPlayer 私有投影(手牌、自己的出价)只发给所有者
func (b *RoomBroadcaster) BroadcastToPlayer(playerID string, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.GetByPlayerID(playerID) {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}
