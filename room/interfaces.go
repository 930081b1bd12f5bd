// room/interfaces.go
package room

import "time"

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// Metrics 协调器的观测钩子,monitor 包提供实现
type Metrics interface {
	PhaseTransition(forced bool)
	RoundResolved(elapsed time.Duration)
	StoreWriteFailure()
	SetActiveRooms(count int)
}

// NopMetrics 空实现,测试用
type NopMetrics struct{}

func (NopMetrics) PhaseTransition(bool)          {}
func (NopMetrics) RoundResolved(time.Duration)   {}
func (NopMetrics) StoreWriteFailure()            {}
func (NopMetrics) SetActiveRooms(int)            {}
