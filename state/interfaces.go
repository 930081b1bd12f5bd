// state/interfaces.go
package state

import (
	"time"

	"github.com/wfunc/partyroom/config"
	"github.com/wfunc/partyroom/models"
)

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() string
}

// RoomContext defines the interface that a Room must implement to be managed by the state machine.
// This breaks the import cycle between room and state.
type RoomContext interface {
	GetID() string
	GetGameType() models.GameType
	Settings() models.GameSettings
	Timing() config.GameConfig
	Now() time.Time

	// Players 每次决策前从存储取新快照,不信任内存缓存
	Players() []*models.Player
	// Eligible 当前可参与的玩家:在线、未淘汰、未弃权、资源未耗尽
	Eligible() []*models.Player

	State() models.GameState
	// ApplyState 带版本 CAS 的阶段记录写入
	ApplyState(mutate func(*models.GameState)) error
	UpdatePlayerData(playerID string, data models.PlayerData) error
	ResetRoundPlayers(nextRound int)

	ChangeState(newState State) error
	// TryBeginProcessing 轮次结算的进行中闩,防止轮询和事件回调重复结算
	TryBeginProcessing() bool
	EndProcessing()

	RecordTransition(forced bool)
	FinishGame()
	LogAction(playerID, action, detail string)
}
