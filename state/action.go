package state

import "errors"

// 动作类型
const (
	ActionPress      = "press"
	ActionRelease    = "release"
	ActionSelectCard = "selectCard"
	ActionSubmitCard = "submitCard"
	ActionContinue   = "continue"
)

// Action represents a player action decoded from a packet.
type Action struct {
	Type string `json:"type"`
	Card int    `json:"card,omitempty"`
}

var (
	// ErrAlreadySubmitted 重复动作按无操作处理,不作为硬错误上抛
	ErrAlreadySubmitted = errors.New("action already submitted")
	ErrActionNotAllowed = errors.New("action not allowed in current phase")
)
