package room

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room full")
	ErrNotHost            = errors.New("not the host")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameNotStarted     = errors.New("game not started")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTooFewPlayers      = errors.New("not enough players to start")
)
