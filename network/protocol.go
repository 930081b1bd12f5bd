// network/protocol.go
package network

const (
	MsgTypeHeartbeat = 1
	MsgTypeError     = 2

	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103
	MsgTypeStartGame  = 104

	MsgTypePlayerAction = 202

	MsgTypeRoomState   = 301
	MsgTypePlayerState = 302
	MsgTypeGameOver    = 305
)

// ErrorPayload 发送给动作发起方的房间级错误,不影响其他客户端
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
