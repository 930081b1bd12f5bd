// server/server.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/partyroom/broadcast"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/network"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/presence"
	"github.com/wfunc/partyroom/room"
	partyroom_rpc "github.com/wfunc/partyroom/rpc"
	"github.com/wfunc/partyroom/services"
	"github.com/wfunc/partyroom/session"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	store          persistence.Store
	roomManager    *room.Manager
	sessionManager *session.Manager
	tracker        *presence.Tracker
	broadcaster    broadcast.Broadcaster
	rpcServer      *partyroom_rpc.Server
	shutdownChan   chan struct{}
}

type Deps struct {
	Store         persistence.Store
	RoomManager   *room.Manager
	Sessions      *session.Manager
	Tracker       *presence.Tracker
	Broadcaster   broadcast.Broadcaster
	ResultService *services.ResultService
	Actions       *persistence.ActionLog
}

func NewGameServer(addr, rpcAddr string, deps Deps) (*GameServer, error) {
	s := &GameServer{
		addr:           addr,
		store:          deps.Store,
		roomManager:    deps.RoomManager,
		sessionManager: deps.Sessions,
		tracker:        deps.Tracker,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = deps.Broadcaster
	if s.broadcaster == nil {
		s.broadcaster = broadcast.NewRoomBroadcaster(deps.Sessions)
	}

	rpcServer, err := partyroom_rpc.NewServer(rpcAddr)
	if err != nil {
		return nil, err
	}
	s.rpcServer = rpcServer

	adminService := partyroom_rpc.NewAdminService(deps.RoomManager, deps.ResultService, deps.Actions)
	if err := rpc.Register(adminService); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("party room server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)

	logger.Log.Infof("new connection from %s, session %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("connection closed from %s, session %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.markDisconnected(sess)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

// markDisconnected 断线只标记不删行:心跳恢复前由清扫逻辑兜底
func (s *GameServer) markDisconnected(sess *session.Session) {
	_, playerID := sess.Attached()
	if playerID == "" {
		return
	}
	disconnected := false
	if err := s.store.UpdatePlayer(playerID, persistence.PlayerPatch{IsConnected: &disconnected}); err != nil {
		logger.Log.Debugf("mark disconnected %s: %v", playerID, err)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		s.handleHeartbeat(sess)
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeStartGame:
		s.handleStartGame(sess)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypePlayerAction:
		s.handlePlayerAction(sess, packet)
	default:
		logger.Log.Infof("unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleHeartbeat(sess *session.Session) {
	sess.Touch()
	if _, playerID := sess.Attached(); playerID != "" {
		if err := s.tracker.Heartbeat(playerID); err != nil {
			logger.Log.Debugf("heartbeat %s: %v", playerID, err)
		}
	}
	sess.Send(network.MsgTypeHeartbeat, nil)
}

type createRoomRequest struct {
	PlayerName string               `json:"playerName"`
	GameType   models.GameType      `json:"gameType"`
	Settings   *models.GameSettings `json:"settings,omitempty"`
}

type roomJoinedResponse struct {
	RoomID   string `json:"roomId"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req createRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "BAD_REQUEST", "malformed create room request")
		return
	}
	if req.PlayerName == "" {
		s.sendError(sess, "BAD_REQUEST", "player name required")
		return
	}

	settings := models.DefaultSettings(req.GameType)
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := settings.Validate(req.GameType); err != nil {
		s.sendError(sess, "BAD_REQUEST", err.Error())
		return
	}

	r, host, err := s.roomManager.CreateRoom(req.PlayerName, req.GameType, settings)
	if err != nil {
		s.sendError(sess, errorCode(err), err.Error())
		return
	}

	sess.Attach(r.ID, host.ID)
	logger.Log.Infof("session %s created room %s (code %s)", sess.GetID(), r.ID, r.Code)

	sess.SendJSON(network.MsgTypeCreateRoom, roomJoinedResponse{
		RoomID:   r.ID,
		RoomCode: r.Code,
		PlayerID: host.ID,
		IsHost:   true,
	})
	s.pushPlayerState(sess)
}

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, "BAD_REQUEST", "malformed join room request")
		return
	}

	r, p, err := s.roomManager.JoinRoom(req.RoomCode, req.PlayerName)
	if err != nil {
		s.sendError(sess, errorCode(err), err.Error())
		return
	}

	sess.Attach(r.ID, p.ID)
	logger.Log.Infof("session %s joined room %s as %s", sess.GetID(), r.ID, p.ID)

	sess.SendJSON(network.MsgTypeJoinRoom, roomJoinedResponse{
		RoomID:   r.ID,
		RoomCode: r.Code,
		PlayerID: p.ID,
	})
	s.pushPlayerState(sess)
}

func (s *GameServer) handleStartGame(sess *session.Session) {
	roomID, playerID := sess.Attached()
	if roomID == "" {
		s.sendError(sess, "NOT_IN_ROOM", "join a room first")
		return
	}
	if err := s.roomManager.StartGame(roomID, playerID); err != nil {
		s.sendError(sess, errorCode(err), err.Error())
	}
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	roomID, playerID := sess.Attached()
	if roomID == "" {
		return
	}
	if err := s.roomManager.LeaveRoom(roomID, playerID); err != nil {
		logger.Log.Debugf("leave room %s: %v", roomID, err)
	}
	sess.Detach()
}

func (s *GameServer) handlePlayerAction(sess *session.Session, packet *network.Packet) {
	roomID, playerID := sess.Attached()
	if roomID == "" {
		s.sendError(sess, "NOT_IN_ROOM", "join a room first")
		return
	}

	r, exists := s.roomManager.GetRoom(roomID)
	if !exists {
		s.sendError(sess, "ROOM_NOT_FOUND", "room no longer exists")
		return
	}

	if err := r.HandleAction(playerID, packet.Data); err != nil {
		s.sendError(sess, errorCode(err), err.Error())
		return
	}
	s.pushPlayerState(sess)
}

// privatePlayerState 玩家私有投影:自己的手牌、出价和时间银行
type privatePlayerState struct {
	PlayerID string            `json:"playerId"`
	Data     models.PlayerData `json:"data"`
	SentAt   int64             `json:"sentAt"`
}

func (s *GameServer) pushPlayerState(sess *session.Session) {
	_, playerID := sess.Attached()
	if playerID == "" {
		return
	}
	p, err := s.store.GetPlayer(playerID)
	if err != nil {
		return
	}
	sess.SendJSON(network.MsgTypePlayerState, privatePlayerState{
		PlayerID: playerID,
		Data:     p.PlayerData,
		SentAt:   time.Now().UnixMilli(),
	})
}

// sendError 房间级错误只回给发起方
func (s *GameServer) sendError(sess *session.Session, code, message string) {
	if err := sess.SendJSON(network.MsgTypeError, network.ErrorPayload{Code: code, Message: message}); err != nil {
		logger.Log.Debugf("send error to %s: %v", sess.GetID(), err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, room.ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, room.ErrGameAlreadyStarted):
		return "GAME_ALREADY_STARTED"
	case errors.Is(err, room.ErrGameNotStarted):
		return "GAME_NOT_STARTED"
	case errors.Is(err, room.ErrNotHost):
		return "NOT_HOST"
	case errors.Is(err, room.ErrTooFewPlayers):
		return "TOO_FEW_PLAYERS"
	case errors.Is(err, room.ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
