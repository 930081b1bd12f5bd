// rpc/rpc.go
package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
	"github.com/wfunc/partyroom/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService 运维查询:房间状态、玩家战绩、动作审计
type AdminService struct {
	roomManager   *room.Manager
	resultService *services.ResultService
	actions       *persistence.ActionLog
}

func NewAdminService(rm *room.Manager, rs *services.ResultService, actions *persistence.ActionLog) *AdminService {
	return &AdminService{roomManager: rm, resultService: rs, actions: actions}
}

type RoomStatsArgs struct {
	RoomCode string
}

type RoomStatsReply struct {
	RoomID   string
	GameType string
	Status   int
	Phase    string
	Round    int
	Players  int
}

// GetRoomStats 按房间码查询房间状态
func (as *AdminService) GetRoomStats(args *RoomStatsArgs, reply *RoomStatsReply) error {
	r, exists := as.roomManager.GetRoomByCode(args.RoomCode)
	if !exists {
		return room.ErrRoomNotFound
	}
	st := r.State()
	reply.RoomID = r.ID
	reply.GameType = string(r.GameType)
	reply.Status = int(r.GetStatus())
	reply.Phase = string(st.Phase)
	reply.Round = st.CurrentRound
	reply.Players = len(r.Players())
	return nil
}

type PlayerStatsArgs struct {
	PlayerID string
}

type PlayerStatsReply struct {
	Stats *models.PlayerStats
}

// GetPlayerStats 查询玩家历史战绩
func (as *AdminService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := as.resultService.GetPlayerStats(args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type RecentActionsArgs struct {
	RoomID string
	Limit  int
}

type RecentActionsReply struct {
	Actions []persistence.PlayerAction
}

// GetRecentActions 动作审计(并列判定排查用)
func (as *AdminService) GetRecentActions(args *RecentActionsArgs, reply *RecentActionsReply) error {
	if as.actions == nil {
		return nil
	}
	limit := args.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	actions, err := as.actions.Recent(args.RoomID, limit)
	if err != nil {
		return err
	}
	reply.Actions = actions
	return nil
}
