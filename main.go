package main

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wfunc/partyroom/broadcast"
	"github.com/wfunc/partyroom/config"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/models"
	"github.com/wfunc/partyroom/monitor"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/presence"
	"github.com/wfunc/partyroom/room"
	"github.com/wfunc/partyroom/server"
	"github.com/wfunc/partyroom/services"
	"github.com/wfunc/partyroom/session"
	"github.com/wfunc/partyroom/timer"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// 共享记录存储。Postgres 不可达时退回内存实现,
	// 协调语义完全一致,只是不持久化。
	var store persistence.Store
	var resultService *services.ResultService
	var actions *persistence.ActionLog

	pg := cfg.Database.Postgres
	gormStore, err := persistence.NewGormStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	if err != nil {
		logger.Log.Warnf("postgres unavailable, using in-memory store: %v", err)
		store = persistence.NewMemoryStore()
	} else {
		logger.Log.Info("Database connection successful.")
		store = gormStore
		resultService = services.NewResultService(gormStore.DB())

		actions, err = persistence.NewActionLog(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Warnf("action log unavailable: %v", err)
			actions = nil
		}
	}
	defer store.Close()

	// Metrics
	mon := monitor.NewMonitor("partyroom")
	go mon.StartServer(cfg.Server.MetricsAddress)

	clock := clockwork.NewRealClock()
	tracker := presence.NewTracker(store, cfg.Game.Staleness(), clock)
	sessions := session.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(sessions)

	var roomManager *room.Manager
	roomManager = room.NewManager(room.Deps{
		Store:       store,
		Tracker:     tracker,
		Clock:       clock,
		Cfg:         cfg.Game,
		Broadcaster: broadcaster,
		Metrics:     mon,
		Actions:     actions,
		OnGameOver: func(roomID string, players []*models.Player) {
			if resultService == nil {
				return
			}
			r, exists := roomManager.GetRoom(roomID)
			if !exists {
				return
			}
			if err := resultService.RecordGame(roomID, r.GameType, players, r.CreatedAt); err != nil {
				logger.Log.Warnf("record game %s: %v", roomID, err)
			}
		},
	})

	gameServer, err := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, server.Deps{
		Store:         store,
		RoomManager:   roomManager,
		Sessions:      sessions,
		Tracker:       tracker,
		Broadcaster:   broadcaster,
		ResultService: resultService,
		Actions:       actions,
	})
	if err != nil {
		logger.Log.Fatalf("Failed to create game server: %v", err)
	}

	// 周期作业:回收已结束/被遗弃的房间,刷新连接数
	timers := timer.NewTimerManager()
	defer timers.Stop()
	timers.AddTimer(30*time.Second, 30*time.Second, func() {
		roomManager.Reap()
	})
	timers.AddTimer(10*time.Second, 10*time.Second, func() {
		mon.SetConnectedPlayers(sessions.Count())
	})

	// Start Server
	logger.Log.Infof("Starting party room server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
