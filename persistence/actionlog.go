// persistence/actionlog.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

// ActionLog 玩家动作的追加式记录(press/release/heartbeat),仅用于诊断
// 和并列判定的审计,不参与正确性。
type ActionLog struct {
	db *sql.DB
}

// PlayerAction 一条动作记录
type PlayerAction struct {
	ID       int64     `json:"id"`
	RoomID   string    `json:"room_id"`
	PlayerID string    `json:"player_id"`
	Action   string    `json:"action"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// NewActionLog 创建动作日志连接
func NewActionLog(host string, port int, user, password, dbname string) (*ActionLog, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initActionTable(db); err != nil {
		return nil, err
	}

	return &ActionLog{db: db}, nil
}

func initActionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS player_actions (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_player_actions_room ON player_actions (room_id, at);
	`)
	return err
}

// Append 追加一条动作。失败只影响诊断,调用方可忽略错误。
func (l *ActionLog) Append(roomID, playerID, action, detail string, at time.Time) error {
	_, err := l.db.Exec(
		`INSERT INTO player_actions (room_id, player_id, action, detail, at) VALUES ($1, $2, $3, $4, $5)`,
		roomID, playerID, action, detail, at,
	)
	return err
}

// Recent 返回某房间最近的动作记录,新到旧
func (l *ActionLog) Recent(roomID string, limit int) ([]PlayerAction, error) {
	rows, err := l.db.Query(
		`SELECT id, room_id, player_id, action, detail, at FROM player_actions
		 WHERE room_id = $1 ORDER BY at DESC LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []PlayerAction
	for rows.Next() {
		var a PlayerAction
		if err := rows.Scan(&a.ID, &a.RoomID, &a.PlayerID, &a.Action, &a.Detail, &a.At); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Close 关闭连接
func (l *ActionLog) Close() error {
	return l.db.Close()
}
