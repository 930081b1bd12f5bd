// services/result_service.go
package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/partyroom/models"
)

// ResultService 终局落库与玩家战绩聚合
type ResultService struct {
	db *gorm.DB
}

func NewResultService(db *gorm.DB) *ResultService {
	return &ResultService{db: db}
}

// FinalStanding 写入对局记录的玩家条目
type FinalStanding struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Tokens   int    `json:"tokens"`
	Points   int    `json:"points"`
	Winner   bool   `json:"winner"`
}

// RecordGame 终局时写入对局记录。用事务保证记录完整。
func (s *ResultService) RecordGame(roomID string, gameType models.GameType, players []*models.Player, startedAt time.Time) error {
	if s.db == nil {
		return nil
	}

	standings := make([]FinalStanding, 0, len(players))
	bestTokens := -1
	for _, p := range players {
		st := FinalStanding{PlayerID: p.ID, Name: p.PlayerName}
		switch {
		case p.PlayerData.Auction != nil:
			st.Tokens = p.PlayerData.Auction.Tokens
		case p.PlayerData.Cards != nil:
			st.Tokens = p.PlayerData.Cards.Tokens
			st.Points = p.PlayerData.Cards.Points
		}
		if st.Tokens > bestTokens {
			bestTokens = st.Tokens
		}
		standings = append(standings, st)
	}
	winners := 0
	for i := range standings {
		if standings[i].Tokens == bestTokens && bestTokens > 0 {
			standings[i].Winner = true
			winners++
		}
	}
	// 并列最高不记胜者
	if winners > 1 {
		for i := range standings {
			standings[i].Winner = false
		}
	}

	playersJSON, err := json.Marshal(standings)
	if err != nil {
		return err
	}
	result := map[string]interface{}{
		"best_tokens": bestTokens,
		"winners":     winners,
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	record := models.GormGameRecord{
		RoomID:   roomID,
		GameType: string(gameType),
		Players:  playersJSON,
		Result:   resultJSON,
		Duration: int(time.Since(startedAt).Seconds()),
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
}

// GetPlayerStats 聚合某玩家的历史战绩
func (s *ResultService) GetPlayerStats(playerID string) (*models.PlayerStats, error) {
	if s.db == nil {
		return &models.PlayerStats{}, nil
	}

	var records []models.GormGameRecord
	err := s.db.Where("players::text LIKE ?", "%"+playerID+"%").Find(&records).Error
	if err != nil {
		return nil, err
	}

	stats := &models.PlayerStats{}
	for _, rec := range records {
		var standings []FinalStanding
		if err := json.Unmarshal(rec.Players, &standings); err != nil {
			continue
		}
		for _, st := range standings {
			if st.PlayerID != playerID {
				continue
			}
			stats.TotalGames++
			stats.TotalTokens += st.Tokens
			stats.TotalPoints += st.Points
			if st.Winner {
				stats.Wins++
			}
		}
	}
	return stats, nil
}
