// persistence/memory.go
package persistence

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/partyroom/models"
)

// MemoryStore 进程内存储实现,测试与单机部署使用
type MemoryStore struct {
	mutex    sync.RWMutex
	rooms    map[string]*models.Room
	byCode   map[string]string // room code -> id
	players  map[string]*models.Player
	notifier *notifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*models.Room),
		byCode:   make(map[string]string),
		players:  make(map[string]*models.Player),
		notifier: newNotifier(),
	}
}

func (s *MemoryStore) CreateRoom(room *models.Room) (*models.Room, error) {
	if err := room.GameSettings.Validate(room.GameType); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	if _, exists := s.rooms[room.ID]; exists {
		s.mutex.Unlock()
		return nil, ErrDuplicateID
	}
	stored := room.Clone()
	s.rooms[stored.ID] = stored
	s.byCode[stored.RoomCode] = stored.ID
	s.mutex.Unlock()

	s.notifier.emit(stored.ID, Event{Type: EventInsert, Table: "rooms", Room: stored.Clone()})
	return stored.Clone(), nil
}

func (s *MemoryStore) GetRoom(id string) (*models.Room, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	room, exists := s.rooms[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	return room.Clone(), nil
}

func (s *MemoryStore) FindRoomByCode(code string) (*models.Room, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	id, exists := s.byCode[code]
	if !exists {
		return nil, ErrRecordNotFound
	}
	room := s.rooms[id]
	if room == nil || !room.IsActive {
		return nil, ErrRecordNotFound
	}
	return room.Clone(), nil
}

func (s *MemoryStore) UpdateRoom(id string, patch RoomPatch) error {
	s.mutex.Lock()
	room, exists := s.rooms[id]
	if !exists {
		s.mutex.Unlock()
		return ErrRecordNotFound
	}
	if patch.HostID != nil {
		room.HostID = *patch.HostID
	}
	if patch.IsActive != nil {
		room.IsActive = *patch.IsActive
	}
	if patch.State != nil {
		room.GameState = patch.State.Clone()
	}
	snapshot := room.Clone()
	s.mutex.Unlock()

	s.notifier.emit(id, Event{Type: EventUpdate, Table: "rooms", Room: snapshot})
	return nil
}

func (s *MemoryStore) CompareAndSwapState(id string, expectVersion int64, state models.GameState) error {
	s.mutex.Lock()
	room, exists := s.rooms[id]
	if !exists {
		s.mutex.Unlock()
		return ErrRecordNotFound
	}
	if room.GameState.Version != expectVersion {
		s.mutex.Unlock()
		return ErrVersionConflict
	}
	state.Version = expectVersion + 1
	room.GameState = state.Clone()
	snapshot := room.Clone()
	s.mutex.Unlock()

	s.notifier.emit(id, Event{Type: EventUpdate, Table: "rooms", Room: snapshot})
	return nil
}

func (s *MemoryStore) CreatePlayer(p *models.Player) error {
	if err := p.PlayerData.Validate(); err != nil {
		return err
	}
	s.mutex.Lock()
	if _, exists := s.players[p.ID]; exists {
		s.mutex.Unlock()
		return ErrDuplicateID
	}
	stored := p.Clone()
	s.players[stored.ID] = stored
	s.mutex.Unlock()

	s.notifier.emit(stored.RoomID, Event{Type: EventInsert, Table: "players", Player: stored.Clone()})
	return nil
}

func (s *MemoryStore) GetPlayer(id string) (*models.Player, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, exists := s.players[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) PlayersByRoom(roomID string) ([]*models.Player, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var result []*models.Player
	for _, p := range s.players {
		if p.RoomID == roomID {
			result = append(result, p.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdatePlayer(id string, patch PlayerPatch) error {
	if patch.Data != nil {
		if err := patch.Data.Validate(); err != nil {
			return err
		}
	}
	s.mutex.Lock()
	p, exists := s.players[id]
	if !exists {
		s.mutex.Unlock()
		return ErrRecordNotFound
	}
	if patch.IsHost != nil {
		p.IsHost = *patch.IsHost
	}
	if patch.IsConnected != nil {
		p.IsConnected = *patch.IsConnected
	}
	if patch.LastHeartbeat != nil {
		p.LastHeartbeat = *patch.LastHeartbeat
	}
	if patch.Data != nil {
		p.PlayerData = patch.Data.Clone()
	}
	snapshot := p.Clone()
	s.mutex.Unlock()

	s.notifier.emit(snapshot.RoomID, Event{Type: EventUpdate, Table: "players", Player: snapshot})
	return nil
}

func (s *MemoryStore) DeletePlayer(id string) error {
	s.mutex.Lock()
	p, exists := s.players[id]
	if !exists {
		s.mutex.Unlock()
		return ErrRecordNotFound
	}
	delete(s.players, id)
	snapshot := p.Clone()
	s.mutex.Unlock()

	s.notifier.emit(snapshot.RoomID, Event{Type: EventDelete, Table: "players", Player: snapshot})
	return nil
}

func (s *MemoryStore) Subscribe(roomID string, fn func(Event)) (cancel func()) {
	return s.notifier.subscribe(roomID, fn)
}

func (s *MemoryStore) Close() error {
	s.notifier.close()
	return nil
}
