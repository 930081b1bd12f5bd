package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/partyroom/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error         { return nil }
func (m *MockConnection) SendJSON(msgID uint16, v interface{}) error   { return nil }
func (m *MockConnection) Close() error                                 { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                         { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)          {}
func (m *MockConnection) ReadPacket() (*network.Packet, error)         { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestSession_AttachDetach(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})

	roomID, playerID := sess.Attached()
	if roomID != "" || playerID != "" {
		t.Fatal("fresh session must not be attached")
	}

	sess.Attach("room1", "player1")
	roomID, playerID = sess.Attached()
	if roomID != "room1" || playerID != "player1" {
		t.Errorf("attached = (%s, %s)", roomID, playerID)
	}

	sess.Detach()
	roomID, playerID = sess.Attached()
	if roomID != "" || playerID != "" {
		t.Error("detach should clear the binding")
	}
}

func TestManager_GetByRoomID(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.Attach("roomA", "p1")

	sess2 := NewSession("session2", &MockConnection{})
	sess2.Attach("roomB", "p2")

	sess3 := NewSession("session3", &MockConnection{})
	sess3.Attach("roomA", "p3")

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	roomA := manager.GetByRoomID("roomA")
	if len(roomA) != 2 {
		t.Errorf("Expected 2 sessions in roomA, got %d", len(roomA))
	}

	roomB := manager.GetByRoomID("roomB")
	if len(roomB) != 1 {
		t.Errorf("Expected 1 session in roomB, got %d", len(roomB))
	}

	roomC := manager.GetByRoomID("roomC")
	if len(roomC) != 0 {
		t.Errorf("Expected 0 sessions in roomC, got %d", len(roomC))
	}
}

func TestManager_GetByPlayerID(t *testing.T) {
	manager := NewManager()

	sess := NewSession("session1", &MockConnection{})
	sess.Attach("roomA", "p1")
	manager.Add(sess)

	if got := manager.GetByPlayerID("p1"); len(got) != 1 {
		t.Errorf("Expected 1 session for p1, got %d", len(got))
	}
	if got := manager.GetByPlayerID("ghost"); len(got) != 0 {
		t.Errorf("Expected 0 sessions for unknown player, got %d", len(got))
	}
}
