package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeHeartbeat    = 1
	MsgTypeError        = 2
	MsgTypeJoinRoom     = 101
	MsgTypeLeaveRoom    = 102
	MsgTypeCreateRoom   = 103
	MsgTypeStartGame    = 104
	MsgTypePlayerAction = 202
	MsgTypeRoomState    = 301
	MsgTypePlayerState  = 302
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

type roomSnapshot struct {
	RoomCode string `json:"roomCode"`
	State    struct {
		Phase string `json:"gamePhase"`
		Round int    `json:"currentRound"`
		// 倒计时和拍卖都以服务器时间戳广播,客户端本地渲染剩余时间
		CountdownStart *time.Time `json:"countdownStart,omitempty"`
		AuctionStart   *time.Time `json:"auctionStart,omitempty"`
		WinnerID       string     `json:"winnerId,omitempty"`
	} `json:"state"`
	Players []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Pressing bool   `json:"pressing,omitempty"`
	} `json:"players"`
}

func renderSnapshot(data []byte) {
	var snap roomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("<- ROOM: %s", string(data))
		return
	}
	line := fmt.Sprintf("[%s] round %d phase %s", snap.RoomCode, snap.State.Round, snap.State.Phase)
	if snap.State.AuctionStart != nil {
		// 拍卖从服务器宣布的时刻起算,本地时钟只用来显示
		elapsed := time.Since(*snap.State.AuctionStart)
		if elapsed < 0 {
			line += fmt.Sprintf(" (starts in %v)", -elapsed.Round(100*time.Millisecond))
		} else {
			line += fmt.Sprintf(" (running %v)", elapsed.Round(100*time.Millisecond))
		}
	}
	if snap.State.WinnerID != "" {
		line += " winner=" + snap.State.WinnerID
	}
	pressing := 0
	for _, p := range snap.Players {
		if p.Pressing {
			pressing++
		}
	}
	log.Printf("<- %s, %d/%d pressing", line, pressing, len(snap.Players))
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	name := flag.String("name", "player", "player name")
	gameType := flag.String("game", "auction", "game type: auction, territory or cards")
	joinCode := flag.String("join", "", "room code to join instead of creating")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}
			if len(message) < 4 {
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			switch msgID {
			case MsgTypeHeartbeat:
				// 服务器回执,无需展示
			case MsgTypeRoomState:
				renderSnapshot(data)
			case MsgTypePlayerState:
				log.Printf("<- YOU: %s", string(data))
			case MsgTypeError:
				log.Printf("<- ERROR: %s", string(data))
			default:
				log.Printf("<- RECV (id %d): %s", msgID, string(data))
			}
		}
	}()

	// Client-side heartbeat keeps the presence tracker fed.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				send(c, MsgTypeHeartbeat, nil)
			}
		}
	}()

	if *joinCode != "" {
		log.Printf("joining room %s...", *joinCode)
		sendJSON(c, MsgTypeJoinRoom, map[string]string{
			"roomCode":   strings.ToUpper(*joinCode),
			"playerName": *name,
		})
	} else {
		log.Printf("creating %s room...", *gameType)
		sendJSON(c, MsgTypeCreateRoom, map[string]string{
			"playerName": *name,
			"gameType":   *gameType,
		})
	}

	fmt.Println("commands: start | press | release | select <card> | submit <card> | continue | leave | quit")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt received, closing connection")
			c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "quit":
				c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			case "start":
				send(c, MsgTypeStartGame, nil)
			case "leave":
				send(c, MsgTypeLeaveRoom, nil)
			case "press", "release", "continue":
				sendJSON(c, MsgTypePlayerAction, map[string]string{"type": fields[0]})
			case "select", "submit":
				if len(fields) < 2 {
					fmt.Println("usage:", fields[0], "<card>")
					continue
				}
				var card int
				if _, err := fmt.Sscanf(fields[1], "%d", &card); err != nil {
					fmt.Println("card must be a number")
					continue
				}
				action := "selectCard"
				if fields[0] == "submit" {
					action = "submitCard"
				}
				sendJSON(c, MsgTypePlayerAction, map[string]interface{}{"type": action, "card": card})
			default:
				fmt.Println("unknown command:", fields[0])
			}
		}
	}
}
