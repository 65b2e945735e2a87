package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

// frame mirrors the server's JSON envelope.
type frame struct {
	Type      string          `json:"type"`
	PlayerID  string          `json:"playerId,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgType, roomID string, data any) error {
	f := frame{Type: msgType, RoomID: roomID, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		f.Data = raw
	}
	return c.WriteJSON(f)
}

func action(name string, data any) map[string]any {
	return map[string]any{"action": name, "data": data}
}

func main() {
	addr := pflag.String("addr", "localhost:8080", "server host:port")
	name := pflag.String("name", "", "player name")
	roomID := pflag.String("room", "default", "room to join")
	quiet := pflag.Bool("quiet", false, "hide state_sync frames")
	pflag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var f frame
			if err := json.Unmarshal(message, &f); err != nil {
				log.Printf("Received invalid frame: %s", message)
				continue
			}
			if *quiet && f.Type == "state_sync" {
				continue
			}
			log.Printf("<- RECV %s (room %q): %s", f.Type, f.RoomID, f.Data)
		}
	}()

	log.Printf("Joining room %s...", *roomID)
	if err := send(c, "join", "", map[string]string{"name": *name, "roomId": *roomID}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: move <x> <y> | health <n> | score <n> | leave | quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			closeConn(c, done)
			return
		case text, ok := <-lines:
			if !ok || text == "quit" {
				closeConn(c, done)
				return
			}
			if err := handleCommand(c, *roomID, strings.Fields(text)); err != nil {
				log.Println("Command error:", err)
			}
		}
	}
}

func handleCommand(c *websocket.Conn, roomID string, args []string) error {
	if len(args) == 0 {
		return nil
	}
	nums := make([]float64, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return err
		}
		nums = append(nums, n)
	}

	switch {
	case args[0] == "move" && len(nums) == 2:
		pos := map[string]float64{"x": nums[0], "y": nums[1]}
		return send(c, "player_action", "", action("move", map[string]any{"position": pos}))
	case args[0] == "health" && len(nums) == 1:
		return send(c, "player_action", "", action("updateHealth", map[string]any{"health": nums[0]}))
	case args[0] == "score" && len(nums) == 1:
		return send(c, "player_action", "", action("updateScore", map[string]any{"score": int64(nums[0])}))
	case args[0] == "leave":
		return send(c, "leave", roomID, nil)
	default:
		log.Printf("Unknown command %q", strings.Join(args, " "))
		return nil
	}
}

func closeConn(c *websocket.Conn, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
