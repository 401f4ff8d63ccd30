// Command client is a terminal chat client for manual testing against a
// running server.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chat-hub/hub"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	token := flag.String("token", "", "Connection token (see the seed tool)")
	flag.Parse()

	if *token == "" {
		log.Fatal("A -token is required")
	}

	conn, resp, err := websocket.DefaultDialer.Dial(*serverURL+"?token="+*token, nil)
	if err != nil {
		log.Fatalf("Impossible de se connecter: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	color.Green.Println("Connected. Commands:")
	fmt.Println("  /msg <user-id> <text>      direct message")
	fmt.Println("  /say <room-id> <text>      room message")
	fmt.Println("  /typing <room-id>          typing indicator")
	fmt.Println("  /history <room-id>         replay history")
	fmt.Println("  /search <room-id> <terms>  full-text search")
	fmt.Println("  /quit")

	go readLoop(conn)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}
		if err := handleCommand(conn, line); err != nil {
			color.Red.Println(err)
		}
	}
}

func handleCommand(conn *websocket.Conn, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "/") {
		return fmt.Errorf("unknown command %q", line)
	}
	id, err := uuid.Parse(fields[1])
	if err != nil {
		return fmt.Errorf("bad identifier %q: %v", fields[1], err)
	}
	rest := strings.Join(fields[2:], " ")

	switch fields[0] {
	case "/msg":
		return send(conn, hub.EventSendMessage, map[string]any{
			"content": rest, "receiver_id": id,
		})
	case "/say":
		return send(conn, hub.EventSendMessage, map[string]any{
			"content": rest, "chat_room_id": id,
		})
	case "/typing":
		return send(conn, hub.EventTypingStart, map[string]any{"chat_room_id": id})
	case "/history":
		return send(conn, hub.EventGetMessages, map[string]any{"chat_room_id": id})
	case "/search":
		return send(conn, hub.EventSearchMessages, map[string]any{
			"chat_room_id": id, "terms": rest,
		})
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func send(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(envelope{Event: event, Data: raw})
}

func readLoop(conn *websocket.Conn) {
	for {
		var frame envelope
		if err := conn.ReadJSON(&frame); err != nil {
			color.Red.Printf("Connection lost: %v\n", err)
			os.Exit(1)
		}
		render(frame)
	}
}

func render(frame envelope) {
	switch frame.Event {
	case hub.EventReceiveMessage:
		var view hub.MessageView
		if err := json.Unmarshal(frame.Data, &view); err == nil {
			header := color.New(color.BgBlack, color.FgGreen).
				Render(fmt.Sprintf("[%s] %s", view.CreatedAt.Format("15:04:05"), view.Sender.Username))
			fmt.Printf("%s %s\n", header, view.Content)
			return
		}
	case hub.EventMessageHistory:
		var history hub.HistoryEvent
		if err := json.Unmarshal(frame.Data, &history); err == nil {
			color.Yellow.Printf("--- history page %d (%d messages) ---\n", history.Page, len(history.Messages))
			for _, m := range history.Messages {
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Sender.Username, m.Content)
			}
			return
		}
	case hub.EventError:
		var wireErr hub.ErrorEvent
		if err := json.Unmarshal(frame.Data, &wireErr); err == nil {
			color.Red.Printf("[%s] %s\n", wireErr.Kind, wireErr.Message)
			return
		}
	}
	color.Cyan.Printf("<< %s %s\n", frame.Event, string(frame.Data))
}
