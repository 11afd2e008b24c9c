package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"tablero_total/internal/service"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "server host:port")
	flag.Parse()

	// With JWT_SECRET set the smoke players get stable ids.
	auth := service.NewJWT(os.Getenv("JWT_SECRET"))

	connA := dial(*addr, auth, "smoke-a", "A")
	defer connA.Close()
	connB := dial(*addr, auth, "smoke-b", "B")
	defer connB.Close()

	send(connA, "create", "1", map[string]any{
		"displayName": "A",
		"options":     map[string]any{"game": "rock_paper_scissors", "rounds": 1},
	})
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(await(connA, "create").Payload, &created); err != nil {
		log.Fatalf("create reply: %v", err)
	}
	log.Printf("room %s created", created.RoomCode)

	send(connB, "join", "2", map[string]any{"displayName": "B", "roomCode": created.RoomCode})
	await(connB, "join")

	for _, conn := range []*websocket.Conn{connA, connB} {
		send(conn, "client_ready", "", nil)
		send(conn, "mark_ready", "", nil)
	}

	await(connA, "start_game")
	await(connB, "start_game")

	send(connA, "move", "", map[string]any{"move": "rock"})
	send(connB, "move", "", map[string]any{"move": "scissors"})

	log.Printf("A got: %s", await(connA, "finish_game").Payload)
	log.Printf("B got: %s", await(connB, "finish_game").Payload)

	log.Println("smoke test finished")
}

func dial(addr string, auth *service.JWT, id, name string) *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	if auth.Enabled() {
		token, err := auth.Generate(id, name, time.Hour)
		if err != nil {
			log.Fatalf("token %s: %v", id, err)
		}
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", name, err)
	}
	return conn
}

func send(conn *websocket.Conn, typ, ref string, payload any) {
	f := map[string]any{"type": typ}
	if ref != "" {
		f["ref"] = ref
	}
	if payload != nil {
		f["payload"] = payload
	}
	if err := conn.WriteJSON(f); err != nil {
		log.Fatalf("write %s: %v", typ, err)
	}
}

// await skips frames until typ arrives; an error frame is fatal.
func await(conn *websocket.Conn, typ string) frame {
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			log.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == "error" {
			log.Fatalf("server error while waiting for %s: %s", typ, f.Payload)
		}
		if f.Type == typ {
			fmt.Printf("<- %s\n", f.Type)
			return f
		}
	}
}
