package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 250 // Each pair is two users chatting with each other.
	MsgCount  = 20  // Messages per user
)

type AuthResponse struct {
	Token    string `json:"access_token"`
	ID       int    `json:"id"`
	Username string `json:"username"`
}

func main() {
	log.Printf("🔥 STARTING STRESS TEST: %d Users, %d Messages each...", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	// Pairs: User 0 talks to User 1, User 2 talks to User 3...
	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	tokenA, idA := authenticate(userA, pass)
	tokenB, idB := authenticate(userB, pass)

	if tokenA == "" || tokenB == "" {
		return // Failed auth
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)

	go converse(&wsWg, tokenA, idA, idB, userA)
	go converse(&wsWg, tokenB, idB, idA, userB)

	wsWg.Wait()
}

// authenticate registers (ignores error if exists) and logs in
func authenticate(username, password string) (string, int) {
	postJSON("/register", map[string]string{"username": username, "password": password})

	resp, err := postJSON("/login", map[string]string{"username": username, "password": password})
	if err != nil {
		log.Printf("❌ Login Failed [%s]: %v", username, err)
		return "", 0
	}
	defer resp.Body.Close()

	var data AuthResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token, data.ID
}

// converse joins the user's own room, spams direct messages at the peer,
// and drains incoming events until both sides finish.
func converse(wg *sync.WaitGroup, token string, selfID, peerID int, user string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, token), nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", user, err)
		return
	}
	defer conn.Close()

	// Drain inbound fan-out so the server's send buffer never fills.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	join := map[string]any{
		"event": "join_chat",
		"data":  map[string]any{"type": "user", "id": selfID},
	}
	if err := conn.WriteJSON(join); err != nil {
		log.Printf("❌ Join Fail [%s]: %v", user, err)
		return
	}

	for i := 0; i < MsgCount; i++ {
		msg := map[string]any{
			"event": "send_message",
			"data": map[string]any{
				"content":      fmt.Sprintf("LoadTest Msg %d from %s", i, user),
				"recipient_id": peerID,
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("❌ Send Fail [%s]: %v", user, err)
			break
		}
		// Small sleep to prevent instant localhost bottleneck
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("✅ %s finished sending %d msgs", user, MsgCount)
}

func postJSON(endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return http.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
