package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"researchhub-chat/internal/middleware"
)

type Handler struct {
	hub      *Hub
	store    Store
	members  MembershipChecker
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, store Store, members MembershipChecker, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Handler{
		hub:     hub,
		store:   store,
		members: members,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWs upgrades to a websocket and starts the client pumps. The auth
// middleware has already resolved the principal; no principal, no socket.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	client := newClient(h.hub, conn, principal)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// DirectHistory handles GET /api/chat/history/{userID}. Fetching the
// conversation marks the peer's unread messages as read.
func (h *Handler) DirectHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	peerID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if peerID == principal.ID {
		http.Error(w, "cannot chat with yourself", http.StatusBadRequest)
		return
	}

	msgs, err := h.store.DirectHistory(r.Context(), principal.ID, peerID)
	if err != nil {
		log.Printf("direct history for user %d: %v", principal.ID, err)
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}

	respondMessages(w, msgs, principal.ID)
}

// ProjectHistory handles GET /api/chat/project/{projectID}. Members only.
func (h *Handler) ProjectHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID, err := strconv.Atoi(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	isMember, err := h.members.IsMember(r.Context(), projectID, principal.ID)
	if err != nil {
		log.Printf("membership lookup for user %d: %v", principal.ID, err)
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}
	if !isMember {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	msgs, err := h.store.ProjectHistory(r.Context(), projectID)
	if err != nil {
		log.Printf("project history %d: %v", projectID, err)
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}

	respondMessages(w, msgs, principal.ID)
}

// SendMessage handles POST /api/chat/send, the request-driven twin of
// the send_message event for callers holding no live connection.
// Subscribed connections still receive the fan-out.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req sendPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.hub.Send(r.Context(), principal, req.Content, req.RecipientID, req.ProjectID)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("send from user %d: %v", principal.ID, err)
		http.Error(w, "failed to send", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message_id": msg.ID,
		"created_at": msg.CreatedAt,
	})
}

// ListConversations handles GET /api/chat/conversations: the inbox.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summaries, err := h.store.ConversationSummaries(r.Context(), principal.ID)
	if err != nil {
		log.Printf("conversations for user %d: %v", principal.ID, err)
		http.Error(w, "could not load conversations", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []ConversationSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"conversations": summaries})
}

type historyMessage struct {
	ID         int64       `json:"id"`
	Content    string      `json:"content"`
	SenderID   int         `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Type       MessageType `json:"type"`
	IsRead     bool        `json:"is_read"`
	CreatedAt  time.Time   `json:"created_at"`
	IsOwn      bool        `json:"is_own"`
}

func respondMessages(w http.ResponseWriter, msgs []Message, viewer int) {
	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{
			ID:         m.ID,
			Content:    m.Content,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Type:       m.Type,
			IsRead:     m.IsRead,
			CreatedAt:  m.CreatedAt,
			IsOwn:      m.SenderID == viewer,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"messages": out})
}
