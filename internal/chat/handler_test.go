package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"researchhub-chat/internal/middleware"
	"researchhub-chat/internal/user"
)

// asPrincipal injects an authenticated identity the way the real auth
// middleware does, without minting tokens.
func asPrincipal(p user.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
		})
	}
}

func newTestServer(store Store, members MembershipChecker, p user.Principal) *chi.Mux {
	hub := NewHub(store, members)
	h := NewHandler(hub, store, members, nil)

	r := chi.NewRouter()
	r.Use(asPrincipal(p))
	r.Get("/api/chat/conversations", h.ListConversations)
	r.Get("/api/chat/history/{userID}", h.DirectHistory)
	r.Get("/api/chat/project/{projectID}", h.ProjectHistory)
	r.Post("/api/chat/send", h.SendMessage)
	return r
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

func Test_History_Endpoint_Marks_Read_And_Sets_IsOwn(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.names[2] = "bob"
	ctx := context.Background()

	_, err := store.Append(ctx, "hey alice", 2, 1, 0)
	req.NoError(err)
	_, err = store.Append(ctx, "hey bob", 1, 2, 0)
	req.NoError(err)

	srv := newTestServer(store, fakeMembers{}, user.Principal{ID: 1, Name: "alice"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/history/2", nil))
	req.Equal(http.StatusOK, w.Code)

	var res historyResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &res))
	req.Len(res.Messages, 2)
	req.Equal("bob", res.Messages[0].SenderName)
	req.False(res.Messages[0].IsOwn)
	req.True(res.Messages[1].IsOwn)

	// Viewing acknowledged bob's message.
	summaries, err := store.ConversationSummaries(ctx, 1)
	req.NoError(err)
	req.Zero(summaries[0].UnreadCount)
}

func Test_History_Endpoint_Rejects_Self_Conversation(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(newMemStore(), fakeMembers{}, user.Principal{ID: 1, Name: "alice"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/history/1", nil))
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_Project_History_Forbidden_For_NonMembers(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	srv := newTestServer(store, allow([2]int{9, 2}), user.Principal{ID: 1, Name: "alice"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/project/9", nil))
	req.Equal(http.StatusForbidden, w.Code)
}

func Test_Project_History_Returned_For_Members(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	ctx := context.Background()
	_, err := store.Append(ctx, "kickoff notes", 2, 0, 9)
	req.NoError(err)

	srv := newTestServer(store, allow([2]int{9, 1}), user.Principal{ID: 1, Name: "alice"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/project/9", nil))
	req.Equal(http.StatusOK, w.Code)

	var res historyResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &res))
	req.Len(res.Messages, 1)
	req.Equal("kickoff notes", res.Messages[0].Content)
}

func Test_Send_Endpoint_Persists_And_Fans_Out(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	hub := NewHub(store, fakeMembers{})
	h := NewHandler(hub, store, fakeMembers{}, nil)

	r := chi.NewRouter()
	r.Use(asPrincipal(user.Principal{ID: 1, Name: "alice"}))
	r.Post("/api/chat/send", h.SendMessage)

	// Bob holds a live connection even though alice sends over plain HTTP.
	bob := testClient(2, "bob")
	hub.router.Join(bob, UserRoom(2))

	body, _ := json.Marshal(sendPayload{Content: "sent over REST", RecipientID: 2})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat/send", bytes.NewReader(body)))
	req.Equal(http.StatusCreated, w.Code)

	var res struct {
		MessageID int64 `json:"message_id"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &res))
	req.NotZero(res.MessageID)
	req.Equal(1, store.messageCount())

	delivered := eventsOf(drain(t, bob), EventNewMessage)
	req.Len(delivered, 1)
	req.Equal("sent over REST", decodeNewMessage(t, delivered[0]).Content)
}

func Test_Send_Endpoint_Rejects_Invalid_Payloads(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	srv := newTestServer(store, fakeMembers{}, user.Principal{ID: 1, Name: "alice"})

	for _, body := range []string{
		`{"content": "", "recipient_id": 2}`,
		`{"content": "hi"}`,
		`{"content": "hi", "recipient_id": 2, "project_id": 9}`,
	} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat/send", bytes.NewReader([]byte(body))))
		req.Equal(http.StatusBadRequest, w.Code, body)
	}
	req.Zero(store.messageCount())
}

func Test_Conversations_Endpoint_Returns_Inbox(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.names[2] = "bob"
	ctx := context.Background()

	_, err := store.Append(ctx, "unread one", 2, 1, 0)
	req.NoError(err)
	_, err = store.Append(ctx, "unread two", 2, 1, 0)
	req.NoError(err)

	srv := newTestServer(store, fakeMembers{}, user.Principal{ID: 1, Name: "alice"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil))
	req.Equal(http.StatusOK, w.Code)

	var res struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &res))
	req.Len(res.Conversations, 1)
	req.Equal("bob", res.Conversations[0].PartnerName)
	req.Equal(2, res.Conversations[0].UnreadCount)
	req.Equal("unread two", res.Conversations[0].LastMessage.Content)
}
