package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"researchhub-chat/internal/user"
)

// MembershipChecker is the project-membership collaborator consulted
// before a client may join a project room.
type MembershipChecker interface {
	IsMember(ctx context.Context, projectID, userID int) (bool, error)
}

type eventHandler func(h *Hub, ctx context.Context, c *Client, data json.RawMessage)

// Hub tracks live connections, routes events, and fans persisted
// messages out to rooms. One Hub per process; constructed at startup
// and passed to everything that needs it.
type Hub struct {
	store   Store
	members MembershipChecker
	router  *Router

	mu      sync.Mutex
	clients map[*Client]struct{}

	handlers map[string]eventHandler
}

func NewHub(store Store, members MembershipChecker) *Hub {
	h := &Hub{
		store:   store,
		members: members,
		router:  NewRouter(),
		clients: make(map[*Client]struct{}),
	}
	h.handlers = map[string]eventHandler{
		EventJoinChat:    (*Hub).handleJoin,
		EventLeaveChat:   (*Hub).handleLeave,
		EventSendMessage: (*Hub).handleSend,
		EventTyping:      (*Hub).handleTyping,
		EventMarkRead:    (*Hub).handleMarkRead,
	}
	return h
}

// Register adds a connection to the presence set and confirms identity
// back to it. Room subscriptions are separate, explicit join_chat events.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("user %d connected (%d online)", c.principal.ID, total)
	c.deliver(marshalEvent(EventConnected, connectedPayload{UserID: c.principal.ID}))
}

// Unregister drops the connection from every room and from presence.
// Idempotent; no departure broadcast is sent to peers.
func (h *Hub) Unregister(c *Client) {
	h.router.LeaveAll(c)

	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.closeSend()
		log.Printf("user %d disconnected (%d online)", c.principal.ID, total)
	}
}

// Handle dispatches one inbound frame. Frames from a connection without
// a verified identity are dropped silently, not erred.
func (h *Hub) Handle(ctx context.Context, c *Client, raw []byte) {
	if c.principal.ID == 0 {
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError("malformed event")
		return
	}

	handler, ok := h.handlers[env.Event]
	if !ok {
		// Unknown events are ignored, matching the silent-drop policy.
		return
	}
	handler(h, ctx, c, env.Data)
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, data json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed event")
		return
	}

	room, ok := h.authorizeRoom(ctx, c, p.Type, p.ID)
	if !ok {
		return
	}

	h.router.Join(c, room)
	h.router.broadcast(room, nil, marshalEvent(EventJoined, joinedPayload{Room: room}))
}

func (h *Hub) handleLeave(ctx context.Context, c *Client, data json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if room, ok := roomKey(p.Type, p.ID); ok {
		h.router.Leave(c, room)
	}
}

func (h *Hub) handleSend(ctx context.Context, c *Client, data json.RawMessage) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed event")
		return
	}

	if _, err := h.Send(ctx, c.principal, p.Content, p.RecipientID, p.ProjectID); err != nil {
		if errors.Is(err, ErrValidation) {
			c.sendError(err.Error())
		} else {
			log.Printf("send from user %d failed: %v", c.principal.ID, err)
			c.sendError("failed to send message")
		}
	}
}

// Send persists the message and fans it out. Persistence commits before
// any fan-out; on failure nothing is delivered. Shared by the live
// channel and the request-driven send endpoint.
func (h *Hub) Send(ctx context.Context, from user.Principal, content string, recipientID, projectID int) (*Message, error) {
	msg, err := h.store.Append(ctx, content, from.ID, recipientID, projectID)
	if err != nil {
		return nil, err
	}
	msg.SenderName = from.Name

	if msg.RecipientID != 0 {
		// Direct: the recipient's room and the sender's own room both get
		// the persisted record, so the sender renders the authoritative
		// copy rather than a local echo.
		h.fanOut(UserRoom(msg.RecipientID), msg)
		h.fanOut(UserRoom(msg.SenderID), msg)
	} else {
		// Group: one room, sender included as an ordinary subscriber.
		h.fanOut(ProjectRoom(msg.ProjectID), msg)
	}
	return msg, nil
}

// fanOut delivers new_message to every subscriber of the room. The
// message fields are identical across deliveries; only is_own differs,
// computed against each receiving connection's principal.
func (h *Hub) fanOut(room string, msg *Message) {
	for _, sub := range h.router.subscribers(room, nil) {
		sub.deliver(marshalEvent(EventNewMessage, newMessagePayload{
			ID:         msg.ID,
			Content:    msg.Content,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			CreatedAt:  msg.CreatedAt,
			IsOwn:      sub.principal.ID == msg.SenderID,
		}))
	}
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, data json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, ok := roomKey(p.Type, p.ID)
	if !ok {
		return
	}

	// Ephemeral: nothing persisted, initiator excluded.
	h.router.broadcast(room, c, marshalEvent(EventUserTyping, userTypingPayload{
		UserID:   c.principal.ID,
		UserName: c.principal.Name,
		IsTyping: p.IsTyping,
	}))
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, data json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed event")
		return
	}

	updated, err := h.store.MarkRead(ctx, p.MessageIDs, c.principal.ID)
	if err != nil {
		log.Printf("mark read for user %d failed: %v", c.principal.ID, err)
		c.sendError("failed to mark messages read")
		return
	}
	c.deliver(marshalEvent(EventMarkedRead, markedReadPayload{MessageIDs: updated}))
}

// authorizeRoom resolves and authorizes a room join: clients may join
// their own user room, and project rooms they are members of. Denials
// carry no detail about whether the resource exists.
func (h *Hub) authorizeRoom(ctx context.Context, c *Client, kind string, id int) (string, bool) {
	room, ok := roomKey(kind, id)
	if !ok {
		c.sendError("unknown room type")
		return "", false
	}

	switch kind {
	case "user":
		if id != c.principal.ID {
			c.sendError("access denied")
			return "", false
		}
	case "project":
		isMember, err := h.members.IsMember(ctx, id, c.principal.ID)
		if err != nil {
			log.Printf("membership lookup for user %d failed: %v", c.principal.ID, err)
			c.sendError("access denied")
			return "", false
		}
		if !isMember {
			c.sendError("access denied")
			return "", false
		}
	}
	return room, true
}
