package chat

import "sync"

// Router maps room keys to the set of currently subscribed clients.
// It performs no authorization; callers check membership before Join.
type Router struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewRouter() *Router {
	return &Router{rooms: make(map[string]map[*Client]struct{})}
}

// Join subscribes the client. Joining twice is a no-op.
func (rt *Router) Join(c *Client, room string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	subs, ok := rt.rooms[room]
	if !ok {
		subs = make(map[*Client]struct{})
		rt.rooms[room] = subs
	}
	subs[c] = struct{}{}
}

// Leave unsubscribes the client. Leaving a room it never joined is a no-op.
func (rt *Router) Leave(c *Client, room string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.drop(c, room)
}

// LeaveAll removes the client from every room it is subscribed to.
// Called on disconnect; unconditional, no graceful drain.
func (rt *Router) LeaveAll(c *Client) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for room := range rt.rooms {
		rt.drop(c, room)
	}
}

func (rt *Router) drop(c *Client, room string) {
	subs, ok := rt.rooms[room]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(rt.rooms, room)
	}
}

// subscribers returns a stable snapshot of a room's members, so a fan-out
// never iterates a map that connect/disconnect is mutating concurrently.
func (rt *Router) subscribers(room string, exclude *Client) []*Client {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	subs := rt.rooms[room]
	snapshot := make([]*Client, 0, len(subs))
	for c := range subs {
		if c == exclude {
			continue
		}
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// broadcast delivers one payload to every subscriber, outside the lock.
func (rt *Router) broadcast(room string, exclude *Client, payload []byte) {
	for _, c := range rt.subscribers(room, exclude) {
		c.deliver(payload)
	}
}
