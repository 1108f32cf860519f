package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used to exercise the hub and handlers
// without Postgres. It honors the same contract as Repository: assigned
// ids and timestamps are monotonic, histories are ascending by
// created_at, MarkRead is ownership-scoped, and DirectHistory marks the
// peer's unread messages as read.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	lastAt    time.Time
	msgs      []Message
	names     map[int]string
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{names: make(map[int]string)}
}

func (s *memStore) Append(_ context.Context, content string, senderID, recipientID, projectID int) (*Message, error) {
	content, err := validateSend(content, recipientID, projectID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return nil, s.appendErr
	}

	now := time.Now()
	if !now.After(s.lastAt) {
		now = s.lastAt.Add(time.Microsecond)
	}
	s.lastAt = now
	s.nextID++

	m := Message{
		ID:          s.nextID,
		Content:     content,
		SenderID:    senderID,
		SenderName:  s.names[senderID],
		RecipientID: recipientID,
		ProjectID:   projectID,
		Type:        TypeText,
		CreatedAt:   now,
	}
	s.msgs = append(s.msgs, m)

	out := m
	return &out, nil
}

func (s *memStore) DirectHistory(_ context.Context, viewer, peer int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []Message
	for i := range s.msgs {
		m := &s.msgs[i]
		if (m.SenderID == viewer && m.RecipientID == peer) ||
			(m.SenderID == peer && m.RecipientID == viewer) {
			if m.SenderID == peer && !m.IsRead {
				m.IsRead = true
			}
			history = append(history, *m)
		}
	}
	return history, nil
}

func (s *memStore) ProjectHistory(_ context.Context, projectID int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []Message
	for _, m := range s.msgs {
		if m.ProjectID == projectID {
			history = append(history, m)
		}
	}
	return history, nil
}

func (s *memStore) ConversationSummaries(_ context.Context, principal int) ([]ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partners := make(map[int]*ConversationSummary)
	for i := range s.msgs {
		m := s.msgs[i]
		var partner int
		switch {
		case m.SenderID == principal && m.RecipientID != 0:
			partner = m.RecipientID
		case m.RecipientID == principal:
			partner = m.SenderID
		default:
			continue
		}

		sum, ok := partners[partner]
		if !ok {
			sum = &ConversationSummary{PartnerID: partner, PartnerName: s.names[partner]}
			partners[partner] = sum
		}
		last := m
		sum.LastMessage = &last
		if m.SenderID == partner && !m.IsRead {
			sum.UnreadCount++
		}
	}

	summaries := make([]ConversationSummary, 0, len(partners))
	for _, sum := range partners {
		summaries = append(summaries, *sum)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries, nil
}

func (s *memStore) MarkRead(_ context.Context, messageIDs []int64, recipient int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}

	var updated []int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if wanted[m.ID] && m.RecipientID == recipient && !m.IsRead {
			m.IsRead = true
			updated = append(updated, m.ID)
		}
	}
	return updated, nil
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
