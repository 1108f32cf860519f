package chat

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Append(ctx context.Context, content string, senderID, recipientID, projectID int) (*Message, error) {
	content, err := validateSend(content, recipientID, projectID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Content:     content,
		SenderID:    senderID,
		RecipientID: recipientID,
		ProjectID:   projectID,
		Type:        TypeText,
	}

	// Single statement, so the write is atomic: either the row exists with
	// its id and timestamp, or nothing was persisted.
	query := `
        INSERT INTO messages (content, sender_id, recipient_id, project_id, type)
        VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5)
        RETURNING id, created_at`
	err = r.pool.QueryRow(ctx, query, content, senderID, recipientID, projectID, msg.Type).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Repository) DirectHistory(ctx context.Context, viewer, peer int) ([]Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
        SELECT m.id, m.content, m.sender_id, u.username,
               COALESCE(m.recipient_id, 0), COALESCE(m.project_id, 0),
               m.type, m.is_read, m.created_at
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE (m.sender_id = $1 AND m.recipient_id = $2)
           OR (m.sender_id = $2 AND m.recipient_id = $1)
        ORDER BY m.created_at ASC, m.id ASC`,
		viewer, peer)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Read-on-view: opening the conversation acknowledges everything the
	// peer sent, in the same transaction as the read.
	_, err = tx.Exec(ctx, `
        UPDATE messages SET is_read = TRUE
        WHERE sender_id = $2 AND recipient_id = $1 AND is_read = FALSE`,
		viewer, peer)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].SenderID == peer {
			msgs[i].IsRead = true
		}
	}

	return msgs, tx.Commit(ctx)
}

func (r *Repository) ProjectHistory(ctx context.Context, projectID int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT m.id, m.content, m.sender_id, u.username,
               COALESCE(m.recipient_id, 0), COALESCE(m.project_id, 0),
               m.type, m.is_read, m.created_at
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        WHERE m.project_id = $1
        ORDER BY m.created_at ASC, m.id ASC`,
		projectID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *Repository) ConversationSummaries(ctx context.Context, principal int) ([]ConversationSummary, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT p.partner, u.username FROM (
            SELECT DISTINCT recipient_id AS partner FROM messages
                WHERE sender_id = $1 AND recipient_id IS NOT NULL
            UNION
            SELECT DISTINCT sender_id FROM messages
                WHERE recipient_id = $1
        ) p
        JOIN users u ON u.id = p.partner`,
		principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.PartnerID, &s.PartnerName); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		s := &summaries[i]

		last := &Message{}
		err := r.pool.QueryRow(ctx, `
            SELECT m.id, m.content, m.sender_id, u.username,
                   COALESCE(m.recipient_id, 0), COALESCE(m.project_id, 0),
                   m.type, m.is_read, m.created_at
            FROM messages m
            JOIN users u ON u.id = m.sender_id
            WHERE (m.sender_id = $1 AND m.recipient_id = $2)
               OR (m.sender_id = $2 AND m.recipient_id = $1)
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT 1`,
			principal, s.PartnerID).
			Scan(&last.ID, &last.Content, &last.SenderID, &last.SenderName,
				&last.RecipientID, &last.ProjectID, &last.Type, &last.IsRead, &last.CreatedAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			s.LastMessage = last
		}

		err = r.pool.QueryRow(ctx, `
            SELECT COUNT(*) FROM messages
            WHERE sender_id = $2 AND recipient_id = $1 AND is_read = FALSE`,
			principal, s.PartnerID).Scan(&s.UnreadCount)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessage, summaries[j].LastMessage
		if a == nil || b == nil {
			return b == nil
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return summaries, nil
}

func (r *Repository) MarkRead(ctx context.Context, messageIDs []int64, recipient int) ([]int64, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	// The recipient filter is the ownership check: nobody marks another
	// principal's messages as read, and no error reveals why an id was
	// skipped.
	rows, err := r.pool.Query(ctx, `
        UPDATE messages SET is_read = TRUE
        WHERE id = ANY($1) AND recipient_id = $2 AND is_read = FALSE
        RETURNING id`,
		messageIDs, recipient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		err := rows.Scan(&m.ID, &m.Content, &m.SenderID, &m.SenderName,
			&m.RecipientID, &m.ProjectID, &m.Type, &m.IsRead, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
