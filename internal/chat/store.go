package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks rejects that are the sender's fault: empty
	// content, or a message with no (or two) addressing targets.
	ErrValidation = errors.New("validation")
)

// Store is the durable message store. Append assigns id and created_at;
// the created_at order is the total order later history reads observe.
type Store interface {
	Append(ctx context.Context, content string, senderID, recipientID, projectID int) (*Message, error)

	// DirectHistory returns both directions of the (viewer, peer) pair in
	// ascending created_at order and, atomically with the read, marks every
	// unread message from peer to viewer as read. Viewing is acknowledging.
	DirectHistory(ctx context.Context, viewer, peer int) ([]Message, error)

	// ProjectHistory returns a project's messages in ascending created_at
	// order. No read-marking: group messages have no single recipient.
	ProjectHistory(ctx context.Context, projectID int) ([]Message, error)

	// ConversationSummaries builds the inbox: every direct-message partner
	// of principal, most recent activity first.
	ConversationSummaries(ctx context.Context, principal int) ([]ConversationSummary, error)

	// MarkRead flips is_read false->true for the given ids, but only where
	// recipient owns the message and it is still unread. Ids failing that
	// filter are skipped, not errors. Returns the ids actually updated.
	MarkRead(ctx context.Context, messageIDs []int64, recipient int) ([]int64, error)
}

// validateSend enforces the addressing invariant shared by every Store
// implementation: non-empty content, exactly one target.
func validateSend(content string, recipientID, projectID int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content required", ErrValidation)
	}
	if recipientID == 0 && projectID == 0 {
		return "", fmt.Errorf("%w: recipient or project required", ErrValidation)
	}
	if recipientID != 0 && projectID != 0 {
		return "", fmt.Errorf("%w: message cannot target both a recipient and a project", ErrValidation)
	}
	return content, nil
}
