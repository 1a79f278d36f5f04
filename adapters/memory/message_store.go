// Package memory provides an in-memory MessageStore for tests, examples, and
// zero-configuration deployments. Messages do not survive a process restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/teamchat"
	"github.com/coregx/teamchat/model"
)

// MessageStore is an in-memory teamchat.MessageStore.
//
// IDs are assigned from a single monotonic counter, matching the
// auto-increment semantics of the relational adapter.
//
// Thread safety: safe for concurrent use.
type MessageStore struct {
	mu     sync.RWMutex
	nextID int64
	byTeam map[string][]model.Message
}

// NewMessageStore creates an empty in-memory store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		nextID: 1,
		byTeam: make(map[string][]model.Message),
	}
}

// Append persists a new message and returns it with the assigned ID and
// creation timestamp.
func (r *MessageStore) Append(_ context.Context, teamID, senderID, senderName, body string) (model.Message, error) {
	if err := teamchat.ValidateAppend(teamID, senderID, senderName, body); err != nil {
		return model.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := model.NewMessage(teamID, senderID, senderName, body)
	m.ID = r.nextID
	m.CreatedAt = time.Now().UTC()
	r.nextID++
	r.byTeam[teamID] = append(r.byTeam[teamID], m)
	return m, nil
}

// History returns the most recent messages of a room in ascending ID order.
func (r *MessageStore) History(_ context.Context, teamID string, limit int) ([]model.Message, error) {
	if teamID == "" {
		return nil, teamchat.NewError(teamchat.ErrCodeValidation, "team ID is required")
	}
	if limit <= 0 {
		limit = teamchat.DefaultHistoryLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.byTeam[teamID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]model.Message, len(all))
	copy(out, all)
	return out, nil
}

// Len returns the total number of stored messages across all teams.
func (r *MessageStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, msgs := range r.byTeam {
		n += len(msgs)
	}
	return n
}
