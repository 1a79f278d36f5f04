package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relica"

	"github.com/coregx/teamchat"
	"github.com/coregx/teamchat/model"
)

// MessageStore implements teamchat.MessageStore using Relica.
//
// Inserts are single-row and rely on the database's auto-increment column for
// ID assignment, so appends are atomic and IDs are monotonic per table.
type MessageStore struct {
	db          *relica.DB
	tablePrefix string
}

// NewMessageStore creates a new MessageStore with the default table prefix.
func NewMessageStore(sqlDB *sql.DB, driverName string) *MessageStore {
	return &MessageStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "teamchat_"}
}

// NewMessageStoreWithPrefix creates a new MessageStore with a custom table prefix.
func NewMessageStoreWithPrefix(sqlDB *sql.DB, driverName, prefix string) *MessageStore {
	return &MessageStore{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *MessageStore) tableName() string {
	return r.tablePrefix + "team_message"
}

// Append durably persists a new message and returns it with the assigned ID
// and creation timestamp. The timestamp is assigned here, never taken from
// the client.
func (r *MessageStore) Append(ctx context.Context, teamID, senderID, senderName, body string) (model.Message, error) {
	if err := teamchat.ValidateAppend(teamID, senderID, senderName, body); err != nil {
		return model.Message{}, err
	}

	m := model.NewMessage(teamID, senderID, senderName, body)
	m.CreatedAt = time.Now().UTC()

	// Insert using Model() API; m.ID is auto-populated on success.
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
	if err != nil {
		return model.Message{}, teamchat.NewErrorWithCause(teamchat.ErrCodeStorage, "failed to insert message", err)
	}
	return m, nil
}

// History returns the most recent messages of a room in ascending ID order.
// A limit <= 0 falls back to the default replay page.
func (r *MessageStore) History(ctx context.Context, teamID string, limit int) ([]model.Message, error) {
	if teamID == "" {
		return nil, teamchat.NewError(teamchat.ErrCodeValidation, "team ID is required")
	}
	if limit <= 0 {
		limit = teamchat.DefaultHistoryLimit
	}

	// Fetch the newest page in descending order, then reverse: the replay
	// contract is ascending ID order, oldest first.
	var messages []model.Message
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("team_id = ?", teamID).
		OrderBy("id DESC").
		Limit(int64(limit)).
		All(&messages)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, teamchat.NewErrorWithCause(teamchat.ErrCodeStorage, "failed to load message history", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
