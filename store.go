package teamchat

import (
	"context"

	"github.com/coregx/teamchat/model"
)

// MessageStore defines the persistence interface for team messages.
// The store is the single authority for message IDs and creation timestamps,
// which guarantees a stable total order per room independent of client clocks.
//
// Implementations must be safe for concurrent use and must insert atomically:
// a concurrent reader never observes a partially written message.
type MessageStore interface {
	// Append durably persists a new message and returns it fully populated
	// with the assigned ID and CreatedAt.
	//
	// Returns a VALIDATION_ERROR if body or any identifier is empty, and a
	// STORAGE_ERROR if persistence is unavailable. Failures are never
	// silently swallowed.
	Append(ctx context.Context, teamID, senderID, senderName, body string) (model.Message, error)

	// History returns messages for a room in ascending ID order, oldest
	// first. A limit <= 0 selects the implementation's default page of the
	// most recent messages; a positive limit caps the page at that many of
	// the most recent messages, still returned in ascending order.
	//
	// Returns an empty slice (not an error) for a room with no messages.
	History(ctx context.Context, teamID string, limit int) ([]model.Message, error)
}

// ValidateAppend checks the append arguments shared by all MessageStore
// implementations. Returns a VALIDATION_ERROR naming the first missing field.
func ValidateAppend(teamID, senderID, senderName, body string) error {
	switch {
	case teamID == "":
		return NewError(ErrCodeValidation, "team ID is required")
	case senderID == "":
		return NewError(ErrCodeValidation, "sender ID is required")
	case senderName == "":
		return NewError(ErrCodeValidation, "sender name is required")
	case body == "":
		return NewError(ErrCodeValidation, "message body is required")
	}
	return nil
}
