// Package model contains the domain models for the team messaging core.
package model

import "time"

const tablePrefix = "teamchat_"

// Message represents one chat message in a team room.
// Messages are immutable once persisted: the store assigns ID and CreatedAt
// on insert, and message order within a room is defined by ID, not wall clock.
type Message struct {
	ID         int64     `json:"id"`         // Store-assigned, monotonic per room
	TeamID     string    `json:"teamID"`     // Room this message belongs to
	SenderID   string    `json:"senderID"`   // Authenticated sender identifier
	SenderName string    `json:"senderName"` // Sender display name
	Body       string    `json:"body"`       // Message text (non-empty)
	CreatedAt  time.Time `json:"createdAt"`  // Store-assigned insert timestamp
}

// TableName returns the database table name for Message.
func (m Message) TableName() string {
	return tablePrefix + "team_message"
}

// NewMessage creates a message ready for persistence.
// ID and CreatedAt are left for the store to assign.
//
// Parameters:
//   - teamID: the room the message is published to
//   - senderID: authenticated sender identifier (supplied by the auth layer)
//   - senderName: sender display name
//   - body: message text
func NewMessage(teamID, senderID, senderName, body string) Message {
	return Message{
		ID:         0,
		TeamID:     teamID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
	}
}
