package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_TableName(t *testing.T) {
	msg := Message{}
	assert.Equal(t, "teamchat_team_message", msg.TableName())
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("T1", "u1", "Alice", "hello")

	assert.Equal(t, int64(0), msg.ID)
	assert.Equal(t, "T1", msg.TeamID)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, "Alice", msg.SenderName)
	assert.Equal(t, "hello", msg.Body)
	assert.True(t, msg.CreatedAt.IsZero(), "CreatedAt is assigned by the store")
}
