// Package wire defines the message framing exchanged between the messaging
// server and its clients over the WebSocket transport.
package wire

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/coregx/teamchat/model"
)

// MessageType identifies a wire message.
type MessageType string

// Wire message types. Join and publish travel client to server; history,
// message, and error travel server to client.
const (
	MessageTypeJoin    MessageType = "join"
	MessageTypePublish MessageType = "publish"
	MessageTypeHistory MessageType = "history"
	MessageTypeMessage MessageType = "message"
	MessageTypeError   MessageType = "error"
)

// Message is the envelope for all wire traffic in both directions.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload asks the server to join the session to a team room.
// A session belongs to at most one room; joining a new room leaves the old one.
type JoinPayload struct {
	RoomID string `json:"roomId"`
}

// Validate checks the join payload.
func (p JoinPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoomID, validation.Required, validation.Length(1, 255)),
	)
}

// PublishPayload asks the server to persist and broadcast a message to the
// session's current room. Sender identity comes from the authentication layer
// in front of this core, not from anything the core invents.
type PublishPayload struct {
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Body       string `json:"body"`
}

// Validate checks the publish payload.
func (p PublishPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoomID, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.SenderID, validation.Required),
		validation.Field(&p.SenderName, validation.Required),
		validation.Field(&p.Body, validation.Required),
	)
}

// HistoryPayload carries the room history snapshot sent to a joining session
// only, in ascending message ID order.
type HistoryPayload struct {
	RoomID   string          `json:"roomId"`
	Messages []model.Message `json:"messages"`
}

// ErrorPayload reports a per-request failure to the originating session.
// Kind is one of the teamchat error codes.
type ErrorPayload struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Encode marshals a payload into a wire envelope of the given type.
func Encode(t MessageType, payload interface{}) (Message, error) {
	buf, err := jsoniter.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: buf}, nil
}

// Decode unmarshals a raw frame into a wire envelope.
func Decode(data []byte) (Message, error) {
	var msg Message
	err := jsoniter.Unmarshal(data, &msg)
	return msg, err
}

// DecodePayload unmarshals an envelope payload into the given struct.
func DecodePayload(msg Message, into interface{}) error {
	return jsoniter.Unmarshal(msg.Payload, into)
}
