package domain

import "time"

// Direction tells whether a logged message came from or went to the end user.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// MessageRecord is one entry of the conversation message log.
type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	BotID          string    `json:"bot_id"`
	NodeID         string    `json:"node_id,omitempty"`
	Direction      Direction `json:"direction"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationRecord is the owning record of a conversation, kept by the message log.
type ConversationRecord struct {
	ID        string             `json:"id"`
	BotID     string             `json:"bot_id"`
	Recipient string             `json:"recipient"`
	Status    ConversationStatus `json:"status"`
	UpdatedAt time.Time          `json:"updated_at"`
}
