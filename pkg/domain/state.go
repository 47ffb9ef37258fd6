package domain

import (
	"fmt"
	"maps"
	"time"
)

// ConversationStatus is the durable lifecycle position of a conversation.
type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"    // Running or between passes without a pending question
	StatusSuspended ConversationStatus = "suspended" // Waiting for the answer to a question node
	StatusCompleted ConversationStatus = "completed" // An end node was reached
)

// Variable keys written by the runtime.
const (
	VarLastQuestionResponse = "lastQuestionResponse"
	VarLastQuestionMatch    = "lastQuestionMatch"
)

// Suspension records the question a conversation is waiting on.
type Suspension struct {
	NodeID  string    `json:"node_id"`
	Options Options   `json:"options,omitempty"`
	Since   time.Time `json:"since"`
}

// HistoryEntry is one step of the execution trace.
type HistoryEntry struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the durable snapshot of one conversation.
// An empty CurrentNodeID means the flow has not started or has finished.
type ConversationState struct {
	ConversationID  string             `json:"conversation_id"`
	BotID           string             `json:"bot_id"`
	Recipient       string             `json:"recipient"`
	CurrentNodeID   string             `json:"current_node_id,omitempty"`
	Status          ConversationStatus `json:"status"`
	Suspension      *Suspension        `json:"suspension,omitempty"`
	Variables       map[string]any     `json:"variables"`
	Context         map[string]any     `json:"context"`
	History         []HistoryEntry     `json:"history"`
	LastUserMessage string             `json:"last_user_message,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewConversationState creates a state that has not entered the flow yet.
func NewConversationState(conversationID, botID, recipient string, now time.Time) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		BotID:          botID,
		Recipient:      recipient,
		Status:         StatusActive,
		Variables:      make(map[string]any),
		Context:        make(map[string]any),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Suspended reports whether the conversation waits on a question.
func (s *ConversationState) Suspended() bool {
	return s.Suspension != nil
}

// SetVariable stores a value in the scratch space, allocating it on demand.
func (s *ConversationState) SetVariable(key string, value any) {
	if s.Variables == nil {
		s.Variables = make(map[string]any)
	}
	s.Variables[key] = value
}

// Field resolves a condition input: the last user message or a named variable.
func (s *ConversationState) Field(name string) string {
	if name == "" || name == FieldLastMessage {
		return s.LastUserMessage
	}
	v, ok := s.Variables[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// RecentHistory returns at most n of the latest history entries, oldest first.
func (s *ConversationState) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Clone returns a copy that shares no mutable maps or slices with s.
// Nested values inside the maps are copied shallowly.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Variables = maps.Clone(s.Variables)
	c.Context = maps.Clone(s.Context)
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}
	if c.Context == nil {
		c.Context = make(map[string]any)
	}
	c.History = append([]HistoryEntry(nil), s.History...)
	if s.Suspension != nil {
		sus := *s.Suspension
		sus.Options = append(Options(nil), s.Suspension.Options...)
		c.Suspension = &sus
	}
	return &c
}
