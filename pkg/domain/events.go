package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeLeave   EventType = "node_leave"
	EventServiceCall EventType = "service_call"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	BotID    string        `json:"bot_id"`
	NodeID   string        `json:"node_id"`
	NodeType NodeType      `json:"node_type"`
	Duration time.Duration `json:"duration,omitempty"`
	Suspend  bool          `json:"suspend,omitempty"`
}

// Service names reported in ServiceEvent.
const (
	ServiceMessenger = "messenger"
	ServiceLLM       = "llm"
	ServiceRetriever = "retriever"
)

// ServiceEvent reports a call to an external collaborator made by a node.
type ServiceEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Service  string        `json:"service"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for runtime observability.
type LifecycleHooks struct {
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnNodeLeave   func(context.Context, *NodeEvent)
	OnServiceCall func(context.Context, *ServiceEvent)
}
