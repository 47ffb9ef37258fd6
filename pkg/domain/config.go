package domain

import (
	"strconv"
	"strings"
)

// NodeConfig is the typed configuration of a node.
// The concrete type is one of TriggerConfig, MessageConfig, QuestionConfig,
// ConditionConfig, AIConfig or EndConfig and always matches Kind.
type NodeConfig interface {
	Kind() NodeType
}

// ErrorPolicy controls what a node does when delivering its message fails.
type ErrorPolicy string

const (
	OnErrorContinue ErrorPolicy = "continue"
	OnErrorEnd      ErrorPolicy = "end"
)

// Trigger types.
const (
	TriggerAnyMessage = "message"
	TriggerKeyword    = "keyword"
)

// TriggerConfig configures the entry point of a flow.
type TriggerConfig struct {
	TriggerType string `mapstructure:"trigger_type" json:"trigger_type,omitempty"`
	Keyword     string `mapstructure:"keyword" json:"keyword,omitempty"`
}

func (TriggerConfig) Kind() NodeType { return NodeTrigger }

// Matches reports whether an inbound message may start the flow.
func (c TriggerConfig) Matches(text string) bool {
	if c.TriggerType != TriggerKeyword || c.Keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(c.Keyword))
}

// MessageConfig configures a node that sends a fixed text.
type MessageConfig struct {
	Text    string      `mapstructure:"message_text" json:"message_text,omitempty"`
	OnError ErrorPolicy `mapstructure:"error_handling" json:"error_handling,omitempty"`
}

func (MessageConfig) Kind() NodeType { return NodeMessage }

// Option is one answer of a question node.
type Option struct {
	ID    string `mapstructure:"id" json:"id"`
	Label string `mapstructure:"label" json:"label,omitempty"`
	Value string `mapstructure:"value" json:"value,omitempty"`
}

// Key returns the routing key of the option.
func (o Option) Key() string {
	if o.Value != "" {
		return o.Value
	}
	return o.ID
}

// Title returns the text shown to the end user.
func (o Option) Title() string {
	if o.Label != "" {
		return o.Label
	}
	if o.Value != "" {
		return o.Value
	}
	return o.ID
}

// Options is the ordered answer set of a question.
type Options []Option

// QuickReplies reports whether the options are rendered as selectable buttons.
func (opts Options) QuickReplies() bool {
	return len(opts) >= 2 && len(opts) <= 3
}

// Match finds the option the user picked. Id, value and label are compared
// case-insensitively. When the options were rendered as a numbered list the
// 1-based position is accepted as well.
func (opts Options) Match(text string) (Option, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Option{}, false
	}
	for _, o := range opts {
		if equalNonEmpty(o.ID, t) || equalNonEmpty(o.Value, t) || equalNonEmpty(o.Label, t) {
			return o, true
		}
	}
	if !opts.QuickReplies() {
		if n, err := strconv.Atoi(t); err == nil && n >= 1 && n <= len(opts) {
			return opts[n-1], true
		}
	}
	return Option{}, false
}

// Fallback returns the option marked as default (value or id "default"),
// else the first option.
func (opts Options) Fallback() (Option, bool) {
	if len(opts) == 0 {
		return Option{}, false
	}
	for _, o := range opts {
		if o.Value == "default" || o.ID == "default" {
			return o, true
		}
	}
	return opts[0], true
}

func equalNonEmpty(candidate, text string) bool {
	return candidate != "" && strings.EqualFold(strings.TrimSpace(candidate), text)
}

// QuestionConfig configures a node that asks the user and suspends the conversation.
type QuestionConfig struct {
	Text        string      `mapstructure:"question_text" json:"question_text,omitempty"`
	Options     Options     `mapstructure:"options" json:"options,omitempty"`
	AllowCustom bool        `mapstructure:"allow_custom_response" json:"allow_custom_response,omitempty"`
	OnError     ErrorPolicy `mapstructure:"error_handling" json:"error_handling,omitempty"`
}

func (QuestionConfig) Kind() NodeType { return NodeQuestion }

// Operator is a condition comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// FieldLastMessage selects the last inbound user message as condition input.
const FieldLastMessage = "last_message"

// ConditionConfig configures a two-way branch.
type ConditionConfig struct {
	Operator Operator `mapstructure:"condition_type" json:"condition_type,omitempty"`
	Field    string   `mapstructure:"condition_field" json:"condition_field,omitempty"`
	Value    string   `mapstructure:"condition_value" json:"condition_value,omitempty"`
}

func (ConditionConfig) Kind() NodeType { return NodeCondition }

// Evaluate compares input against the configured value.
// Equality and containment ignore case; ordering comparisons parse both sides
// as numbers and are false when either side is not numeric.
func (c ConditionConfig) Evaluate(input string) bool {
	switch c.Operator {
	case "", OpEquals:
		return strings.EqualFold(strings.TrimSpace(input), strings.TrimSpace(c.Value))
	case OpContains:
		return strings.Contains(strings.ToLower(input), strings.ToLower(c.Value))
	case OpGreaterThan, OpLessThan:
		a, errA := strconv.ParseFloat(strings.TrimSpace(input), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
		if errA != nil || errB != nil {
			return false
		}
		if c.Operator == OpGreaterThan {
			return a > b
		}
		return a < b
	}
	return false
}

// Known reports whether the operator is supported.
func (op Operator) Known() bool {
	switch op {
	case "", OpEquals, OpContains, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// AI providers selectable per node.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AIConfig configures a node that answers with a language model.
type AIConfig struct {
	Prompt       string `mapstructure:"ai_prompt" json:"ai_prompt,omitempty"`
	Provider     string `mapstructure:"ai_model" json:"ai_model,omitempty"`
	UseContext   *bool  `mapstructure:"use_context" json:"use_context,omitempty"`
	UseKnowledge *bool  `mapstructure:"use_knowledge" json:"use_knowledge,omitempty"`
	ErrorMessage string `mapstructure:"error_message" json:"error_message,omitempty"`
}

func (AIConfig) Kind() NodeType { return NodeAI }

// ContextEnabled reports whether conversation history goes into the prompt. Defaults to true.
func (c AIConfig) ContextEnabled() bool { return c.UseContext == nil || *c.UseContext }

// KnowledgeEnabled reports whether retrieval runs for this node. Defaults to true.
func (c AIConfig) KnowledgeEnabled() bool { return c.UseKnowledge == nil || *c.UseKnowledge }

// EndConfig configures the terminal node.
type EndConfig struct{}

func (EndConfig) Kind() NodeType { return NodeEnd }
