package dsl

import "github.com/aretw0/parley/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Opt creates a question option whose routing key is id.
func Opt(id, label string) domain.Option {
	return domain.Option{ID: id, Label: label}
}

func (n *NodeBuilder) set(cfg domain.NodeConfig) *NodeBuilder {
	n.node.Type = cfg.Kind()
	n.node.Config = cfg
	return n
}

// Label sets the editor label, also used as fallback text.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Label = label
	return n
}

// Trigger marks the node as the entry point for any message.
func (n *NodeBuilder) Trigger() *NodeBuilder {
	return n.set(domain.TriggerConfig{TriggerType: domain.TriggerAnyMessage})
}

// Keyword marks the node as an entry point that only starts on messages containing keyword.
func (n *NodeBuilder) Keyword(keyword string) *NodeBuilder {
	return n.set(domain.TriggerConfig{TriggerType: domain.TriggerKeyword, Keyword: keyword})
}

// Message makes the node send text.
func (n *NodeBuilder) Message(text string) *NodeBuilder {
	return n.set(domain.MessageConfig{Text: text})
}

// Question makes the node ask text and wait for the answer.
func (n *NodeBuilder) Question(text string, options ...domain.Option) *NodeBuilder {
	return n.set(domain.QuestionConfig{Text: text, Options: options})
}

// AllowCustom lets a question keep answers that match no option.
func (n *NodeBuilder) AllowCustom() *NodeBuilder {
	if cfg, ok := n.node.Config.(domain.QuestionConfig); ok {
		cfg.AllowCustom = true
		n.node.Config = cfg
	}
	return n
}

// EndOnError makes a message or question node end the conversation when delivery fails.
func (n *NodeBuilder) EndOnError() *NodeBuilder {
	switch cfg := n.node.Config.(type) {
	case domain.MessageConfig:
		cfg.OnError = domain.OnErrorEnd
		n.node.Config = cfg
	case domain.QuestionConfig:
		cfg.OnError = domain.OnErrorEnd
		n.node.Config = cfg
	}
	return n
}

// Condition makes the node branch on field (a variable or "last_message").
// Connect the outcomes with Branch("true", ...) and Branch("false", ...).
func (n *NodeBuilder) Condition(op domain.Operator, field, value string) *NodeBuilder {
	return n.set(domain.ConditionConfig{Operator: op, Field: field, Value: value})
}

// AI makes the node answer with a language model.
func (n *NodeBuilder) AI(cfg domain.AIConfig) *NodeBuilder {
	return n.set(cfg)
}

// End marks the node as terminal.
func (n *NodeBuilder) End() *NodeBuilder {
	return n.set(domain.EndConfig{})
}

// Go adds an unconditional edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.connect(n.node.ID, target, "")
	return n
}

// Branch adds an edge taken when key (an option id/value or "true"/"false") matches.
func (n *NodeBuilder) Branch(key, target string) *NodeBuilder {
	n.builder.connect(n.node.ID, target, key)
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
