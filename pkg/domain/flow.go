package domain

import "strings"

// NodeType identifies the behaviour of a flow node.
type NodeType string

const (
	NodeTrigger   NodeType = "trigger"
	NodeMessage   NodeType = "message"
	NodeQuestion  NodeType = "question"
	NodeCondition NodeType = "condition"
	NodeAI        NodeType = "ai"
	NodeEnd       NodeType = "end"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTrigger, NodeMessage, NodeQuestion, NodeCondition, NodeAI, NodeEnd:
		return true
	}
	return false
}

// Node is a typed unit of behaviour in a flow.
// Config always holds the variant matching Type.
type Node struct {
	ID     string     `json:"id"`
	Type   NodeType   `json:"type"`
	Label  string     `json:"label,omitempty"`
	Config NodeConfig `json:"config,omitempty"`
}

// Edge is a directed connection between two nodes.
// SourceHandle and Label carry branch keys for condition and question routing.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Flow is the immutable definition of a bot.
// It is shared between concurrent passes and must not be mutated after loading.
type Flow struct {
	BotID string `json:"bot_id"`
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (f *Flow) Node(id string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Trigger returns the entry point of the flow.
func (f *Flow) Trigger() (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTrigger {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Outgoing returns the edges leaving a node in declaration order.
func (f *Flow) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Next returns the target of the first edge leaving nodeID, or "" when there is none.
func (f *Flow) Next(nodeID string) string {
	for _, e := range f.Edges {
		if e.Source == nodeID {
			return e.Target
		}
	}
	return ""
}

// Branch returns the target of the first edge leaving nodeID whose source handle
// or label equals one of keys (case-insensitive). It returns "" when no edge matches.
func (f *Flow) Branch(nodeID string, keys ...string) string {
	for _, e := range f.Edges {
		if e.Source != nodeID {
			continue
		}
		for _, k := range keys {
			if k == "" {
				continue
			}
			if strings.EqualFold(e.SourceHandle, k) || strings.EqualFold(e.Label, k) {
				return e.Target
			}
		}
	}
	return ""
}

// Route resolves a branch by key and falls back to the generic next edge.
func (f *Flow) Route(nodeID string, keys ...string) string {
	if target := f.Branch(nodeID, keys...); target != "" {
		return target
	}
	return f.Next(nodeID)
}

// Text returns the text a node contributes to conversation history.
func (n *Node) Text() string {
	switch c := n.Config.(type) {
	case MessageConfig:
		if c.Text != "" {
			return c.Text
		}
	case QuestionConfig:
		if c.Text != "" {
			return c.Text
		}
	}
	return n.Label
}
