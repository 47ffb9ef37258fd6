package dto

// FlowDocument is the editor representation of a flow, as stored in files,
// databases and HTTP payloads. Node configs stay untyped until compiled.
type FlowDocument struct {
	BotID string         `json:"bot_id,omitempty" yaml:"bot_id,omitempty" mapstructure:"bot_id"`
	Name  string         `json:"name" yaml:"name" mapstructure:"name"`
	Nodes []NodeDocument `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges []EdgeDocument `json:"edges" yaml:"edges" mapstructure:"edges"`
}

// NodeDocument accepts both the graph editor shape (label and config under
// "data") and a flat shape with top-level label and config.
type NodeDocument struct {
	ID     string         `json:"id" yaml:"id" mapstructure:"id"`
	Type   string         `json:"type" yaml:"type" mapstructure:"type"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
	Data   *NodeData      `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
}

// NodeData is the payload the graph editor attaches to a node.
type NodeData struct {
	Label  string         `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// EdgeDocument is a connection between two nodes.
type EdgeDocument struct {
	ID           string `json:"id" yaml:"id" mapstructure:"id"`
	Source       string `json:"source" yaml:"source" mapstructure:"source"`
	Target       string `json:"target" yaml:"target" mapstructure:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty" mapstructure:"sourceHandle"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}

// ResolvedLabel prefers the editor payload over the flat field.
func (n NodeDocument) ResolvedLabel() string {
	if n.Data != nil && n.Data.Label != "" {
		return n.Data.Label
	}
	return n.Label
}

// ResolvedConfig merges the flat config with the editor payload, the latter winning.
func (n NodeDocument) ResolvedConfig() map[string]any {
	if n.Data == nil || len(n.Data.Config) == 0 {
		return n.Config
	}
	if len(n.Config) == 0 {
		return n.Data.Config
	}
	merged := make(map[string]any, len(n.Config)+len(n.Data.Config))
	for k, v := range n.Config {
		merged[k] = v
	}
	for k, v := range n.Data.Config {
		merged[k] = v
	}
	return merged
}
