// Package compiler turns flow documents into typed domain flows.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/parley/internal/dto"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML flow document and compiles it.
func Parse(data []byte) (*domain.Flow, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Decode reads a JSON or YAML flow document without compiling it.
func Decode(data []byte) (dto.FlowDocument, error) {
	var doc dto.FlowDocument
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, fmt.Errorf("empty flow document")
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return doc, fmt.Errorf("failed to parse flow json: %w", err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse flow yaml: %w", err)
	}
	return doc, nil
}

// Compile converts a document into a flow with typed node configs.
func Compile(doc dto.FlowDocument) (*domain.Flow, error) {
	flow := &domain.Flow{
		BotID: doc.BotID,
		Name:  doc.Name,
		Nodes: make([]domain.Node, 0, len(doc.Nodes)),
		Edges: make([]domain.Edge, 0, len(doc.Edges)),
	}

	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node missing ID")
		}
		typ := domain.NodeType(n.Type)
		cfg, err := DecodeConfig(typ, n.ResolvedConfig())
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		flow.Nodes = append(flow.Nodes, domain.Node{
			ID:     n.ID,
			Type:   typ,
			Label:  n.ResolvedLabel(),
			Config: cfg,
		})
	}

	for i, e := range doc.Edges {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("e%d-%s-%s", i, e.Source, e.Target)
		}
		flow.Edges = append(flow.Edges, domain.Edge{
			ID:           id,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			Label:        e.Label,
		})
	}
	return flow, nil
}

// DecodeConfig maps a raw config onto the variant of the node type.
// Scalars are coerced leniently ("true" -> true, 18 -> "18") because editors
// are not consistent about types.
func DecodeConfig(typ domain.NodeType, raw map[string]any) (domain.NodeConfig, error) {
	switch typ {
	case domain.NodeTrigger:
		var c domain.TriggerConfig
		err := decode(raw, &c)
		return c, err
	case domain.NodeMessage:
		var c domain.MessageConfig
		err := decode(raw, &c)
		return c, err
	case domain.NodeQuestion:
		var c domain.QuestionConfig
		err := decode(raw, &c)
		return c, err
	case domain.NodeCondition:
		var c domain.ConditionConfig
		if err := decode(raw, &c); err != nil {
			return nil, err
		}
		if !c.Operator.Known() {
			return nil, fmt.Errorf("%w: unknown condition_type %q", domain.ErrInvalidConfig, c.Operator)
		}
		return c, nil
	case domain.NodeAI:
		var c domain.AIConfig
		err := decode(raw, &c)
		return c, err
	case domain.NodeEnd:
		return domain.EndConfig{}, nil
	}
	return nil, fmt.Errorf("%w: unknown node type %q", domain.ErrInvalidConfig, typ)
}

func decode(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}

// Document converts a flow back into its document form.
func Document(flow *domain.Flow) (dto.FlowDocument, error) {
	doc := dto.FlowDocument{
		BotID: flow.BotID,
		Name:  flow.Name,
		Nodes: make([]dto.NodeDocument, 0, len(flow.Nodes)),
		Edges: make([]dto.EdgeDocument, 0, len(flow.Edges)),
	}
	for _, n := range flow.Nodes {
		var cfg map[string]any
		if n.Config != nil {
			data, err := json.Marshal(n.Config)
			if err != nil {
				return doc, fmt.Errorf("node %q: %w", n.ID, err)
			}
			if err := json.Unmarshal(data, &cfg); err != nil {
				return doc, fmt.Errorf("node %q: %w", n.ID, err)
			}
		}
		doc.Nodes = append(doc.Nodes, dto.NodeDocument{
			ID:     n.ID,
			Type:   string(n.Type),
			Label:  n.Label,
			Config: cfg,
		})
	}
	for _, e := range flow.Edges {
		doc.Edges = append(doc.Edges, dto.EdgeDocument(e))
	}
	return doc, nil
}

// Marshal encodes a flow as an indented JSON document.
func Marshal(flow *domain.Flow) ([]byte, error) {
	doc, err := Document(flow)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}
