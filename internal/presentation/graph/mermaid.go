package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// Overlay contains conversation data to visualize on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState marks the nodes a conversation went through and where it stopped.
func OverlayFromState(state *domain.ConversationState) *Overlay {
	if state == nil {
		return nil
	}
	o := &Overlay{CurrentNode: state.CurrentNodeID}
	for _, h := range state.History {
		o.VisitedNodes = append(o.VisitedNodes, h.NodeID)
	}
	if state.Suspension != nil {
		o.CurrentNode = state.Suspension.NodeID
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of a flow.
// Node shapes follow the node type:
// - Trigger: ((Circle))
// - Question: [/Parallelogram/]
// - Condition: {Rhombus}
// - AI: [[Subroutine]]
// - End: ([Stadium])
// - Message: [Rectangle]
// Branch keys (handle or label) are drawn on their edges.
func GenerateMermaid(flow *domain.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range flow.Nodes {
		opener, closer := "[", "]"
		switch node.Type {
		case domain.NodeTrigger:
			opener, closer = "((", "))"
		case domain.NodeQuestion:
			opener, closer = "[/", "/]"
		case domain.NodeCondition:
			opener, closer = "{", "}"
		case domain.NodeAI:
			opener, closer = "[[", "]]"
		case domain.NodeEnd:
			opener, closer = "([", "])"
		}

		text := node.ID
		if node.Label != "" && node.Label != node.ID {
			text = node.Label + " <br/> " + node.ID
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, quote(text), closer)
	}

	for _, e := range flow.Edges {
		arrow := "-->"
		key := e.SourceHandle
		if key == "" {
			key = e.Label
		}
		if key != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", quote(key))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
