// Package validator checks flows at authoring time so that broken graphs are
// rejected before a conversation can run into them.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// Issue is a single problem found in a flow.
type Issue struct {
	NodeID string
	EdgeID string
	Reason string
}

func (i *Issue) Error() string {
	switch {
	case i.EdgeID != "":
		return fmt.Sprintf("edge %q: %s", i.EdgeID, i.Reason)
	case i.NodeID != "":
		return fmt.Sprintf("node %q: %s", i.NodeID, i.Reason)
	}
	return i.Reason
}

// AggregateError lists every issue of a flow. It matches domain.ErrInvalidFlow.
type AggregateError struct {
	Issues []*Issue
}

func (e *AggregateError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e.Issues))
	for i, issue := range e.Issues {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, issue.Error())
	}
	return b.String()
}

func (e *AggregateError) Is(target error) bool {
	return target == domain.ErrInvalidFlow
}

// Issues returns the issues of err if it is an AggregateError, otherwise nil.
func Issues(err error) []*Issue {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Issues
	}
	return nil
}

// Validate checks that a flow has exactly one trigger, that every edge
// connects existing nodes, that every node is reachable from the trigger, and
// that no reachable loop lacks a way out to an end node, a question or a dead
// end. Configs must match their node type.
func Validate(flow *domain.Flow) error {
	var issues []*Issue
	add := func(nodeID, edgeID, format string, args ...any) {
		issues = append(issues, &Issue{NodeID: nodeID, EdgeID: edgeID, Reason: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]bool, len(flow.Nodes))
	var trigger string
	for _, n := range flow.Nodes {
		if seen[n.ID] {
			add(n.ID, "", "duplicate node id")
			continue
		}
		seen[n.ID] = true

		if !n.Type.Valid() {
			add(n.ID, "", "unknown node type %q", n.Type)
			continue
		}
		if n.Config == nil || n.Config.Kind() != n.Type {
			add(n.ID, "", "config does not match node type %q", n.Type)
		}
		if n.Type == domain.NodeTrigger {
			if trigger != "" {
				add(n.ID, "", "second trigger (flow already starts at %q)", trigger)
				continue
			}
			trigger = n.ID
		}
	}
	if trigger == "" {
		add("", "", "flow has no trigger node")
	}

	adjacency := make(map[string][]string)
	reverse := make(map[string][]string)
	for _, e := range flow.Edges {
		ok := true
		if !seen[e.Source] {
			add("", e.ID, "source %q does not exist", e.Source)
			ok = false
		}
		if !seen[e.Target] {
			add("", e.ID, "target %q does not exist", e.Target)
			ok = false
		}
		if ok {
			adjacency[e.Source] = append(adjacency[e.Source], e.Target)
			reverse[e.Target] = append(reverse[e.Target], e.Source)
		}
	}

	if trigger == "" {
		return aggregate(issues)
	}

	reachable := walk([]string{trigger}, adjacency)
	for _, n := range flow.Nodes {
		if !reachable[n.ID] {
			add(n.ID, "", "unreachable from trigger %q", trigger)
		}
	}

	// Exits stop a pass: end and question nodes, and nodes without outgoing edges.
	var exits []string
	for _, n := range flow.Nodes {
		if n.Type == domain.NodeEnd || n.Type == domain.NodeQuestion || len(adjacency[n.ID]) == 0 {
			exits = append(exits, n.ID)
		}
	}
	canExit := walk(exits, reverse)
	for _, n := range flow.Nodes {
		if reachable[n.ID] && !canExit[n.ID] {
			add(n.ID, "", "loops forever: no path to an end node, question or dead end")
		}
	}

	return aggregate(issues)
}

func walk(start []string, adjacency map[string][]string) map[string]bool {
	visited := make(map[string]bool)
	queue := append([]string(nil), start...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, next := range adjacency[id] {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return visited
}

func aggregate(issues []*Issue) error {
	if len(issues) == 0 {
		return nil
	}
	return &AggregateError{Issues: issues}
}
