package validator

import (
	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
)

// Report is the outcome of checking a flow document.
type Report struct {
	Valid   bool         `json:"valid"`
	Issues  []string     `json:"issues,omitempty"`
	Mermaid string       `json:"mermaid,omitempty"`
	Flow    *domain.Flow `json:"-"`
}

// CheckDocument compiles and validates a JSON or YAML flow document.
// Valid flows come with a Mermaid rendering of the graph.
func CheckDocument(data []byte) Report {
	flow, err := compiler.Parse(data)
	if err != nil {
		return Report{Issues: []string{err.Error()}}
	}
	if err := Validate(flow); err != nil {
		report := Report{Flow: flow}
		for _, issue := range Issues(err) {
			report.Issues = append(report.Issues, issue.Error())
		}
		if len(report.Issues) == 0 {
			report.Issues = []string{err.Error()}
		}
		return report
	}
	return Report{Valid: true, Mermaid: graph.GenerateMermaid(flow, nil), Flow: flow}
}
