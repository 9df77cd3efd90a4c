package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// Reserved Mermaid IDs for the synthetic entry and exit nodes.
const (
	entryID = "__start"
	exitID  = "__end"
)

// Overlay marks conversation progress on the rendered graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid renders a conversation graph as a Mermaid flowchart.
// Shapes:
// - entry and exit: ((Circle))
// - node with a retry handler: [/Parallelogram/]
// - external hand-off target: ([Stadium])
// - other nodes: [Rectangle]
// Edges are labelled "intent / continuation". External edges are dotted.
func GenerateMermaid(g *domain.ConversationGraph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"start\"))\n", entryID)

	exits := false
	handoffs := map[string]bool{}
	edge := func(from string, e domain.Edge) {
		to := exitID
		arrow := "-->"
		switch {
		case e.Scope.IsExternal():
			target := domain.DomainIntent(e.ExternalDomain, e.ExternalIntent)
			to = sanitizeMermaidID("ext_" + target)
			if !handoffs[to] {
				handoffs[to] = true
				fmt.Fprintf(&sb, "    %s([\"%s\"])\n", to, target)
			}
			arrow = "-.->"
		case e.Target != "":
			to = sanitizeMermaidID(e.Target)
		default:
			exits = true
		}
		fmt.Fprintf(&sb, "    %s %s|\"%s\"| %s\n", from, arrow, edgeLabel(e), to)
	}

	for _, e := range g.Starts() {
		edge(entryID, e)
	}
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		safeID := sanitizeMermaidID(id)
		if n.RetryHandler != "" {
			fmt.Fprintf(&sb, "    %s[/\"%s <br/> retry: %s\"/]\n", safeID, id, n.RetryHandler)
		} else {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", safeID, id)
		}
		for _, e := range n.Edges {
			edge(safeID, e)
		}
	}
	if exits {
		fmt.Fprintf(&sb, "    %s((\"end\"))\n", exitID)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			if _, ok := g.Node(id); !ok {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] {
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

func edgeLabel(e domain.Edge) string {
	label := e.Intent
	if e.Domain != "" {
		label = domain.DomainIntent(e.Domain, e.Intent)
	}
	if e.Continuation != "" {
		label += " / " + e.Continuation
	}
	return strings.ReplaceAll(label, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "@", "_", " ", "_")
	return r.Replace(id)
}
