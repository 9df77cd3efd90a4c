package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
)

func bookingGraph() *domain.ConversationGraph {
	return domain.NewConversationGraph().
		AddStart(domain.Edge{Domain: "booking", Intent: "book", Target: "ask-time", Continuation: "start"}).
		AddNode(domain.Node{
			ID:           "ask-time",
			RetryHandler: "reprompt",
			Edges: []domain.Edge{
				{Domain: "booking", Intent: "set_time", Continuation: "confirm"},
				{
					Domain: "booking", Intent: "weather", Continuation: "handoff",
					Scope: domain.ScopeExternal, ExternalDomain: "weather", ExternalIntent: "forecast",
				},
			},
		})
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Entry Edges",
			contains: []string{
				`__start(("start"))`,
				`__start -->|"booking/book / start"| ask_time`,
			},
		},
		{
			name: "Retry Node Shape",
			contains: []string{
				`ask_time[/"ask-time <br/> retry: reprompt"/]`,
			},
		},
		{
			name: "Exit And Hand-off",
			contains: []string{
				`ask_time -->|"booking/set_time / confirm"| __end`,
				`__end(("end"))`,
				`ext_weather_forecast(["weather/forecast"])`,
				`ask_time -.->|"booking/weather / handoff"| ext_weather_forecast`,
			},
		},
		{
			name:     "No Overlay",
			excludes: []string{"classDef"},
		},
		{
			name:    "Overlay",
			overlay: &graph.Overlay{VisitedNodes: []string{"ask-time", "ask-time", "gone"}, CurrentNode: "ask-time"},
			contains: []string{
				"class ask_time visited;",
				"class ask_time current;",
			},
			excludes: []string{"class gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(bookingGraph(), tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, bad)
				}
			}
			if n := strings.Count(got, "class ask_time visited;"); n > 1 {
				t.Errorf("visited class applied %d times", n)
			}
		})
	}
}
