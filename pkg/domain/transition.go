package domain

import "fmt"

// EdgeScope marks whether an edge stays inside the handler's own domain.
type EdgeScope int

const (
	// ScopeLocal keeps the conversation inside the current handler.
	ScopeLocal EdgeScope = iota
	// ScopeExternal hands the conversation to another domain.
	ScopeExternal
	// ScopeCommonExternal hands off on a common-domain intent.
	ScopeCommonExternal
)

var edgeScopeNames = map[EdgeScope]string{
	ScopeLocal:          "local",
	ScopeExternal:       "external",
	ScopeCommonExternal: "common_external",
}

func (s EdgeScope) String() string {
	if n, ok := edgeScopeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("EdgeScope(%d)", int(s))
}

// MarshalText encodes the scope by name.
func (s EdgeScope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scope name. Empty means local.
func (s *EdgeScope) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = ScopeLocal
		return nil
	}
	for k, v := range edgeScopeNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown edge scope %q", string(b))
}

// IsExternal reports an external or common-external scope.
func (s EdgeScope) IsExternal() bool {
	return s == ScopeExternal || s == ScopeCommonExternal
}

// Edge is a transition out of a conversation node on a (domain, intent) pair.
type Edge struct {
	Domain string `json:"domain" yaml:"domain"`
	Intent string `json:"intent" yaml:"intent"`

	// Target is the node the conversation moves to.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Continuation names the handler entry point invoked on this edge.
	Continuation string `json:"continuation,omitempty" yaml:"continuation,omitempty"`

	Scope EdgeScope `json:"scope,omitempty" yaml:"scope,omitempty"`

	// ExternalDomain and ExternalIntent name the hand-off target when Scope
	// is external.
	ExternalDomain string `json:"external_domain,omitempty" yaml:"external_domain,omitempty" mapstructure:"external_domain"`
	ExternalIntent string `json:"external_intent,omitempty" yaml:"external_intent,omitempty" mapstructure:"external_intent"`
}

// Matches reports whether the edge fires on domain/intent.
func (e Edge) Matches(domain, intent string) bool {
	return e.Domain == domain && e.Intent == intent
}
