package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Mask replaces values the PII middleware hides.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateCache
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks, at rest, session entries and history slots whose
// names match any pattern. The stack handed in is never modified.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateCache) ports.StateCache {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) matches(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) mask(stack *domain.ConversationStack) (*domain.ConversationStack, error) {
	out := stack.Clone()
	for _, f := range out.Frames() {
		for _, k := range f.Session.Keys() {
			if m.matches(k) {
				if err := f.Session.PutString(k, Mask); err != nil {
					return nil, err
				}
			}
		}
		for i := range f.History {
			for j := range f.History[i].Slots {
				if m.matches(f.History[i].Slots[j].Name) {
					f.History[i].Slots[j].Value = Mask
				}
			}
		}
	}
	return out, nil
}

func (m *piiMiddleware) TryRetrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	return m.next.TryRetrieve(ctx, userID, clientID)
}

func (m *piiMiddleware) SetClientState(ctx context.Context, userID, clientID string, stack *domain.ConversationStack) error {
	masked, err := m.mask(stack)
	if err != nil {
		return err
	}
	return m.next.SetClientState(ctx, userID, clientID, masked)
}

func (m *piiMiddleware) SetRoamingState(ctx context.Context, userID string, stack *domain.ConversationStack) error {
	masked, err := m.mask(stack)
	if err != nil {
		return err
	}
	return m.next.SetRoamingState(ctx, userID, masked)
}

func (m *piiMiddleware) ClearBothStates(ctx context.Context, userID, clientID string) error {
	return m.next.ClearBothStates(ctx, userID, clientID)
}
