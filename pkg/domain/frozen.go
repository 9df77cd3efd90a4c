package domain

import "fmt"

const frozenTurnKey = "_frozen_turn"

// FrozenTurn is everything needed to replay an ambiguous turn once the
// disambiguation handler picks a winner.
type FrozenTurn struct {
	Hypotheses    []*RankedHypothesis   `json:"hypotheses"`
	Client        ClientContext         `json:"client"`
	InputMethod   InputMethod           `json:"input_method"`
	Text          string                `json:"text,omitempty"`
	EntityContext map[string]string     `json:"entity_context,omitempty"`
	RequestData   map[string]string     `json:"request_data,omitempty"`
	SideEffects   map[string]*DataStore `json:"side_effects,omitempty"`
	Triggers      []TriggerOutcome      `json:"triggers,omitempty"`
}

// Freeze writes the turn into store.
func (f *FrozenTurn) Freeze(store *DataStore) error {
	if err := store.PutObject(frozenTurnKey, f); err != nil {
		return fmt.Errorf("freeze turn: %w", err)
	}
	return nil
}

// ThawTurn reads a turn previously written by Freeze.
func ThawTurn(store *DataStore) (*FrozenTurn, error) {
	if store == nil {
		return nil, fmt.Errorf("thaw turn: no session store")
	}
	var f FrozenTurn
	ok, err := store.GetObject(frozenTurnKey, &f)
	if err != nil {
		return nil, fmt.Errorf("thaw turn: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("thaw turn: no frozen turn in session")
	}
	return &f, nil
}

// Candidates returns the boosted hypotheses offered to the user.
func (f *FrozenTurn) Candidates() []Hypothesis {
	var out []Hypothesis
	for _, r := range f.Hypotheses {
		if r.Priority == PriorityBoosted {
			out = append(out, r.Hypothesis)
		}
	}
	return out
}
