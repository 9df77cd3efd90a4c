package domain

// BoostSignal is a handler's bid during triggering.
type BoostSignal int

const (
	BoostNoChange BoostSignal = iota
	BoostUp
	BoostSuppress
)

func (b BoostSignal) String() string {
	switch b {
	case BoostUp:
		return "boost"
	case BoostSuppress:
		return "suppress"
	default:
		return "no_change"
	}
}

// TriggerOutcome is the result of one handler's speculative evaluation.
type TriggerOutcome struct {
	Handler     HandlerIdentity `json:"handler"`
	Domain      string          `json:"domain"`
	Intent      string          `json:"intent"`
	Signal      BoostSignal     `json:"signal"`
	SideEffects *DataStore      `json:"side_effects,omitempty"`
}

// Key returns the "domain/intent" this outcome is recorded under.
func (t TriggerOutcome) Key() string {
	return DomainIntent(t.Domain, t.Intent)
}
