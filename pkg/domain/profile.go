package domain

// ProfileScope selects which user profile collections an operation touches.
type ProfileScope uint8

const (
	ProfileLocal ProfileScope = 1 << iota
	ProfileGlobal
	ProfileEntityHistory

	ProfileAll = ProfileLocal | ProfileGlobal | ProfileEntityHistory
)

// Has reports whether s includes every bit of o.
func (s ProfileScope) Has(o ProfileScope) bool {
	return s&o == o
}

// UserProfiles bundles the profile collections visible to one handler.
type UserProfiles struct {
	Local         *DataStore
	Global        *DataStore
	EntityHistory *DataStore
}

// TouchedScope returns the scopes whose stores were written.
func (p UserProfiles) TouchedScope() ProfileScope {
	var s ProfileScope
	if p.Local != nil && p.Local.Touched() {
		s |= ProfileLocal
	}
	if p.Global != nil && p.Global.Touched() {
		s |= ProfileGlobal
	}
	if p.EntityHistory != nil && p.EntityHistory.Touched() {
		s |= ProfileEntityHistory
	}
	return s
}

// Normalize replaces nil collections with empty stores.
func (p UserProfiles) Normalize() UserProfiles {
	if p.Local == nil {
		p.Local = NewDataStore()
	}
	if p.Global == nil {
		p.Global = NewDataStore()
	}
	if p.EntityHistory == nil {
		p.EntityHistory = NewDataStore()
	}
	return p
}
