package session

import (
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// StateWrite says what happens to the stored conversation stack.
type StateWrite int

const (
	StateUntouched StateWrite = iota
	StateSave
	StateClear
)

// ProfileWrite is one handler's profile update.
type ProfileWrite struct {
	HandlerID string
	Scope     domain.ProfileScope
	Profiles  domain.UserProfiles
}

// Commit collects the writes of a turn. Nothing is persisted until the turn
// hands it to Manager.Commit, so an aborted turn leaves no trace.
type Commit struct {
	Client  domain.ClientContext
	TraceID string

	State StateWrite
	Stack *domain.ConversationStack
	Roam  bool

	Profiles      []ProfileWrite
	DialogActions []domain.CachedItem
	WebData       []domain.CachedItem

	// unlock releases the user's turn lock once every write has landed.
	unlock ports.UnlockFunc
}

// NewCommit starts an empty commit for client.
func NewCommit(client domain.ClientContext, traceID string) *Commit {
	return &Commit{Client: client, TraceID: traceID}
}

// SaveStack replaces any earlier state write with a save of a snapshot of stack.
func (c *Commit) SaveStack(stack *domain.ConversationStack, roam bool) {
	c.State = StateSave
	c.Stack = stack.Clone()
	c.Roam = roam
}

// ClearState replaces any earlier state write with a clear.
func (c *Commit) ClearState() {
	c.State = StateClear
	c.Stack = nil
	c.Roam = false
}

// AddProfiles records a profile update when any scope was touched.
func (c *Commit) AddProfiles(handlerID string, profiles domain.UserProfiles) {
	scope := profiles.TouchedScope()
	if scope == 0 {
		return
	}
	c.Profiles = append(c.Profiles, ProfileWrite{HandlerID: handlerID, Scope: scope, Profiles: profiles})
}

// HoldLock makes the commit release the user's turn lock after its writes.
func (c *Commit) HoldLock(unlock ports.UnlockFunc) {
	c.unlock = unlock
}

// Empty reports whether the commit has nothing to write.
func (c *Commit) Empty() bool {
	return c.State == StateUntouched && len(c.Profiles) == 0 && len(c.DialogActions) == 0 && len(c.WebData) == 0
}
