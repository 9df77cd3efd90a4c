package domain

import (
	"fmt"
	"time"
)

// DefaultConversationTimeout applies when a handler leaves TimeoutSeconds unset.
const DefaultConversationTimeout = 5 * time.Minute

// TurnMode is the next-turn behavior a handler declares.
type TurnMode int

const (
	TurnNone TurnMode = iota
	TurnContinuesTentative
	TurnContinuesLocked
	TurnContinuesFullControl
)

var turnModeNames = map[TurnMode]string{
	TurnNone:                 "none",
	TurnContinuesTentative:   "tentative",
	TurnContinuesLocked:      "locked",
	TurnContinuesFullControl: "full_control",
}

func (m TurnMode) String() string {
	if s, ok := turnModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("TurnMode(%d)", int(m))
}

// MarshalText encodes the mode by name.
func (m TurnMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *TurnMode) UnmarshalText(b []byte) error {
	for k, v := range turnModeNames {
		if v == string(b) {
			*m = k
			return nil
		}
	}
	if len(b) == 0 {
		*m = TurnNone
		return nil
	}
	return fmt.Errorf("unknown turn mode %q", string(b))
}

// MultiTurnBehavior says whether and how a conversation continues.
type MultiTurnBehavior struct {
	Mode           TurnMode `json:"mode" yaml:"mode"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// Behaviors handlers return most often.
var (
	BehaviorNone        = MultiTurnBehavior{Mode: TurnNone}
	BehaviorTentative   = MultiTurnBehavior{Mode: TurnContinuesTentative}
	BehaviorLocked      = MultiTurnBehavior{Mode: TurnContinuesLocked}
	BehaviorFullControl = MultiTurnBehavior{Mode: TurnContinuesFullControl}
)

// Continues reports whether the frame survives to the next turn.
func (b MultiTurnBehavior) Continues() bool {
	return b.Mode != TurnNone
}

// IsTentative reports continuation revocable by any non-matching input.
func (b MultiTurnBehavior) IsTentative() bool {
	return b.Mode == TurnContinuesTentative
}

// IsNonTentative reports a locked or full-control continuation.
func (b MultiTurnBehavior) IsNonTentative() bool {
	return b.Mode == TurnContinuesLocked || b.Mode == TurnContinuesFullControl
}

// Timeout returns the conversation lifetime for this behavior.
func (b MultiTurnBehavior) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return DefaultConversationTimeout
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}
