package domain

import "fmt"

// InputMethod is how the user produced the input.
type InputMethod int

const (
	InputUnknown InputMethod = iota
	InputTyped
	InputSpoken
	InputProgrammatic
)

var inputMethodNames = map[InputMethod]string{
	InputUnknown:      "unknown",
	InputTyped:        "typed",
	InputSpoken:       "spoken",
	InputProgrammatic: "programmatic",
}

func (m InputMethod) String() string {
	if s, ok := inputMethodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("InputMethod(%d)", int(m))
}

// MarshalText encodes the method by name.
func (m InputMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a method name. Empty means unknown.
func (m *InputMethod) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = InputUnknown
		return nil
	}
	for k, v := range inputMethodNames {
		if v == string(b) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown input method %q", string(b))
}

// IsInteractive reports typed or spoken input.
func (m InputMethod) IsInteractive() bool {
	return m == InputTyped || m == InputSpoken
}

// ClientContext identifies the user and device.
type ClientContext struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	Locale   string `json:"locale,omitempty"`
}

// TurnRequest is the input to one orchestration turn.
type TurnRequest struct {
	Hypotheses  []Hypothesis  `json:"hypotheses"`
	Client      ClientContext `json:"client"`
	InputMethod InputMethod   `json:"input_method,omitempty"`
	Text        string        `json:"text,omitempty"`

	// NewConversation discards any stored conversation state.
	NewConversation bool `json:"new_conversation,omitempty"`

	// Stack is conversation state the caller already fetched. When set, the
	// state cache is not read for this turn. NewConversation overrides it.
	Stack *ConversationStack `json:"-"`

	// EntityContext maps entity IDs referenced by slots to their payloads.
	EntityContext map[string]string `json:"entity_context,omitempty"`
	RequestData   map[string]string `json:"request_data,omitempty"`

	// TraceID is generated when empty.
	TraceID string `json:"trace_id,omitempty"`
}
