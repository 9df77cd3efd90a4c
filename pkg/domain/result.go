package domain

import "fmt"

// ResultCode is the outcome of a handler execution or of a whole turn.
type ResultCode int

const (
	ResultSkip ResultCode = iota
	ResultSuccess
	ResultFailure
)

func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultSkip:
		return "skip"
	default:
		return fmt.Sprintf("ResultCode(%d)", int(c))
	}
}

// MarshalText encodes the code by name.
func (c ResultCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a code name.
func (c *ResultCode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*c = ResultSuccess
	case "failure":
		*c = ResultFailure
	case "skip", "":
		*c = ResultSkip
	default:
		return fmt.Errorf("unknown result code %q", string(b))
	}
	return nil
}

// Response is the user-facing payload of a turn. The engine treats it as
// opaque apart from checking whether it carries anything.
type Response struct {
	Text         string `json:"text,omitempty"`
	SSML         string `json:"ssml,omitempty"`
	HTML         string `json:"html,omitempty"`
	URL          string `json:"url,omitempty"`
	Audio        []byte `json:"audio,omitempty"`
	ClientAction string `json:"client_action,omitempty"`
}

// HasContent reports whether any user-visible field is set.
func (r Response) HasContent() bool {
	return r.Text != "" || r.SSML != "" || r.HTML != "" || r.URL != "" || len(r.Audio) > 0
}

// HandlerResult is what a handler returns from Execute.
type HandlerResult struct {
	Code         ResultCode
	Response     Response
	ErrorMessage string

	NextTurn MultiTurnBehavior

	// ContinuationName pins the entry point of the next turn, bypassing the graph.
	ContinuationName string
	// ResultNode jumps the graph to a specific node.
	ResultNode string

	// InvokedAction redirects the turn to another domain/intent.
	InvokedAction *DialogAction
}

// TurnResult is the final output of one orchestration turn.
type TurnResult struct {
	Code         ResultCode        `json:"code"`
	NextTurn     MultiTurnBehavior `json:"next_turn"`
	Selected     *Hypothesis       `json:"selected,omitempty"`
	Response     Response          `json:"response"`
	Handler      HandlerIdentity   `json:"handler"`
	ErrorMessage string            `json:"error_message,omitempty"`
	TraceID      string            `json:"trace_id,omitempty"`
	WasRetrying  bool              `json:"was_retrying,omitempty"`
}
