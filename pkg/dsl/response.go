package dsl

import (
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/schema"
)

// ResponseBuilder configures what one continuation does. String values are
// text/template sources.
type ResponseBuilder struct {
	spec schema.ResponseSpec
}

// Say starts a successful response with text.
func Say(text string) *ResponseBuilder {
	return &ResponseBuilder{spec: schema.ResponseSpec{Text: text}}
}

// Skip starts a response that declines the turn.
func Skip() *ResponseBuilder {
	return &ResponseBuilder{spec: schema.ResponseSpec{Code: domain.ResultSkip.String()}}
}

// Fail starts a failure response.
func Fail(message string) *ResponseBuilder {
	return &ResponseBuilder{spec: schema.ResponseSpec{Code: domain.ResultFailure.String(), ErrorMessage: message}}
}

// SSML sets the spoken form.
func (r *ResponseBuilder) SSML(ssml string) *ResponseBuilder {
	r.spec.SSML = ssml
	return r
}

// Next declares the next-turn behavior.
func (r *ResponseBuilder) Next(mode domain.TurnMode, timeoutSeconds int) *ResponseBuilder {
	r.spec.NextTurn = mode
	r.spec.TimeoutSeconds = timeoutSeconds
	return r
}

// Locked keeps the next turn with this handler.
func (r *ResponseBuilder) Locked() *ResponseBuilder {
	return r.Next(domain.TurnContinuesLocked, 0)
}

// Tentative lets the next turn stay with this handler when nothing better fits.
func (r *ResponseBuilder) Tentative() *ResponseBuilder {
	return r.Next(domain.TurnContinuesTentative, 0)
}

// Continue sets the continuation invoked on the next turn.
func (r *ResponseBuilder) Continue(continuation string) *ResponseBuilder {
	r.spec.Continuation = continuation
	return r
}

// Slot requires a typed slot ("string", "int", "float", "bool", "[]T").
func (r *ResponseBuilder) Slot(name, typ string) *ResponseBuilder {
	if r.spec.Slots == nil {
		r.spec.Slots = make(map[string]string)
	}
	r.spec.Slots[name] = typ
	return r
}

// Missing is said when a required slot is absent.
func (r *ResponseBuilder) Missing(text string) *ResponseBuilder {
	r.spec.Missing = text
	return r
}

// Remember stores a session value for later turns.
func (r *ResponseBuilder) Remember(key, tmpl string) *ResponseBuilder {
	if r.spec.Session == nil {
		r.spec.Session = make(map[string]string)
	}
	r.spec.Session[key] = tmpl
	return r
}

// Profile writes a user profile value.
func (r *ResponseBuilder) Profile(key, tmpl string) *ResponseBuilder {
	if r.spec.Profile == nil {
		r.spec.Profile = make(map[string]string)
	}
	r.spec.Profile[key] = tmpl
	return r
}

// Invoke runs another domain's intent after this response.
func (r *ResponseBuilder) Invoke(d, intent string, slots map[string]string) *ResponseBuilder {
	r.spec.Invoke = &schema.ActionSpec{Domain: d, Intent: intent, Slots: slots}
	return r
}
