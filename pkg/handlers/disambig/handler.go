// Package disambig provides the system handler that asks the user to choose
// between handlers that all bid for the same turn.
package disambig

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// ID is the handler ID the disambiguation handler registers under.
const ID = "disambiguation"

// ContinuationSelect is the entry point that reads the user's answer.
const ContinuationSelect = "select"

const (
	optionsKey  = "disambig.options"
	attemptsKey = "disambig.attempts"
)

// Handler serves the system disambiguate intent. On the first turn it lists
// the boosted candidates; on the next it maps the answer to one of them and
// returns the callback action that replays the original turn.
type Handler struct {
	ports.BaseHandler
	domain      string
	version     domain.Version
	maxAttempts int
	prompt      func([]domain.Hypothesis) string
	timeout     int
}

// Option configures the Handler.
type Option func(*Handler)

// WithDomain sets the system domain name. It must match the engine's.
func WithDomain(d string) Option {
	return func(h *Handler) {
		h.domain = d
	}
}

// WithPrompt replaces the question built from the candidates.
func WithPrompt(fn func([]domain.Hypothesis) string) Option {
	return func(h *Handler) {
		h.prompt = fn
	}
}

// WithMaxAttempts sets how many unrecognized answers are tolerated before
// the handler gives up.
func WithMaxAttempts(n int) Option {
	return func(h *Handler) {
		h.maxAttempts = n
	}
}

// WithTimeout sets how long, in seconds, the question stays open.
func WithTimeout(seconds int) Option {
	return func(h *Handler) {
		h.timeout = seconds
	}
}

// New creates the disambiguation handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		domain:      domain.SystemDomain,
		version:     domain.Version{Major: 1},
		maxAttempts: 2,
		prompt:      DefaultPrompt,
		timeout:     60,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Metadata implements ports.Handler. The handler has no graph; it steers
// itself with explicit continuations.
func (h *Handler) Metadata() ports.HandlerMetadata {
	return ports.HandlerMetadata{
		Identity: domain.HandlerIdentity{ID: ID, Version: h.version},
		Domain:   h.domain,
		Info: ports.HandlerInfo{
			Name:        "Disambiguation",
			Description: "Asks which handler the user meant when several claim a turn.",
		},
	}
}

// Execute implements ports.Handler.
func (h *Handler) Execute(ctx context.Context, in ports.Input, svc *ports.Services) (*domain.HandlerResult, error) {
	if in.Continuation == ContinuationSelect {
		return h.selectCandidate(in, svc)
	}
	return h.ask(svc)
}

func (h *Handler) ask(svc *ports.Services) (*domain.HandlerResult, error) {
	frozen, err := domain.ThawTurn(svc.Session)
	if err != nil {
		return nil, err
	}
	candidates := frozen.Candidates()
	if len(candidates) < 2 {
		svc.Logger.Warn("Nothing to disambiguate", "candidates", len(candidates))
		return &domain.HandlerResult{Code: domain.ResultSkip}, nil
	}

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.Key()
	}
	if err := svc.Session.PutObject(optionsKey, keys); err != nil {
		return nil, fmt.Errorf("failed to store options: %w", err)
	}
	if err := svc.Session.PutObject(attemptsKey, 0); err != nil {
		return nil, fmt.Errorf("failed to store attempts: %w", err)
	}

	return h.question(h.prompt(candidates)), nil
}

func (h *Handler) selectCandidate(in ports.Input, svc *ports.Services) (*domain.HandlerResult, error) {
	var keys []string
	if _, err := svc.Session.GetObject(optionsKey, &keys); err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	if len(keys) == 0 {
		return &domain.HandlerResult{Code: domain.ResultSkip}, nil
	}

	if choice, ok := Match(keys, in.Hypothesis, in.Text); ok {
		svc.Logger.Info("User picked a handler", "selection", choice)
		return &domain.HandlerResult{
			Code: domain.ResultSuccess,
			InvokedAction: &domain.DialogAction{
				Domain: h.domain,
				Intent: domain.IntentDisambiguationCallback,
				Slots:  []domain.Slot{{Name: domain.SlotDisambiguatedDomainIntent, Value: choice}},
			},
		}, nil
	}

	var attempts int
	if _, err := svc.Session.GetObject(attemptsKey, &attempts); err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	attempts++
	if attempts >= h.maxAttempts {
		return &domain.HandlerResult{
			Code:     domain.ResultSuccess,
			Response: domain.Response{Text: "Okay, never mind."},
			NextTurn: domain.BehaviorNone,
		}, nil
	}
	if err := svc.Session.PutObject(attemptsKey, attempts); err != nil {
		return nil, fmt.Errorf("failed to store attempts: %w", err)
	}

	hyps := make([]domain.Hypothesis, 0, len(keys))
	for _, k := range keys {
		d, i, _ := domain.SplitDomainIntent(k)
		hyps = append(hyps, domain.Hypothesis{Domain: d, Intent: i})
	}
	return h.question("Sorry, I didn't catch that. " + h.prompt(hyps)), nil
}

func (h *Handler) question(text string) *domain.HandlerResult {
	return &domain.HandlerResult{
		Code:             domain.ResultSuccess,
		Response:         domain.Response{Text: text},
		NextTurn:         domain.MultiTurnBehavior{Mode: domain.TurnContinuesLocked, TimeoutSeconds: h.timeout},
		ContinuationName: ContinuationSelect,
	}
}

// DefaultPrompt lists the candidates as a numbered question.
func DefaultPrompt(candidates []domain.Hypothesis) string {
	var b strings.Builder
	b.WriteString("Did you mean ")
	for i, c := range candidates {
		if i > 0 {
			if i == len(candidates)-1 {
				b.WriteString(" or ")
			} else {
				b.WriteString(", ")
			}
		}
		fmt.Fprintf(&b, "(%d) %s", i+1, Label(c))
	}
	b.WriteString("?")
	return b.String()
}

// Label renders a hypothesis for a human.
func Label(h domain.Hypothesis) string {
	return strings.ReplaceAll(h.Domain+" "+h.Intent, "_", " ")
}

var ordinals = map[string]int{
	"first": 1, "one": 1,
	"second": 2, "two": 2,
	"third": 3, "three": 3,
	"fourth": 4, "four": 4,
}

// Match maps an answer to one of the offered keys. The recognized
// domain/intent wins; otherwise the answer text is read as a position
// ("2", "the second") or as a domain name.
func Match(keys []string, answer domain.Hypothesis, text string) (string, bool) {
	for _, k := range keys {
		if k == answer.Key() {
			return k, true
		}
	}

	if text == "" {
		text = answer.Utterance
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	})
	for _, w := range words {
		n, ok := ordinals[w]
		if !ok {
			if v, err := strconv.Atoi(w); err == nil {
				n, ok = v, true
			}
		}
		if ok && n >= 1 && n <= len(keys) {
			return keys[n-1], true
		}
	}

	var found string
	for _, k := range keys {
		d, _, _ := domain.SplitDomainIntent(k)
		for _, w := range words {
			if w == d {
				if found != "" && found != k {
					return "", false
				}
				found = k
			}
		}
	}
	return found, found != ""
}
