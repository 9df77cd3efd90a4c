package ports

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
)

// HandlerInfo is static, display-oriented metadata about a handler.
type HandlerInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Creator     string   `json:"creator,omitempty" yaml:"creator,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Locales     []string `json:"locales,omitempty" yaml:"locales,omitempty"`
}

// HandlerMetadata is the value bundle the registry keeps per loaded handler.
type HandlerMetadata struct {
	Identity domain.HandlerIdentity
	Domain   string
	Graph    *domain.ConversationGraph
	Info     HandlerInfo
}

// Input is the request a handler sees for one turn.
type Input struct {
	Hypothesis   domain.Hypothesis
	Continuation string
	TurnNum      int
	RetryCount   int
	PastTurns    []domain.Hypothesis
	Client       domain.ClientContext
	InputMethod  domain.InputMethod
	Text         string
	RequestData  map[string]string
}

// Services is the environment a handler executes in. Writes to Session,
// Profiles, DialogActions and WebData are committed after a successful turn.
type Services struct {
	TraceID       string
	Logger        *slog.Logger
	Session       *domain.DataStore
	Profiles      domain.UserProfiles
	Entities      map[string]string
	DialogActions *domain.ItemBuffer
	WebData       *domain.ItemBuffer
}

// CrossDomainRequest lists the slots a handler needs to accept a hand-off.
type CrossDomainRequest struct {
	RequestedSlots []string
}

// CrossDomainContext is what the originating handler is asked to fill.
type CrossDomainContext struct {
	RequestDomain  string
	RequestIntent  string
	RequestedSlots []string
	PastTurns      []domain.Hypothesis
}

// CrossDomainResponse carries the slots the originating handler filled.
type CrossDomainResponse struct {
	FilledSlots []domain.Slot
	// CallbackBehavior decides whether the origin frame survives the hand-off.
	CallbackBehavior domain.MultiTurnBehavior
	// Entities backs the entity IDs referenced by FilledSlots.
	Entities map[string]string
}

// Handler is a pluggable unit implementing one domain's conversation.
type Handler interface {
	Metadata() HandlerMetadata

	// Execute runs the continuation named in input.
	Execute(ctx context.Context, input Input, services *Services) (*domain.HandlerResult, error)

	// Trigger bids for an ambiguous turn. It must not assume the
	// conversation will continue into this handler.
	Trigger(ctx context.Context, input Input, services *Services) (domain.BoostSignal, error)

	// CrossDomainRequest returns nil when targetIntent cannot be handed off to this handler.
	CrossDomainRequest(ctx context.Context, targetIntent string) (*CrossDomainRequest, error)

	// CrossDomainResponse returns nil to decline.
	CrossDomainResponse(ctx context.Context, cdc CrossDomainContext, services *Services) (*CrossDomainResponse, error)

	OnLoad(ctx context.Context, logger *slog.Logger) error
	OnUnload(ctx context.Context, logger *slog.Logger) error
}

// HandlerProvider hosts handler code and opens handlers by identity.
type HandlerProvider interface {
	// Available lists every identity the provider can open.
	Available(ctx context.Context) ([]domain.HandlerIdentity, error)

	// Open returns domain.ErrHandlerNotFound for unknown identities.
	Open(ctx context.Context, id domain.HandlerIdentity) (Handler, error)
}

// BaseHandler provides no-op defaults for the optional Handler methods.
type BaseHandler struct{}

func (BaseHandler) Trigger(context.Context, Input, *Services) (domain.BoostSignal, error) {
	return domain.BoostNoChange, nil
}

func (BaseHandler) CrossDomainRequest(context.Context, string) (*CrossDomainRequest, error) {
	return nil, nil
}

func (BaseHandler) CrossDomainResponse(context.Context, CrossDomainContext, *Services) (*CrossDomainResponse, error) {
	return nil, nil
}

func (BaseHandler) OnLoad(context.Context, *slog.Logger) error   { return nil }
func (BaseHandler) OnUnload(context.Context, *slog.Logger) error { return nil }
