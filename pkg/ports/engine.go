package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// TurnProcessor is the driving port used by transport adapters (HTTP, MCP, CLI).
type TurnProcessor interface {
	// Process runs one orchestration turn.
	Process(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error)

	// Handlers lists the loaded handlers.
	Handlers() []HandlerMetadata
}
