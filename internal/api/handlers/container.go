package handlers

import (
	"github.com/fandangolas/wallet-ledger/internal/application/mediator"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/internal/projection"
)

// Dependencies breaks the circular dependency between handlers and the
// container package, mirroring the teacher's HandlerDependencies
// interface in internal/api/handlers/container.go.
type Dependencies interface {
	GetMediator() *mediator.Mediator
	GetRepository() *eventstore.Repository
	GetProjectionStore() *projection.Store
}
