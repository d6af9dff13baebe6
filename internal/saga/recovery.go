package saga

import (
	"context"
	"time"

	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
)

// Recovery periodically re-drives sagas that never reached a terminal
// state, the automated half of spec §4.5's stuck-saga handling: a crash
// between the debit commit and the SOURCE_DEBITED write (or between
// that write and the credit attempt) leaves a saga parked mid-flight
// with no in-memory goroutine left to finish it.
type Recovery struct {
	orchestrator *Orchestrator
	store        Store
	interval     time.Duration
	threshold    time.Duration
}

func NewRecovery(orchestrator *Orchestrator, store Store, interval, threshold time.Duration) *Recovery {
	return &Recovery{
		orchestrator: orchestrator,
		store:        store,
		interval:     interval,
		threshold:    threshold,
	}
}

// Run blocks, scanning every interval until ctx is cancelled.
func (r *Recovery) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *Recovery) scan(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.threshold)
	stuck, err := r.store.ListStuck(ctx, cutoff)
	if err != nil {
		logging.Error("saga recovery scan failed", err, nil)
		return
	}

	for _, state := range stuck {
		r.redrive(ctx, state)
	}
}

// redrive re-enters the state machine at the step the saga was parked
// in. COMPENSATING is excluded from ListStuck deliberately: it is
// terminal-from-automation and must not be retried without an operator
// decision, per spec §7's CriticalCompensationFailure kind.
func (r *Recovery) redrive(ctx context.Context, state State) {
	logging.Info("recovering stuck saga", map[string]interface{}{
		"saga_id": state.SagaID, "status": string(state.Status),
	})

	var (
		result Result
		err    error
	)

	switch state.Status {
	case StatusInitiated:
		result, err = r.orchestrator.driveFromInitiated(ctx, state)
	case StatusSourceDebited:
		result, err = r.orchestrator.driveFromSourceDebited(ctx, state)
	default:
		return
	}

	if err != nil {
		logging.Error("saga recovery redrive failed", err, map[string]interface{}{"saga_id": state.SagaID})
		return
	}

	logging.Info("saga recovery redrive finished", map[string]interface{}{
		"saga_id": state.SagaID, "success": result.Success,
	})
}
