package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
)

// Reconciler drives the periodic reconciliation sweep. Start and Stop
// are idempotent; at most one loop runs at a time.
type Reconciler struct {
	ledger   *Ledger
	logger   *logging.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciler creates a reconciler over the given ledger.
func NewReconciler(ledger *Ledger, logger *logging.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		ledger:   ledger,
		logger:   logger.Named("reconciler"),
		interval: interval,
	}
}

// Start launches the sweep loop. Calling Start on a running reconciler
// is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(loopCtx, r.done)
	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
// Calling Stop on a stopped reconciler is a no-op.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// One sweep immediately so a restart with pending records does not
	// wait a full interval.
	r.ledger.Reconcile(ctx)

	for {
		select {
		case <-ticker.C:
			r.ledger.Reconcile(ctx)
		case <-ctx.Done():
			return
		}
	}
}
