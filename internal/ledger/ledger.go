package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/gateway"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/shared/id"
	"github.com/lumenbrowser/lumen/backend/internal/storage"
)

// Submission describes a freshly broadcast transaction to record.
type Submission struct {
	ChainTxID    string
	Kind         Kind
	Amount       string
	Fee          string
	From         string
	To           string
	ProgramID    string
	FunctionName string
}

// Ledger owns the transaction log. Records enter as pending and are
// moved to confirmed or failed by reconciliation against the node.
type Ledger struct {
	store         *storage.Store
	gw            gateway.Gateway
	network       gateway.Network
	logger        *logging.Logger
	metrics       *monitoring.Metrics
	notFoundGrace time.Duration

	mu      sync.Mutex
	records []*Record // most recent first
}

// NewLedger creates a ledger, loading any persisted log.
func NewLedger(
	store *storage.Store,
	gw gateway.Gateway,
	network gateway.Network,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
	notFoundGrace time.Duration,
) (*Ledger, error) {
	l := &Ledger{
		store:         store,
		gw:            gw,
		network:       network,
		logger:        logger.Named("ledger"),
		metrics:       metrics,
		notFoundGrace: notFoundGrace,
	}
	if _, err := store.Load(&l.records); err != nil {
		return nil, err
	}
	return l, nil
}

// RecordSubmission appends a pending record for a broadcast
// transaction. New records go to the front so listings read most
// recent first.
func (l *Ledger) RecordSubmission(sub Submission) (*Record, error) {
	if sub.ChainTxID == "" {
		return nil, errs.Validation("chain transaction id is required")
	}
	if !sub.Kind.Valid() {
		return nil, errs.Validation("unknown transaction kind %q", sub.Kind)
	}
	amount, err := parseAmount(sub.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount(sub.Fee)
	if err != nil {
		return nil, err
	}
	if amount < 0 || fee < 0 {
		return nil, errs.Validation("amount and fee must not be negative")
	}

	now := time.Now()
	record := &Record{
		ID:           id.NewTransactionID(),
		ChainTxID:    sub.ChainTxID,
		Kind:         sub.Kind,
		Status:       StatusPending,
		Amount:       sub.Amount,
		Fee:          sub.Fee,
		From:         sub.From,
		To:           sub.To,
		ProgramID:    sub.ProgramID,
		FunctionName: sub.FunctionName,
		ExplorerURL:  l.network.ExplorerURL(sub.ChainTxID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append([]*Record{record}, l.records...)
	if err := l.persistLocked(); err != nil {
		l.records = l.records[1:]
		return nil, err
	}

	l.metrics.TransactionsSubmitted.WithLabelValues(string(sub.Kind)).Inc()
	l.logger.Info("transaction recorded",
		zap.String("id", record.ID.String()),
		zap.String("chain_tx_id", record.ChainTxID),
		zap.String("kind", string(record.Kind)),
	)
	copied := *record
	return &copied, nil
}

// List returns the log, most recent first.
func (l *Ledger) List() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	for i, r := range l.records {
		out[i] = *r
	}
	return out
}

// Get returns one record by internal id.
func (l *Ledger) Get(recordID id.TransactionID) (*Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.records {
		if r.ID == recordID {
			copied := *r
			return &copied, true
		}
	}
	return nil, false
}

// Delete removes one record from the log.
func (l *Ledger) Delete(recordID id.TransactionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.records {
		if r.ID == recordID {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return l.persistLocked()
		}
	}
	return errs.Validation("unknown transaction %s", recordID)
}

// Clear wipes the entire log.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	return l.persistLocked()
}

// Stats summarizes the log. Monetary totals use fixed-point credit
// arithmetic over confirmed records only.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Total: len(l.records)}
	var sent, received, fees int64
	for _, r := range l.records {
		switch r.Status {
		case StatusPending:
			stats.Pending++
		case StatusConfirmed:
			stats.Confirmed++
		case StatusFailed:
			stats.Failed++
		}
		if r.Status != StatusConfirmed {
			continue
		}

		amount, err := parseAmount(r.Amount)
		if err != nil {
			continue
		}
		fee, err := parseAmount(r.Fee)
		if err != nil {
			continue
		}
		switch r.Kind {
		case KindReceive:
			received += amount
		default:
			sent += amount
		}
		fees += fee
	}

	stats.TotalSent = formatAmount(sent)
	stats.TotalReceived = formatAmount(received)
	stats.TotalFees = formatAmount(fees)
	return stats
}

// Reconcile queries the node for every pending record and applies the
// resulting status transitions. Node statuses map as follows: accepted,
// confirmed, and finalized confirm the record; rejected, failed, and
// aborted fail it. A transaction the node does not know yet stays
// pending within the grace window and fails after it. Network failures
// leave records untouched for the next sweep.
func (l *Ledger) Reconcile(ctx context.Context) {
	start := time.Now()
	defer func() {
		l.metrics.ReconcileRuns.Inc()
		l.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	l.mu.Lock()
	pending := make([]*Record, 0)
	for _, r := range l.records {
		if r.Status == StatusPending {
			copied := *r
			pending = append(pending, &copied)
		}
	}
	l.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	type update struct {
		recordID      id.TransactionID
		status        Status
		blockHeight   *uint64
		confirmations *uint64
		errMsg        string
	}
	updates := make([]update, len(pending))

	var wg sync.WaitGroup
	for i, r := range pending {
		wg.Add(1)
		go func(i int, r *Record) {
			defer wg.Done()

			state, err := l.gw.GetTransactionStatus(ctx, r.ChainTxID)
			if err != nil {
				l.logger.Warn("status query failed, keeping record pending",
					zap.String("chain_tx_id", r.ChainTxID),
					zap.Error(err),
				)
				return
			}

			if !state.Found {
				if time.Since(r.CreatedAt) > l.notFoundGrace {
					updates[i] = update{
						recordID: r.ID,
						status:   StatusFailed,
						errMsg:   "transaction not found on chain",
					}
				}
				return
			}

			switch classifyStatus(state.Status) {
			case StatusConfirmed:
				updates[i] = update{
					recordID:      r.ID,
					status:        StatusConfirmed,
					blockHeight:   state.BlockHeight,
					confirmations: state.Confirmations,
				}
			case StatusFailed:
				updates[i] = update{recordID: r.ID, status: StatusFailed, errMsg: "transaction " + state.Status}
			}
		}(i, r)
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for _, u := range updates {
		if u.recordID == "" {
			continue
		}
		for _, r := range l.records {
			if r.ID != u.recordID || r.Status != StatusPending {
				continue
			}
			r.Status = u.status
			r.BlockHeight = u.blockHeight
			r.Confirmations = u.confirmations
			r.Error = u.errMsg
			r.UpdatedAt = time.Now()
			changed = true
			l.metrics.TransactionsReconciled.WithLabelValues(string(u.status)).Inc()
			l.logger.Info("transaction reconciled",
				zap.String("id", r.ID.String()),
				zap.String("status", string(u.status)),
			)
		}
	}

	if changed {
		if err := l.persistLocked(); err != nil {
			l.logger.Error("failed to persist reconciled log", zap.Error(err))
		}
	}
}

// persistLocked writes the log through to disk. Caller holds l.mu.
func (l *Ledger) persistLocked() error {
	return l.store.Save(l.records)
}
