package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbrowser/lumen/backend/internal/gateway"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/storage"
)

// stubGateway serves canned transaction statuses; the ledger never
// touches the other gateway operations.
type stubGateway struct {
	statuses  map[string]*gateway.TransactionStatus
	statusErr error
}

func (s *stubGateway) GetTransactionStatus(ctx context.Context, txID string) (*gateway.TransactionStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	if st, ok := s.statuses[txID]; ok {
		return st, nil
	}
	return &gateway.TransactionStatus{Found: false}, nil
}

func (s *stubGateway) GenerateKeyMaterial(context.Context) (*gateway.KeyMaterial, error) {
	return nil, errs.ErrNetwork
}
func (s *stubGateway) ImportKeyMaterial(context.Context, string) (*gateway.ImportedKey, error) {
	return nil, errs.ErrNetwork
}
func (s *stubGateway) ImportSeedMaterial(context.Context, string) (*gateway.KeyMaterial, error) {
	return nil, errs.ErrNetwork
}
func (s *stubGateway) SignMessage(context.Context, string, string) (string, error) {
	return "", errs.ErrNetwork
}
func (s *stubGateway) SubmitTransfer(context.Context, string, string, string, string) (string, error) {
	return "", errs.ErrNetwork
}
func (s *stubGateway) SubmitProgramExecution(context.Context, string, gateway.ExecutionRequest) (string, error) {
	return "", errs.ErrNetwork
}
func (s *stubGateway) GetBalance(context.Context, string) (*gateway.Balance, error) {
	return nil, errs.ErrNetwork
}

func newTestLedger(t *testing.T, gw gateway.Gateway, grace time.Duration) (*Ledger, *storage.Store) {
	t.Helper()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "transactions.json"))
	require.NoError(t, err)

	networks := gateway.DefaultNetworks()
	l, err := NewLedger(
		store,
		gw,
		networks["testnet"],
		logging.NewNop(),
		monitoring.NewMetricsWithRegistry(prometheus.NewRegistry()),
		grace,
	)
	require.NoError(t, err)
	return l, store
}

func TestRecordSubmissionOrdersMostRecentFirst(t *testing.T) {
	l, store := newTestLedger(t, &stubGateway{}, 10*time.Minute)

	first, err := l.RecordSubmission(Submission{ChainTxID: "at1first", Kind: KindSend, Amount: "10", Fee: "0.1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, "https://testnet.explorer.aleo.org/transaction/at1first", first.ExplorerURL)

	_, err = l.RecordSubmission(Submission{ChainTxID: "at1second", Kind: KindExecute, Fee: "0.05", ProgramID: "credits.aleo"})
	require.NoError(t, err)

	records := l.List()
	require.Len(t, records, 2)
	assert.Equal(t, "at1second", records[0].ChainTxID)
	assert.Equal(t, "at1first", records[1].ChainTxID)

	// Log survives a restart.
	reopened, err := NewLedger(store, &stubGateway{}, gateway.DefaultNetworks()["testnet"],
		logging.NewNop(), monitoring.NewMetricsWithRegistry(prometheus.NewRegistry()), 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, reopened.List(), 2)
}

func TestRecordSubmissionValidation(t *testing.T) {
	l, _ := newTestLedger(t, &stubGateway{}, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{Kind: KindSend, Amount: "10"})
	assert.ErrorIs(t, err, errs.ErrValidation, "missing chain tx id")

	_, err = l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: "teleport"})
	assert.ErrorIs(t, err, errs.ErrValidation, "unknown kind")

	_, err = l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: KindSend, Amount: "ten"})
	assert.ErrorIs(t, err, errs.ErrValidation, "non-numeric amount")

	_, err = l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: KindSend, Amount: "1.2345678"})
	assert.ErrorIs(t, err, errs.ErrValidation, "too many decimal places")
}

func TestReconcileConfirmsAndSumsStats(t *testing.T) {
	height := uint64(12345)
	gw := &stubGateway{statuses: map[string]*gateway.TransactionStatus{
		"at1send": {Found: true, Status: "finalized", BlockHeight: &height},
	}}
	l, _ := newTestLedger(t, gw, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{ChainTxID: "at1send", Kind: KindSend, Amount: "10", Fee: "0.1"})
	require.NoError(t, err)

	l.Reconcile(context.Background())

	records := l.List()
	require.Len(t, records, 1)
	assert.Equal(t, StatusConfirmed, records[0].Status)
	require.NotNil(t, records[0].BlockHeight)
	assert.Equal(t, height, *records[0].BlockHeight)

	stats := l.Stats()
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, "10", stats.TotalSent)
	assert.Equal(t, "0.1", stats.TotalFees)
	assert.Equal(t, "0", stats.TotalReceived)
}

func TestReconcileFailsRejected(t *testing.T) {
	gw := &stubGateway{statuses: map[string]*gateway.TransactionStatus{
		"at1bad": {Found: true, Status: "rejected"},
	}}
	l, _ := newTestLedger(t, gw, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{ChainTxID: "at1bad", Kind: KindSend, Amount: "5", Fee: "0.1"})
	require.NoError(t, err)

	l.Reconcile(context.Background())

	records := l.List()
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Equal(t, "transaction rejected", records[0].Error)

	// Failed transactions never count toward totals.
	stats := l.Stats()
	assert.Equal(t, "0", stats.TotalSent)
	assert.Equal(t, "0", stats.TotalFees)
}

func TestReconcileNotFoundGraceWindow(t *testing.T) {
	l, _ := newTestLedger(t, &stubGateway{}, 10*time.Minute)

	rec, err := l.RecordSubmission(Submission{ChainTxID: "at1ghost", Kind: KindSend, Amount: "1", Fee: "0.1"})
	require.NoError(t, err)

	// Inside the grace window the record stays pending.
	l.Reconcile(context.Background())
	assert.Equal(t, StatusPending, l.List()[0].Status)

	// Backdate the record past the window.
	l.mu.Lock()
	for _, r := range l.records {
		if r.ID == rec.ID {
			r.CreatedAt = time.Now().Add(-11 * time.Minute)
		}
	}
	l.mu.Unlock()

	l.Reconcile(context.Background())
	records := l.List()
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Equal(t, "transaction not found on chain", records[0].Error)
}

func TestReconcileNetworkErrorLeavesPending(t *testing.T) {
	gw := &stubGateway{statusErr: errs.Network(assert.AnError)}
	l, _ := newTestLedger(t, gw, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: KindSend, Amount: "1", Fee: "0.1"})
	require.NoError(t, err)

	l.Reconcile(context.Background())
	assert.Equal(t, StatusPending, l.List()[0].Status)
}

func TestReconcileMatchesKeywordsInFreeFormStatus(t *testing.T) {
	// Nodes wrap the status keyword in free-form text and vary casing.
	gw := &stubGateway{statuses: map[string]*gateway.TransactionStatus{
		"at1caps":   {Found: true, Status: "Finalized"},
		"at1inline": {Found: true, Status: "accepted in block 42"},
		"at1reason": {Found: true, Status: "Rejected: fee too low"},
	}}
	l, _ := newTestLedger(t, gw, 10*time.Minute)

	for _, txID := range []string{"at1caps", "at1inline", "at1reason"} {
		_, err := l.RecordSubmission(Submission{ChainTxID: txID, Kind: KindSend, Amount: "1", Fee: "0.1"})
		require.NoError(t, err)
	}

	l.Reconcile(context.Background())

	byTx := make(map[string]Record)
	for _, r := range l.List() {
		byTx[r.ChainTxID] = r
	}
	assert.Equal(t, StatusConfirmed, byTx["at1caps"].Status)
	assert.Equal(t, StatusConfirmed, byTx["at1inline"].Status)
	assert.Equal(t, StatusFailed, byTx["at1reason"].Status)
	assert.Equal(t, "transaction Rejected: fee too low", byTx["at1reason"].Error)
}

func TestRecordSubmissionRejectsNegativeAmounts(t *testing.T) {
	l, _ := newTestLedger(t, &stubGateway{}, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: KindSend, Amount: "-10", Fee: "0.1"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: KindSend, Amount: "10", Fee: "-0.1"})
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Empty(t, l.List(), "rejected submissions must not be recorded")
}

func TestReconcileUnknownNodeStatusLeavesPending(t *testing.T) {
	gw := &stubGateway{statuses: map[string]*gateway.TransactionStatus{
		"at1x": {Found: true, Status: "queued"},
	}}
	l, _ := newTestLedger(t, gw, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{ChainTxID: "at1x", Kind: KindSend, Amount: "1", Fee: "0.1"})
	require.NoError(t, err)

	l.Reconcile(context.Background())
	assert.Equal(t, StatusPending, l.List()[0].Status)
}

func TestStatsSeparatesDirections(t *testing.T) {
	gw := &stubGateway{statuses: map[string]*gateway.TransactionStatus{
		"at1out": {Found: true, Status: "confirmed"},
		"at1in":  {Found: true, Status: "confirmed"},
	}}
	l, _ := newTestLedger(t, gw, 10*time.Minute)

	_, err := l.RecordSubmission(Submission{ChainTxID: "at1out", Kind: KindSend, Amount: "2.5", Fee: "0.1"})
	require.NoError(t, err)
	_, err = l.RecordSubmission(Submission{ChainTxID: "at1in", Kind: KindReceive, Amount: "7.25", Fee: "0"})
	require.NoError(t, err)
	_, err = l.RecordSubmission(Submission{ChainTxID: "at1pending", Kind: KindSend, Amount: "100", Fee: "1"})
	require.NoError(t, err)

	l.Reconcile(context.Background())

	stats := l.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Confirmed)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, "2.5", stats.TotalSent)
	assert.Equal(t, "7.25", stats.TotalReceived)
	assert.Equal(t, "0.1", stats.TotalFees)
}

func TestDeleteAndClear(t *testing.T) {
	l, _ := newTestLedger(t, &stubGateway{}, 10*time.Minute)

	rec, err := l.RecordSubmission(Submission{ChainTxID: "at1a", Kind: KindSend, Amount: "1", Fee: "0.1"})
	require.NoError(t, err)
	_, err = l.RecordSubmission(Submission{ChainTxID: "at1b", Kind: KindSend, Amount: "2", Fee: "0.1"})
	require.NoError(t, err)

	require.NoError(t, l.Delete(rec.ID))
	assert.Len(t, l.List(), 1)
	assert.ErrorIs(t, l.Delete(rec.ID), errs.ErrValidation)

	require.NoError(t, l.Clear())
	assert.Empty(t, l.List())
}

func TestAmountFixedPoint(t *testing.T) {
	micro, err := parseAmount("10")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), micro)

	micro, err = parseAmount("0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), micro)

	assert.Equal(t, "10.1", formatAmount(10_100_000))
	assert.Equal(t, "0", formatAmount(0))

	_, err = parseAmount("1.0000001")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = parseAmount("1,5")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestReconcilerStartStopIdempotent(t *testing.T) {
	l, _ := newTestLedger(t, &stubGateway{}, 10*time.Minute)
	r := NewReconciler(l, logging.NewNop(), 10*time.Millisecond)

	ctx := context.Background()
	r.Start(ctx)
	r.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	r.Stop()
	r.Stop()
}
