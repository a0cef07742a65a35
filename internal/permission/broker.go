package permission

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/shared/id"
	"github.com/lumenbrowser/lumen/backend/internal/storage"
)

// ApprovalEvent is the prompt pushed to the UI when an origin asks for
// capabilities it does not hold yet. Kind is the leading capability;
// the full requested set rides in Capabilities.
type ApprovalEvent struct {
	RequestID    string       `json:"request_id"`
	Origin       string       `json:"origin"`
	Kind         Capability   `json:"kind"`
	Capabilities []Capability `json:"capabilities"`
	RequestedAt  time.Time    `json:"requested_at"`
}

// Publisher delivers approval prompts to the user interface. The
// WebSocket hub implements this.
type Publisher interface {
	PublishApproval(event ApprovalEvent)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(event ApprovalEvent)

func (f PublisherFunc) PublishApproval(event ApprovalEvent) { f(event) }

// Broker owns the per-origin grant table and the in-flight approval
// negotiations. Grants persist across restarts; pending requests do not.
type Broker struct {
	store     *storage.Store
	publisher Publisher
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	timeout   time.Duration

	// addressFn supplies the wallet address stamped on new grants.
	// Optional; returns "" while no wallet is unlocked.
	addressFn func() string

	mu      sync.Mutex
	grants  map[string]*SitePermission
	pending map[id.RequestID]*pendingRequest
	closed  bool
}

// NewBroker creates a broker, loading any persisted grant table.
func NewBroker(
	store *storage.Store,
	publisher Publisher,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
	approvalTimeout time.Duration,
) (*Broker, error) {
	b := &Broker{
		store:     store,
		publisher: publisher,
		logger:    logger.Named("permission"),
		metrics:   metrics,
		timeout:   approvalTimeout,
		grants:    make(map[string]*SitePermission),
		pending:   make(map[id.RequestID]*pendingRequest),
	}

	if _, err := store.Load(&b.grants); err != nil {
		return nil, err
	}
	metrics.GrantedOrigins.Set(float64(len(b.grants)))
	return b, nil
}

// SetAddressProvider attaches the callback that supplies the wallet
// address recorded on new grants.
func (b *Broker) SetAddressProvider(fn func() string) {
	b.addressFn = fn
}

// IsConnected reports whether origin holds the Connect capability.
func (b *Broker) IsConnected(origin string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	grant, ok := b.grants[origin]
	return ok && grant.Has(CapConnect)
}

// RequireCapability gates a dapp operation on an existing grant.
func (b *Broker) RequireCapability(origin string, c Capability) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	grant, ok := b.grants[origin]
	if !ok {
		return errs.ErrNotConnected
	}
	if !grant.Has(c) {
		return errs.PermissionDenied("origin %s lacks capability %q", origin, c)
	}
	return nil
}

// RequestCapabilities asks the user to grant caps to origin. Blocks
// until the user decides, the approval window expires, or ctx is
// cancelled. When every requested capability is already granted, the
// call returns immediately without prompting.
func (b *Broker) RequestCapabilities(ctx context.Context, origin string, caps []Capability) ([]Capability, error) {
	if origin == "" {
		return nil, errs.Validation("origin is required")
	}
	if len(caps) == 0 {
		return nil, errs.Validation("at least one capability is required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errs.PermissionDenied("wallet core shutting down")
	}
	if grant, ok := b.grants[origin]; ok && grant.hasAll(caps) {
		granted := append([]Capability(nil), grant.Capabilities...)
		b.mu.Unlock()
		return granted, nil
	}

	req := newPendingRequest(origin, caps)
	req.timer = time.AfterFunc(b.timeout, func() {
		req.fail(errs.Timeout("approval request for %s expired", origin))
	})
	b.pending[req.id] = req
	b.metrics.ApprovalRequests.Inc()
	b.metrics.ApprovalsPending.Set(float64(len(b.pending)))
	b.mu.Unlock()

	b.publisher.PublishApproval(ApprovalEvent{
		RequestID:    req.id.String(),
		Origin:       origin,
		Kind:         caps[0],
		Capabilities: caps,
		RequestedAt:  req.createdAt,
	})
	b.logger.Info("approval requested",
		zap.String("request_id", req.id.String()),
		zap.String("origin", origin),
	)

	select {
	case out := <-req.done:
		b.removePending(req.id)
		return b.settle(req, out)
	case <-ctx.Done():
		req.fail(ctx.Err())
		b.removePending(req.id)
		return nil, ctx.Err()
	}
}

// Resolve delivers the user's decision for a pending request. Resolving
// an unknown or already-settled request is a harmless no-op: the racing
// timeout may have fired first.
func (b *Broker) Resolve(requestID string, approved bool) {
	b.mu.Lock()
	req, ok := b.pending[id.RequestID(requestID)]
	b.mu.Unlock()
	if !ok {
		b.logger.Debug("resolve for unknown request", zap.String("request_id", requestID))
		return
	}
	req.resolve(approved)
}

// Pending returns the in-flight approval prompts, oldest first. The UI
// replays these after a reconnect.
func (b *Broker) Pending() []ApprovalEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := make([]ApprovalEvent, 0, len(b.pending))
	for _, req := range b.pending {
		events = append(events, ApprovalEvent{
			RequestID:    req.id.String(),
			Origin:       req.origin,
			Kind:         req.capabilities[0],
			Capabilities: req.capabilities,
			RequestedAt:  req.createdAt,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].RequestID < events[j].RequestID })
	return events
}

// Connections lists every granted origin, sorted.
func (b *Broker) Connections() []SitePermission {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]SitePermission, 0, len(b.grants))
	for _, grant := range b.grants {
		copied := *grant
		copied.Capabilities = append([]Capability(nil), grant.Capabilities...)
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

// Disconnect removes every grant for origin. Unknown origins are a
// no-op.
func (b *Broker) Disconnect(origin string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.grants[origin]; !ok {
		return nil
	}
	delete(b.grants, origin)
	if err := b.persistLocked(); err != nil {
		return err
	}
	b.logger.Info("origin disconnected", zap.String("origin", origin))
	return nil
}

// RevokeCapability removes one capability from origin's grant. An
// origin left with no capabilities is fully disconnected.
func (b *Broker) RevokeCapability(origin string, c Capability) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	grant, ok := b.grants[origin]
	if !ok {
		return errs.ErrNotConnected
	}

	kept := grant.Capabilities[:0]
	for _, have := range grant.Capabilities {
		if have != c {
			kept = append(kept, have)
		}
	}
	grant.Capabilities = kept
	grant.LastAccessedAt = time.Now()

	if len(grant.Capabilities) == 0 {
		delete(b.grants, origin)
	}
	return b.persistLocked()
}

// Close rejects every pending negotiation so no caller blocks through
// shutdown.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	pending := make([]*pendingRequest, 0, len(b.pending))
	for _, req := range b.pending {
		pending = append(pending, req)
	}
	b.mu.Unlock()

	for _, req := range pending {
		req.fail(errs.PermissionDenied("wallet core shutting down"))
	}
}

// settle applies a finished negotiation's outcome.
func (b *Broker) settle(req *pendingRequest, out outcome) ([]Capability, error) {
	if out.err != nil {
		b.metrics.ApprovalOutcomes.WithLabelValues("timeout").Inc()
		b.logger.Info("approval expired",
			zap.String("request_id", req.id.String()),
			zap.String("origin", req.origin),
		)
		return nil, out.err
	}
	if !out.approved {
		b.metrics.ApprovalOutcomes.WithLabelValues("rejected").Inc()
		b.logger.Info("approval rejected",
			zap.String("request_id", req.id.String()),
			zap.String("origin", req.origin),
		)
		return nil, errs.PermissionDenied("user rejected request from %s", req.origin)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	grant, ok := b.grants[req.origin]
	if !ok {
		now := time.Now()
		grant = &SitePermission{Origin: req.origin, ConnectedAt: now, LastAccessedAt: now}
		if b.addressFn != nil {
			grant.Address = b.addressFn()
		}
		b.grants[req.origin] = grant
	}
	grant.merge(req.capabilities)

	if err := b.persistLocked(); err != nil {
		return nil, err
	}

	b.metrics.ApprovalOutcomes.WithLabelValues("approved").Inc()
	b.logger.Info("approval granted",
		zap.String("request_id", req.id.String()),
		zap.String("origin", req.origin),
	)
	return append([]Capability(nil), grant.Capabilities...), nil
}

func (b *Broker) removePending(reqID id.RequestID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, reqID)
	b.metrics.ApprovalsPending.Set(float64(len(b.pending)))
}

// persistLocked writes the grant table through to disk. Caller holds
// b.mu.
func (b *Broker) persistLocked() error {
	b.metrics.GrantedOrigins.Set(float64(len(b.grants)))
	return b.store.Save(b.grants)
}
