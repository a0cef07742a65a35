package permission

import (
	"sync"
	"time"

	"github.com/lumenbrowser/lumen/backend/internal/shared/id"
)

// outcome is the terminal result of one approval negotiation.
type outcome struct {
	approved bool
	err      error
}

// pendingRequest tracks one in-flight approval. Exactly one of resolve
// or fail wins; later calls are no-ops, so a user decision racing the
// timeout can never double-settle the request.
type pendingRequest struct {
	id           id.RequestID
	origin       string
	capabilities []Capability
	createdAt    time.Time

	once  sync.Once
	done  chan outcome
	timer *time.Timer
}

func newPendingRequest(origin string, caps []Capability) *pendingRequest {
	return &pendingRequest{
		id:           id.NewRequestID(),
		origin:       origin,
		capabilities: caps,
		createdAt:    time.Now(),
		done:         make(chan outcome, 1),
	}
}

// resolve settles the request with the user's decision.
func (p *pendingRequest) resolve(approved bool) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done <- outcome{approved: approved}
	})
}

// fail settles the request with an error (timeout or shutdown).
func (p *pendingRequest) fail(err error) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done <- outcome{err: err}
	})
}
