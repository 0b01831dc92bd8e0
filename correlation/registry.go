package correlation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/metrics"
)

// DefaultMaxInFlight caps outstanding calls per destination.
const DefaultMaxInFlight = 1024

// Registry maps correlation ids to pending calls.
// It is safe for concurrent use and may be shared by proxies of several destinations.
type Registry struct {
	mu       sync.Mutex
	pending  map[string]*PendingCall
	perDest  map[string]int
	maxPer   int
	closed   bool
	closeErr error

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for late replies and invariant violations.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records in-flight and late reply metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Registry) { r.metrics = m } }

// WithMaxInFlight caps pending calls per destination; n <= 0 disables the cap.
func WithMaxInFlight(n int) Option { return func(r *Registry) { r.maxPer = n } }

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		pending: make(map[string]*PendingCall),
		perDest: make(map[string]int),
		maxPer:  DefaultMaxInFlight,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Register inserts a pending call for e.CorrelationID and arms its timer.
func (r *Registry) Register(e Entry) (*PendingCall, error) {
	if e.CorrelationID == "" {
		return nil, fmt.Errorf("register %s: empty correlation id: %w", e.Operation, berr.ErrInvalidCorrelation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("register %s: %w", e.Operation, r.closeErr)
	}

	if _, exists := r.pending[e.CorrelationID]; exists {
		r.logger.Error("duplicate correlation id",
			"correlation_id", e.CorrelationID,
			"destination", e.Destination,
			"operation", e.Operation,
		)

		return nil, &berr.DuplicateCorrelationError{CorrelationID: e.CorrelationID}
	}

	if r.maxPer > 0 && r.perDest[e.Destination] >= r.maxPer {
		return nil, fmt.Errorf("register %s on %q (%d in flight): %w",
			e.Operation, e.Destination, r.perDest[e.Destination], berr.ErrCapacityExceeded)
	}

	p := newPendingCall(e, r.now())
	r.pending[e.CorrelationID] = p
	r.perDest[e.Destination]++
	r.metrics.AddInFlight(e.Destination, 1)

	if e.Timeout > 0 {
		p.timer = time.AfterFunc(e.Timeout, func() { r.expire(p) })
	}

	return p, nil
}

// Resolve completes the pending call matching reply.CorrelationID.
// A failure reply completes it with a *RemoteError. Unknown ids are logged and
// counted as late replies; Resolve reports whether a call was completed.
func (r *Registry) Resolve(reply rpc.Reply) bool {
	p, ok := r.take(reply.CorrelationID, nil)
	if !ok {
		r.logger.Warn("unexpected or late reply discarded",
			"correlation_id", reply.CorrelationID,
			"status", string(reply.Status),
		)
		r.metrics.RecordLateReply()

		return false
	}

	if reply.Status == rpc.StatusFailure {
		eb := reply.Failure()

		return p.complete(Outcome{Reply: reply, Err: &berr.RemoteError{
			Operation:     p.Operation(),
			CorrelationID: p.ID(),
			Code:          eb.Code,
			Message:       eb.Message,
			Details:       eb.Details,
		}})
	}

	return p.complete(Outcome{Reply: reply})
}

// Expire completes the pending call with a *TimeoutError if it is still registered.
func (r *Registry) Expire(correlationID string) bool {
	p, ok := r.take(correlationID, nil)
	if !ok {
		return false
	}

	return r.timeout(p)
}

// expire is the timer path; it only removes the exact call that armed the timer.
func (r *Registry) expire(p *PendingCall) {
	if _, ok := r.take(p.ID(), p); ok {
		r.timeout(p)
	}
}

func (r *Registry) timeout(p *PendingCall) bool {
	r.logger.Debug("pending call expired",
		"correlation_id", p.ID(),
		"destination", p.Destination(),
		"operation", p.Operation(),
		"timeout", p.Timeout(),
	)

	return p.complete(Outcome{Err: &berr.TimeoutError{
		Operation:     p.Operation(),
		CorrelationID: p.ID(),
		After:         p.Timeout(),
	}})
}

// Cancel removes the pending call and completes it with cause.
// A reply arriving afterwards is treated as late.
func (r *Registry) Cancel(correlationID string, cause error) bool {
	p, ok := r.take(correlationID, nil)
	if !ok {
		return false
	}

	return p.complete(Outcome{Err: cause})
}

// Close fails every pending call with ErrClosed (joined with err when given)
// and rejects later registrations.
func (r *Registry) Close(err error) {
	cause := berr.ErrClosed
	if err != nil {
		cause = fmt.Errorf("%w: %w", berr.ErrClosed, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	r.closed = true
	r.closeErr = cause
	victims := make([]*PendingCall, 0, len(r.pending))

	for id, p := range r.pending {
		victims = append(victims, p)
		r.removeLocked(id, p)
	}
	r.mu.Unlock()

	for _, p := range victims {
		p.complete(Outcome{Err: cause})
	}
}

// Len returns the number of pending calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// InFlight returns the number of pending calls for destination.
func (r *Registry) InFlight(destination string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.perDest[destination]
}

// take removes the call registered under id. When want is non-nil the entry is
// only removed if it is that exact call.
func (r *Registry) take(id string, want *PendingCall) (*PendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if !ok || (want != nil && p != want) {
		return nil, false
	}

	r.removeLocked(id, p)

	return p, true
}

func (r *Registry) removeLocked(id string, p *PendingCall) {
	delete(r.pending, id)

	if p.timer != nil {
		p.timer.Stop()
	}

	dest := p.Destination()
	if r.perDest[dest] <= 1 {
		delete(r.perDest, dest)
	} else {
		r.perDest[dest]--
	}

	r.metrics.AddInFlight(dest, -1)
}
