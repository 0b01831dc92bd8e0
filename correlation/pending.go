package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

// Entry describes a call being registered.
// A zero Timeout disables the registry timer; the caller's context still bounds the wait.
type Entry struct {
	CorrelationID string
	Destination   string
	Operation     string
	Timeout       time.Duration
}

// Outcome is the single resolution of a pending call.
// Err is nil on a success reply.
type Outcome struct {
	Reply rpc.Reply
	Err   error
}

// PendingCall is the registry's record of a request awaiting its reply.
// It is completed exactly once; duplicate completions are ignored.
type PendingCall struct {
	entry     Entry
	createdAt time.Time
	timer     *time.Timer // guarded by the owning registry's mutex

	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newPendingCall(e Entry, now time.Time) *PendingCall {
	return &PendingCall{entry: e, createdAt: now, done: make(chan struct{})}
}

func (p *PendingCall) ID() string { return p.entry.CorrelationID }

func (p *PendingCall) Destination() string { return p.entry.Destination }

func (p *PendingCall) Operation() string { return p.entry.Operation }

func (p *PendingCall) Timeout() time.Duration { return p.entry.Timeout }

func (p *PendingCall) CreatedAt() time.Time { return p.createdAt }

// Done is closed once the call is resolved.
func (p *PendingCall) Done() <-chan struct{} { return p.done }

// Wait blocks until the call resolves or ctx is done.
// On ctx expiry it returns ctx.Err() and leaves the call registered; callers
// deregister it with Registry.Cancel.
func (p *PendingCall) Wait(ctx context.Context) (rpc.Reply, error) {
	select {
	case <-p.done:
		return p.outcome.Reply, p.outcome.Err
	case <-ctx.Done():
		return rpc.Reply{}, ctx.Err()
	}
}

// Result returns the outcome without blocking; ok is false while pending.
func (p *PendingCall) Result() (Outcome, bool) {
	select {
	case <-p.done:
		return p.outcome, true
	default:
		return Outcome{}, false
	}
}

func (p *PendingCall) complete(o Outcome) bool {
	completed := false
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
		completed = true
	})

	return completed
}
