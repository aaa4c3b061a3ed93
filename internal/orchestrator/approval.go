package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vikasvdk5/WestBay/internal/cost"
)

// ApprovalRequest asks whether a session may spend its estimated cost.
type ApprovalRequest struct {
	SessionID  string
	Estimate   cost.Estimate
	responseCh chan approvalAnswer
}

type approvalAnswer struct {
	approved bool
	err      error
}

// DecideFunc answers an approval request.
type DecideFunc func(ctx context.Context, sessionID string, e cost.Estimate) (bool, error)

// ApprovalChannel serializes cost approvals onto a single handler
// goroutine, which suits a decider that talks to one terminal.
// It implements cost.Approver.
type ApprovalChannel struct {
	requests chan ApprovalRequest
	decide   DecideFunc
	done     chan struct{}
}

// NewApprovalChannel creates a channel with the given request buffer.
func NewApprovalChannel(bufferSize int, decide DecideFunc) *ApprovalChannel {
	return &ApprovalChannel{
		requests: make(chan ApprovalRequest, bufferSize),
		decide:   decide,
		done:     make(chan struct{}),
	}
}

// Start launches the handler goroutine. It runs until ctx is cancelled.
func (c *ApprovalChannel) Start(ctx context.Context) {
	go c.handle(ctx)
}

func (c *ApprovalChannel) handle(ctx context.Context) {
	defer close(c.done)
	defer c.rejectQueued(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			ok, err := c.decide(ctx, req.SessionID, req.Estimate)

			select {
			case <-ctx.Done():
				req.responseCh <- approvalAnswer{err: ctx.Err()}
				return
			default:
				req.responseCh <- approvalAnswer{approved: ok, err: err}
			}
		}
	}
}

// rejectQueued answers requests still buffered when the handler exits.
func (c *ApprovalChannel) rejectQueued(ctx context.Context) {
	for {
		select {
		case req := <-c.requests:
			req.responseCh <- approvalAnswer{err: ctx.Err()}
		default:
			return
		}
	}
}

// Approve submits an estimate and waits for the decision. It respects
// cancellation both while sending and while waiting, and fails with
// ErrApprovalClosed once the handler has stopped.
func (c *ApprovalChannel) Approve(ctx context.Context, sessionID string, e cost.Estimate) (bool, error) {
	responseCh := make(chan approvalAnswer, 1)
	req := ApprovalRequest{SessionID: sessionID, Estimate: e, responseCh: responseCh}

	select {
	case c.requests <- req:
	case <-c.done:
		return false, ErrApprovalClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ans := <-responseCh:
		return ans.approved, ans.err
	case <-c.done:
		// The handler may have answered just before exiting.
		select {
		case ans := <-responseCh:
			return ans.approved, ans.err
		default:
			return false, ErrApprovalClosed
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Stop blocks until the handler goroutine has exited.
func (c *ApprovalChannel) Stop() {
	<-c.done
}

var (
	// ErrNoPendingApproval is returned when resolving a session that is
	// not waiting for approval.
	ErrNoPendingApproval = errors.New("no pending approval for session")
	// ErrApprovalPending is returned when a session asks twice.
	ErrApprovalPending = errors.New("approval already pending for session")
	// ErrApprovalClosed is returned by an ApprovalChannel whose handler
	// has stopped.
	ErrApprovalClosed = errors.New("approval channel stopped")
)

// PendingApproval describes a session waiting for a decision.
type PendingApproval struct {
	SessionID string        `json:"session_id"`
	Estimate  cost.Estimate `json:"estimate"`
	Since     time.Time     `json:"since"`
}

type pendingEntry struct {
	PendingApproval
	decision chan bool
}

// PendingApprovals parks approval requests until someone resolves them,
// for example through the REST API. Each session waits independently.
// It implements cost.Approver.
type PendingApprovals struct {
	// Timeout bounds how long a request waits. Zero waits until the
	// caller's context ends.
	Timeout time.Duration

	mu      sync.Mutex
	waiting map[string]*pendingEntry
	now     func() time.Time
}

// NewPendingApprovals creates an empty set of pending approvals.
func NewPendingApprovals(timeout time.Duration) *PendingApprovals {
	return &PendingApprovals{Timeout: timeout, waiting: map[string]*pendingEntry{}, now: time.Now}
}

// Approve parks the request and blocks until Resolve, the timeout, or ctx.
// A timeout counts as a rejection.
func (p *PendingApprovals) Approve(ctx context.Context, sessionID string, e cost.Estimate) (bool, error) {
	entry := &pendingEntry{
		PendingApproval: PendingApproval{SessionID: sessionID, Estimate: e, Since: p.now()},
		decision:        make(chan bool, 1),
	}
	p.mu.Lock()
	if _, ok := p.waiting[sessionID]; ok {
		p.mu.Unlock()
		return false, ErrApprovalPending
	}
	p.waiting[sessionID] = entry
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.waiting[sessionID] == entry {
			delete(p.waiting, sessionID)
		}
		p.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if p.Timeout > 0 {
		t := time.NewTimer(p.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case ok := <-entry.decision:
		return ok, nil
	case <-timeout:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers a decision for sessionID.
func (p *PendingApprovals) Resolve(sessionID string, approve bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.waiting[sessionID]
	if !ok {
		return ErrNoPendingApproval
	}
	delete(p.waiting, sessionID)
	entry.decision <- approve
	return nil
}

// List returns the pending approvals, oldest first.
func (p *PendingApprovals) List() []PendingApproval {
	p.mu.Lock()
	out := make([]PendingApproval, 0, len(p.waiting))
	for _, e := range p.waiting {
		out = append(out, e.PendingApproval)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out
}
