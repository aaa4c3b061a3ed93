// Package agent defines the contract every research role implements and
// the executor that runs roles and turns their failures into data.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Status is the outcome of one role execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is what a role returns to the workflow.
type Result struct {
	Role      runstate.Role       `json:"role"`
	Status    Status              `json:"status"`
	Payload   json.RawMessage     `json:"payload,omitempty"`
	Artifacts []string            `json:"artifacts,omitempty"`
	Metrics   map[string]float64  `json:"metrics,omitempty"`
	Citations []runstate.Citation `json:"citations,omitempty"`
	Degraded  bool                `json:"degraded,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Completed builds a completed Result with payload encoded as JSON.
func Completed(role runstate.Role, payload any) (Result, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode %s payload: %w", role, err)
	}
	return Result{Role: role, Status: StatusCompleted, Payload: raw, Timestamp: time.Now()}, nil
}

// Input is the role-specific input plus the shared context.
type Input struct {
	Tasks  []string
	Shared *Shared
}

// Agent is a black-box role implementation. Expected domain failures
// (an unreachable URL, an empty API response) belong in the payload;
// an error means the role could not do its job.
type Agent interface {
	Role() runstate.Role
	Execute(ctx context.Context, in Input) (Result, error)
}

// Degrader is implemented by roles that can produce a reduced result when
// Execute fails.
type Degrader interface {
	Degrade(ctx context.Context, in Input, cause error) (Result, error)
}

// Shared is the context bag handed to every role. Roles read prior outputs
// and append citations and metrics; they never touch the run state.
type Shared struct {
	SessionID    string
	UserRequest  string
	Requirements runstate.Requirements
	Outputs      map[runstate.Role]runstate.Output
	// Citations collected by earlier roles, in arrival order.
	Citations []runstate.Citation

	mu        sync.Mutex
	citations []runstate.Citation
	metrics   map[string]float64
}

// NewShared builds the shared context from a run snapshot.
func NewShared(s *runstate.RunState) *Shared {
	snap := s.Clone()
	return &Shared{
		SessionID:    snap.SessionID,
		UserRequest:  snap.UserRequest,
		Requirements: snap.Requirements,
		Outputs:      snap.Outputs,
		Citations:    snap.Citations,
		metrics:      map[string]float64{},
	}
}

// Prior decodes the output of role into v. It reports false when the role
// has not written an output or the payload does not decode.
func (s *Shared) Prior(role runstate.Role, v any) bool {
	out, ok := s.Outputs[role]
	if !ok || out.Empty() {
		return false
	}
	return out.Decode(v) == nil
}

// AddCitation records a citation for the running role.
func (s *Shared) AddCitation(c runstate.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.citations = append(s.citations, c)
}

// AddMetric accumulates a numeric metric for the running role.
func (s *Shared) AddMetric(name string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics == nil {
		s.metrics = map[string]float64{}
	}
	s.metrics[name] += v
}

// drain returns and clears collected citations and metrics.
func (s *Shared) drain() ([]runstate.Citation, map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, m := s.citations, s.metrics
	s.citations, s.metrics = nil, map[string]float64{}
	return c, m
}
