package runstate

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the coarse lifecycle label of a run.
type Status string

const (
	StatusInitialized         Status = "initialized"
	StatusCostEstimated       Status = "cost_estimated"
	StatusStrategyCreated     Status = "strategy_created"
	StatusStructureCreated    Status = "structure_created"
	StatusWebResearchComplete Status = "web_research_complete"
	StatusAPIResearchComplete Status = "api_research_complete"
	StatusAPIResearchSkipped  Status = "api_research_skipped"
	StatusAnalysisComplete    Status = "analysis_complete"
	StatusContentComplete     Status = "llm_content_complete"
	StatusContentDegraded     Status = "llm_content_degraded"
	StatusCompleted           Status = "completed"
	StatusError               Status = "error"
)

// IsTerminal reports whether no further nodes run after this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrorKind classifies an ErrorRecord.
type ErrorKind string

const (
	ErrorKindRole     ErrorKind = "role_failure"
	ErrorKindGate     ErrorKind = "gate_inconsistency"
	ErrorKindPlanning ErrorKind = "planning"
	ErrorKindBudget   ErrorKind = "budget"
	ErrorKindIO       ErrorKind = "io"
)

// ErrorRecord is a failure captured as data on the run.
type ErrorRecord struct {
	Role      Role           `json:"role"`
	Kind      ErrorKind      `json:"kind"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Citation is a source reference collected while researching.
type Citation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      Role      `json:"source"`
	Snippet     string    `json:"snippet,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Output is the result a role wrote to the run. It is written once.
type Output struct {
	Payload    json.RawMessage    `json:"payload,omitempty"`
	Artifacts  []string           `json:"artifacts,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	ProducedAt time.Time          `json:"produced_at"`
}

// NewOutput encodes v as the payload of an Output.
func NewOutput(v any, at time.Time) (Output, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Output{}, fmt.Errorf("failed to encode output payload: %w", err)
	}
	return Output{Payload: raw, ProducedAt: at}, nil
}

// Decode unmarshals the payload into v.
func (o Output) Decode(v any) error {
	if len(o.Payload) == 0 {
		return fmt.Errorf("output has no payload")
	}
	return json.Unmarshal(o.Payload, v)
}

// Empty reports whether the output carries no payload.
func (o Output) Empty() bool {
	return len(o.Payload) == 0 || string(o.Payload) == "null"
}

// RunState is the shared record for one report-generation session.
//
// Scalar identity fields are set at creation. Lists are append-only,
// Status and CurrentAgent are last-writer-wins, Completion merges key-wise,
// and RequiredRoles plus each entry of Outputs are written once.
// Mutations go through Apply.
type RunState struct {
	SessionID      string          `json:"session_id"`
	UserRequest    string          `json:"user_request"`
	Requirements   Requirements    `json:"requirements"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Status         Status          `json:"status"`
	CurrentAgent   Role            `json:"current_agent,omitempty"`
	CompletedTasks []string        `json:"completed_tasks"`
	Errors         []ErrorRecord   `json:"errors"`
	Citations      []Citation      `json:"citations"`
	Completion     map[Role]bool   `json:"completion"`
	RequiredRoles  []Role          `json:"required_roles,omitempty"`
	Outputs        map[Role]Output `json:"outputs"`
	AppliedUpdates []string        `json:"applied_updates,omitempty"`
}

// New returns a RunState in the initialized status.
func New(sessionID, userRequest string, req Requirements, now time.Time) *RunState {
	return &RunState{
		SessionID:      sessionID,
		UserRequest:    userRequest,
		Requirements:   req.Normalize(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         StatusInitialized,
		CompletedTasks: []string{},
		Errors:         []ErrorRecord{},
		Citations:      []Citation{},
		Completion:     map[Role]bool{},
		Outputs:        map[Role]Output{},
	}
}

// Output returns the output written by role, if any.
func (s *RunState) Output(role Role) (Output, bool) {
	out, ok := s.Outputs[role]
	return out, ok
}

// Progress returns the fraction of required roles marked complete.
func (s *RunState) Progress() float64 {
	if len(s.RequiredRoles) == 0 {
		if s.Status == StatusCompleted {
			return 1
		}
		return 0
	}
	done := 0
	for _, r := range s.RequiredRoles {
		if s.Completion[r] {
			done++
		}
	}
	return float64(done) / float64(len(s.RequiredRoles))
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.CompletedTasks = append([]string{}, s.CompletedTasks...)
	c.Errors = append([]ErrorRecord{}, s.Errors...)
	c.Citations = append([]Citation{}, s.Citations...)
	c.AppliedUpdates = append([]string(nil), s.AppliedUpdates...)
	if s.RequiredRoles != nil {
		c.RequiredRoles = append([]Role{}, s.RequiredRoles...)
	}
	c.Completion = make(map[Role]bool, len(s.Completion))
	for k, v := range s.Completion {
		c.Completion[k] = v
	}
	c.Outputs = make(map[Role]Output, len(s.Outputs))
	for k, v := range s.Outputs {
		v.Payload = append(json.RawMessage(nil), v.Payload...)
		v.Artifacts = append([]string(nil), v.Artifacts...)
		if v.Metrics != nil {
			m := make(map[string]float64, len(v.Metrics))
			for mk, mv := range v.Metrics {
				m[mk] = mv
			}
			v.Metrics = m
		}
		c.Outputs[k] = v
	}
	return &c
}
