package events

import (
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Event is the base interface for all workflow events.
type Event interface {
	EventType() string
	Session() string
}

// Topic constants
const (
	TopicNode     = "node"
	TopicWorkflow = "workflow"
)

// Event type constants
const (
	EventTypeNodeStarted      = "node.started"
	EventTypeNodeCompleted    = "node.completed"
	EventTypeNodeFailed       = "node.failed"
	EventTypeWorkflowProgress = "workflow.progress"
	EventTypeWorkflowFinished = "workflow.finished"
)

// NodeStartedEvent is published when a graph node begins.
type NodeStartedEvent struct {
	SessionID string
	Node      string
	Role      runstate.Role
	Step      int
	Timestamp time.Time
}

func (e NodeStartedEvent) EventType() string { return EventTypeNodeStarted }
func (e NodeStartedEvent) Session() string   { return e.SessionID }

// NodeCompletedEvent is published when a node's update has been applied.
type NodeCompletedEvent struct {
	SessionID string
	Node      string
	Role      runstate.Role
	Status    runstate.Status
	Degraded  bool
	Duration  time.Duration
	Timestamp time.Time
}

func (e NodeCompletedEvent) EventType() string { return EventTypeNodeCompleted }
func (e NodeCompletedEvent) Session() string   { return e.SessionID }

// NodeFailedEvent is published when a node records an error.
type NodeFailedEvent struct {
	SessionID string
	Node      string
	Role      runstate.Role
	Kind      runstate.ErrorKind
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e NodeFailedEvent) EventType() string { return EventTypeNodeFailed }
func (e NodeFailedEvent) Session() string   { return e.SessionID }

// WorkflowProgressEvent is published after every applied update.
type WorkflowProgressEvent struct {
	SessionID string
	Status    runstate.Status
	Required  int
	Completed int
	Progress  float64
	Timestamp time.Time
}

func (e WorkflowProgressEvent) EventType() string { return EventTypeWorkflowProgress }
func (e WorkflowProgressEvent) Session() string   { return e.SessionID }

// WorkflowFinishedEvent is published once a session reaches a terminal
// status.
type WorkflowFinishedEvent struct {
	SessionID  string
	Status     runstate.Status
	Errors     int
	ReportPath string
	Duration   time.Duration
	Timestamp  time.Time
}

func (e WorkflowFinishedEvent) EventType() string { return EventTypeWorkflowFinished }
func (e WorkflowFinishedEvent) Session() string   { return e.SessionID }
