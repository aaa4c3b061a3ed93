package runstate

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrWriteOnce is returned when an update tries to overwrite a write-once field.
var ErrWriteOnce = errors.New("write-once field already set")

// Update is a partial change returned by a workflow node.
//
// Updates carrying an ID are applied at most once per run, so replaying a
// node's update does not duplicate list entries.
type Update struct {
	ID             string
	Status         Status
	CurrentAgent   Role
	CompletedTasks []string
	Errors         []ErrorRecord
	Citations      []Citation
	Completion     map[Role]bool
	RequiredRoles  []Role
	Outputs        map[Role]Output
	At             time.Time
}

// TakeLast returns next when it is non-empty, otherwise prev.
func TakeLast[T ~string](prev, next T) T {
	if next == "" {
		return prev
	}
	return next
}

// MergeCompletion merges two completion maps: the union of keys, with the
// right-hand value winning on shared keys. Neither input is modified.
func MergeCompletion(left, right map[Role]bool) map[Role]bool {
	out := make(map[Role]bool, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}
	for k, v := range right {
		out[k] = v
	}
	return out
}

// AllComplete reports whether every required role is marked complete and
// returns the missing roles in required order.
func AllComplete(required []Role, completion map[Role]bool) (bool, []Role) {
	var missing []Role
	for _, r := range required {
		if !completion[r] {
			missing = append(missing, r)
		}
	}
	return len(missing) == 0, missing
}

// Apply merges u into s. A write-once violation rejects the whole update
// and leaves s unchanged.
func (s *RunState) Apply(u Update) error {
	if u.ID != "" && slices.Contains(s.AppliedUpdates, u.ID) {
		return nil
	}

	if u.RequiredRoles != nil && s.RequiredRoles != nil && !slices.Equal(u.RequiredRoles, s.RequiredRoles) {
		return fmt.Errorf("required roles: %w", ErrWriteOnce)
	}
	for role, out := range u.Outputs {
		if prev, ok := s.Outputs[role]; ok && !bytes.Equal(prev.Payload, out.Payload) {
			return fmt.Errorf("output of %s: %w", role, ErrWriteOnce)
		}
	}

	s.Status = TakeLast(s.Status, u.Status)
	s.CurrentAgent = TakeLast(s.CurrentAgent, u.CurrentAgent)
	s.CompletedTasks = append(s.CompletedTasks, u.CompletedTasks...)
	s.Errors = append(s.Errors, u.Errors...)
	s.Citations = append(s.Citations, u.Citations...)
	if len(u.Completion) > 0 {
		s.Completion = MergeCompletion(s.Completion, u.Completion)
	}
	if u.RequiredRoles != nil && s.RequiredRoles == nil {
		s.RequiredRoles = append([]Role{}, u.RequiredRoles...)
	}
	if len(u.Outputs) > 0 && s.Outputs == nil {
		s.Outputs = make(map[Role]Output, len(u.Outputs))
	}
	for role, out := range u.Outputs {
		if _, ok := s.Outputs[role]; !ok {
			s.Outputs[role] = out
		}
	}
	if u.At.After(s.UpdatedAt) {
		s.UpdatedAt = u.At
	}
	if u.ID != "" {
		s.AppliedUpdates = append(s.AppliedUpdates, u.ID)
	}
	return nil
}
