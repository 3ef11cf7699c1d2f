// Package types defines the task data model stored in a flowsync vault.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedData is returned when a payload does not match the task schema.
var ErrMalformedData = errors.New("malformed task data")

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// ValidStatuses lists every task status in display order.
var ValidStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone, StatusBlocked}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// MarshalJSON refuses to encode unknown statuses.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("unknown task status %q", string(s))
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts only the known status tags.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !TaskStatus(raw).IsValid() {
		return fmt.Errorf("unknown task status %q", raw)
	}
	*s = TaskStatus(raw)
	return nil
}

// ParseStatus parses user input such as "todo" or "in-progress".
func ParseStatus(s string) (TaskStatus, error) {
	norm := TaskStatus(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !norm.IsValid() {
		return "", fmt.Errorf("invalid status '%s': must be todo, in_progress, done, or blocked", s)
	}
	return norm, nil
}

// TaskPriority is the severity of a task.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// ValidPriorities lists every priority from least to most severe.
var ValidPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Rank returns the severity of p (0 for low, 3 for critical) or -1 if p is unknown.
func (p TaskPriority) Rank() int {
	for i, v := range ValidPriorities {
		if v == p {
			return i
		}
	}
	return -1
}

// Less reports whether p is less severe than other.
func (p TaskPriority) Less(other TaskPriority) bool {
	return p.Rank() < other.Rank()
}

// IsValid reports whether p is one of the known priorities.
func (p TaskPriority) IsValid() bool {
	return p.Rank() >= 0
}

// MarshalJSON refuses to encode unknown priorities.
func (p TaskPriority) MarshalJSON() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("unknown task priority %q", string(p))
	}
	return json.Marshal(string(p))
}

// UnmarshalJSON accepts only the known priority tags.
func (p *TaskPriority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !TaskPriority(raw).IsValid() {
		return fmt.Errorf("unknown task priority %q", raw)
	}
	*p = TaskPriority(raw)
	return nil
}

// ParsePriority parses user input such as "high".
func ParsePriority(s string) (TaskPriority, error) {
	norm := TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	if !norm.IsValid() {
		return "", fmt.Errorf("invalid priority '%s': must be low, medium, high, or critical", s)
	}
	return norm, nil
}

// AIInsights is the analysis attached to a task by an external AI collaborator.
// Complexity uses an application-defined scale and is not range checked.
type AIInsights struct {
	Complexity          float64  `json:"complexity"`
	RecommendedSubtasks []string `json:"recommended_subtasks"`
	PotentialBlockers   []string `json:"potential_blockers"`
}

// Clone returns a deep copy of the insights.
func (a AIInsights) Clone() AIInsights {
	out := AIInsights{Complexity: a.Complexity}
	if a.RecommendedSubtasks != nil {
		out.RecommendedSubtasks = append([]string{}, a.RecommendedSubtasks...)
	}
	if a.PotentialBlockers != nil {
		out.PotentialBlockers = append([]string{}, a.PotentialBlockers...)
	}
	return out
}

// Task is a single unit of work. ID is assigned by the caller and never changes.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AIInsights  *AIInsights  `json:"ai_insights,omitempty"`
}

// Clone returns a deep copy of the task, including its insights.
func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.AIInsights != nil {
		ai := t.AIInsights.Clone()
		out.AIInsights = &ai
	}
	return out
}

// DescriptionOr returns the description, or def when it is absent.
func (t Task) DescriptionOr(def string) string {
	if t.Description == nil {
		return def
	}
	return *t.Description
}
