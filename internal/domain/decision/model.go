// Package decision holds the agent's decision records, their lifecycle state
// machine, and the approval gate for actions that need a human sign-off.
package decision

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown decision ids.
	ErrNotFound = errors.New("decision not found")
	// ErrInvalidTransition is returned when acting on a decision already in
	// a terminal state.
	ErrInvalidTransition = errors.New("invalid decision transition")
	// ErrApprovalRequired is returned when executing a gated decision that
	// has no approval.
	ErrApprovalRequired = errors.New("decision requires approval")
)

// Action is the kind of intervention a decision proposes.
type Action string

const (
	ActionSwapBeds       Action = "SwapBeds"
	ActionAssignStaff    Action = "AssignStaff"
	ActionAlertStaff     Action = "AlertStaff"
	ActionObserveOnly    Action = "ObserveOnly"
	ActionDivertHospital Action = "DivertHospital"
)

// Severity orders decisions for the Act phase.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityUrgent   Severity = "Urgent"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// Rank returns the sort weight; lower acts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityUrgent:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// State is a decision's lifecycle position.
type State string

const (
	StateCreated         State = "Created"
	StateAutoExecuted    State = "AutoExecuted"
	StatePendingApproval State = "PendingApproval"
	StateExecuted        State = "Executed"
	StateRejected        State = "Rejected"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAutoExecuted || s == StateExecuted || s == StateRejected
}

// Decision is one proposed (or taken) intervention. All state changes go
// through the Mark* methods so the lifecycle invariants hold.
type Decision struct {
	ID               uuid.UUID      `json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	Action           Action         `json:"action"`
	Severity         Severity       `json:"severity"`
	Target           string         `json:"target"`
	Reason           string         `json:"reason"`
	Details          map[string]any `json:"details,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	State            State          `json:"state"`
	ApprovedBy       string         `json:"approved_by,omitempty"`
	Outcome          string         `json:"outcome,omitempty"`
}

// New creates a decision in the Created state. SwapBeds and DivertHospital
// are always gated, whatever their severity.
func New(action Action, severity Severity, target, reason string, details map[string]any) *Decision {
	return &Decision{
		ID:               uuid.New(),
		CreatedAt:        time.Now(),
		Action:           action,
		Severity:         severity,
		Target:           target,
		Reason:           reason,
		Details:          details,
		RequiresApproval: action == ActionSwapBeds || action == ActionDivertHospital,
		State:            StateCreated,
	}
}

// ConcernKey identifies the condition this decision answers. Two decisions
// about the same action on the same target at the same severity are the same
// concern; a severity change is a new concern, so an escalating condition is
// never masked by its earlier, milder decision.
func (d *Decision) ConcernKey() string {
	return string(d.Action) + ":" + string(d.Severity) + ":" + d.Target
}

func (d *Decision) Clone() *Decision {
	cp := *d
	if d.Details != nil {
		cp.Details = make(map[string]any, len(d.Details))
		for k, v := range d.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}

func (d *Decision) transition(to State) error {
	ok := false
	switch d.State {
	case StateCreated:
		ok = to == StateAutoExecuted || to == StatePendingApproval ||
			to == StateExecuted || to == StateRejected
	case StatePendingApproval:
		ok = to == StateExecuted || to == StateRejected
	}
	if !ok {
		return fmt.Errorf("%s -> %s: %w", d.State, to, ErrInvalidTransition)
	}
	d.State = to
	return nil
}

// MarkAutoExecuted records an ungated execution.
func (d *Decision) MarkAutoExecuted(outcome string) error {
	if d.RequiresApproval {
		return ErrApprovalRequired
	}
	if err := d.transition(StateAutoExecuted); err != nil {
		return err
	}
	d.Outcome = outcome
	return nil
}

// MarkPending parks the decision for human approval.
func (d *Decision) MarkPending() error {
	return d.transition(StatePendingApproval)
}

// MarkExecuted records an approved execution.
func (d *Decision) MarkExecuted(approver, outcome string) error {
	if err := d.transition(StateExecuted); err != nil {
		return err
	}
	d.ApprovedBy = approver
	d.Outcome = outcome
	return nil
}

// MarkRejected records a rejection without execution.
func (d *Decision) MarkRejected(approver, reason string) error {
	if err := d.transition(StateRejected); err != nil {
		return err
	}
	d.ApprovedBy = approver
	d.Outcome = "rejected: " + reason
	return nil
}
