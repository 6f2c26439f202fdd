package agent

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalflow/vitalflow/internal/domain/decision"
)

// Approve takes a pending decision off the gate, stamps the approver, and
// re-runs only the Act step for that one decision. Approving a decision that
// already reached a terminal state fails with ErrInvalidTransition.
func (a *Agent) Approve(id uuid.UUID, approver string) (*decision.Decision, error) {
	d, err := a.takePending(id)
	if err != nil {
		return nil, err
	}

	outcome := a.execute(d)
	if err := d.MarkExecuted(approver, outcome); err != nil {
		return nil, err
	}
	a.explain(d, fmt.Sprintf("approved by %s: %s", approver, outcome))
	return d.Clone(), nil
}

// Reject takes a pending decision off the gate and records the rejection
// without executing anything.
func (a *Agent) Reject(id uuid.UUID, approver, reason string) (*decision.Decision, error) {
	d, err := a.takePending(id)
	if err != nil {
		return nil, err
	}

	if err := d.MarkRejected(approver, reason); err != nil {
		return nil, err
	}
	a.explain(d, fmt.Sprintf("rejected by %s: %s", approver, reason))
	return d.Clone(), nil
}

// takePending resolves the gate lookup, distinguishing an unknown id from a
// decision that already ran its course.
func (a *Agent) takePending(id uuid.UUID) (*decision.Decision, error) {
	d, err := a.gate.Take(id)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, decision.ErrNotFound) {
		return nil, err
	}

	a.mu.Lock()
	tracked, known := a.decisions[id]
	a.mu.Unlock()
	if known && tracked.State.Terminal() {
		return nil, fmt.Errorf("decision %s already %s: %w", id, tracked.State, decision.ErrInvalidTransition)
	}
	return nil, decision.ErrNotFound
}
