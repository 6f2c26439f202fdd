// Package agent runs the autonomous decision cycle. Every cycle walks the
// same five phases in order: observe the stores, reason concerns into
// decision records, order them by severity, act (execute or park for
// approval), and explain each one on the audit trail.
package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/bed"
	"github.com/vitalflow/vitalflow/internal/domain/decision"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/protocol"
	"github.com/vitalflow/vitalflow/internal/domain/staff"
	"github.com/vitalflow/vitalflow/internal/domain/triage"
	"github.com/vitalflow/vitalflow/internal/platform/notify"
)

// Config carries the agent's tunables.
type Config struct {
	// Interval between autonomous cycles.
	Interval time.Duration
	// ICUCapacityThreshold is the occupancy percentage at which the agent
	// starts flagging saturation.
	ICUCapacityThreshold float64
}

func DefaultConfig() Config {
	return Config{Interval: 5 * time.Second, ICUCapacityThreshold: 80}
}

// Agent is the autonomous decision maker. It never mutates the stores
// directly; every intervention goes through the allocator or scheduler and
// leaves a decision record behind.
type Agent struct {
	patients  *patient.Repository
	allocator *bed.Allocator
	scheduler *staff.Scheduler
	gate      *decision.Gate
	audit     *audit.Log
	notifier  notify.Notifier
	logger    zerolog.Logger
	cfg       Config

	// cycleMu serializes cycles; the background loop skips a tick rather
	// than queue behind a slow manual trigger.
	cycleMu sync.Mutex

	mu        sync.Mutex
	concerns  map[string]uuid.UUID
	decisions map[uuid.UUID]*decision.Decision

	stop chan struct{}
	done chan struct{}
}

func New(
	patients *patient.Repository,
	allocator *bed.Allocator,
	scheduler *staff.Scheduler,
	gate *decision.Gate,
	auditLog *audit.Log,
	notifier notify.Notifier,
	logger zerolog.Logger,
	cfg Config,
) *Agent {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ICUCapacityThreshold <= 0 {
		cfg.ICUCapacityThreshold = DefaultConfig().ICUCapacityThreshold
	}
	return &Agent{
		patients:  patients,
		allocator: allocator,
		scheduler: scheduler,
		gate:      gate,
		audit:     auditLog,
		notifier:  notifier,
		logger:    logger.With().Str("component", "agent").Logger(),
		cfg:       cfg,
		concerns:  make(map[string]uuid.UUID),
		decisions: make(map[uuid.UUID]*decision.Decision),
	}
}

// Observation is the read-only snapshot a cycle reasons over.
type Observation struct {
	Occupancy             map[bed.Class]bed.Occupancy
	UnplacedUrgent        []*patient.Patient
	MisplacedResus        []*patient.Patient
	NeedsDoctor           []*patient.Patient
	NeedsNurse            []*patient.Patient
	CriticalWithoutDoctor []*patient.Patient
	Fatigued              []*staff.Staff
	DoctorsAvailable      int
	NursesAvailable       int
}

// Observe snapshots urgency, placement, occupancy and staffing. It holds no
// locks across stores; each store is read independently.
func (a *Agent) Observe() *Observation {
	obs := &Observation{
		Occupancy:        a.allocator.Pool().OccupancyByClass(),
		DoctorsAvailable: a.scheduler.AvailableByRole(staff.RoleDoctor),
		NursesAvailable:  a.scheduler.AvailableByRole(staff.RoleNurse),
		Fatigued:         a.scheduler.Fatigued(),
	}

	for _, p := range a.patients.List() {
		if p.Status == patient.StatusDischarged {
			continue
		}
		rank := triage.Classify(p)

		if p.BedID == "" && rank <= triage.RankEmergency {
			obs.UnplacedUrgent = append(obs.UnplacedUrgent, p)
		}
		if p.BedID != "" && rank == triage.RankResuscitation {
			if b, err := a.allocator.Pool().Get(p.BedID); err == nil && b.Class != bed.ClassICU {
				obs.MisplacedResus = append(obs.MisplacedResus, p)
			}
		}
		if p.DoctorID == "" {
			obs.NeedsDoctor = append(obs.NeedsDoctor, p)
			if p.Status == patient.StatusCritical {
				obs.CriticalWithoutDoctor = append(obs.CriticalWithoutDoctor, p)
			}
		}
		if p.NurseID == "" {
			obs.NeedsNurse = append(obs.NeedsNurse, p)
		}
	}
	return obs
}

// Reason turns observed concerns into decision records. Concerns already
// acted on (or pending) produce nothing until the condition clears.
func (a *Agent) Reason(obs *Observation) []*decision.Decision {
	var candidates []*decision.Decision

	for _, p := range obs.UnplacedUrgent {
		candidates = append(candidates, decision.New(
			decision.ActionSwapBeds, decision.SeverityCritical, p.ID,
			fmt.Sprintf("%s (rank %d) has no bed; preemptive reallocation needed", p.Name, triage.Classify(p)),
			map[string]any{"patient_id": p.ID, "rank": triage.Classify(p)}))
	}
	for _, p := range obs.MisplacedResus {
		candidates = append(candidates, decision.New(
			decision.ActionSwapBeds, decision.SeverityCritical, p.ID,
			fmt.Sprintf("%s is rank 1 but not in an ICU bed", p.Name),
			map[string]any{"patient_id": p.ID, "current_bed": p.BedID}))
	}

	if icu, ok := obs.Occupancy[bed.ClassICU]; ok && icu.Total > 0 {
		rate := icu.Rate()
		switch {
		case rate >= 100:
			if cand, score, found := a.allocator.SwapCandidate(bed.ClassICU); found {
				candidates = append(candidates, decision.New(
					decision.ActionObserveOnly, decision.SeverityWarning, "ICU",
					fmt.Sprintf("ICU full; %s (stability %d/100) is the pre-identified swap candidate", cand.Name, score),
					map[string]any{"occupancy": rate, "swap_candidate": cand.ID, "stability_score": score}))
			} else {
				candidates = append(candidates, decision.New(
					decision.ActionDivertHospital, decision.SeverityCritical, "ICU",
					"ICU full with no stable occupant to downgrade; incoming critical cases should be diverted",
					map[string]any{"occupancy": rate}))
			}
		case rate >= a.cfg.ICUCapacityThreshold:
			candidates = append(candidates, decision.New(
				decision.ActionObserveOnly, decision.SeverityInfo, "ICU",
				fmt.Sprintf("ICU occupancy at %.0f%%, above the %.0f%% watch threshold", rate, a.cfg.ICUCapacityThreshold),
				map[string]any{"occupancy": rate}))
		}
	}

	assigned := make(map[string]bool)
	for _, p := range obs.NeedsDoctor {
		if obs.DoctorsAvailable == 0 {
			break
		}
		candidates = append(candidates, a.assignStaffDecision(p))
		assigned[p.ID] = true
	}
	for _, p := range obs.NeedsNurse {
		if obs.NursesAvailable == 0 {
			break
		}
		if assigned[p.ID] {
			continue
		}
		candidates = append(candidates, a.assignStaffDecision(p))
	}

	for _, p := range obs.CriticalWithoutDoctor {
		proto, ok := protocol.ForPatient(p)
		if !ok {
			continue
		}
		candidates = append(candidates, decision.New(
			decision.ActionAlertStaff, decision.SeverityCritical, p.ID,
			fmt.Sprintf("%s protocol for %s: destination %s, first action: %s",
				proto.Type, p.Name, proto.Destination, proto.ImmediateActions[0]),
			map[string]any{"patient_id": p.ID, "protocol": string(proto.Type), "destination": proto.Destination}))
	}

	for _, c := range obs.Fatigued {
		candidates = append(candidates, decision.New(
			decision.ActionAlertStaff, decision.SeverityWarning, c.ID,
			fmt.Sprintf("%s %s is approaching fatigue limits", c.Role, c.Name),
			map[string]any{"staff_id": c.ID}))
	}

	return a.dedupe(candidates)
}

// assignStaffDecision covers the doctor and nurse gap for one patient.
func (a *Agent) assignStaffDecision(p *patient.Patient) *decision.Decision {
	sev := decision.SeverityWarning
	if triage.Classify(p) <= triage.RankEmergency {
		sev = decision.SeverityUrgent
	}
	return decision.New(
		decision.ActionAssignStaff, sev, p.ID,
		fmt.Sprintf("%s has no assigned caregiver and capacity exists", p.Name),
		map[string]any{"patient_id": p.ID, "needs_doctor": p.DoctorID == "", "needs_nurse": p.NurseID == ""})
}

// dedupe drops candidates whose concern is already live and prunes concerns
// whose condition has cleared.
func (a *Agent) dedupe(candidates []*decision.Decision) []*decision.Decision {
	active := make(map[string]bool, len(candidates))
	for _, d := range candidates {
		active[d.ConcernKey()] = true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.concerns {
		if !active[key] {
			delete(a.concerns, key)
		}
	}
	fresh := candidates[:0]
	for _, d := range candidates {
		if _, live := a.concerns[d.ConcernKey()]; live {
			continue
		}
		fresh = append(fresh, d)
	}
	return fresh
}

// Decide orders decisions for the Act phase: severity first, then creation
// time.
func (a *Agent) Decide(decisions []*decision.Decision) []*decision.Decision {
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].Severity.Rank() != decisions[j].Severity.Rank() {
			return decisions[i].Severity.Rank() < decisions[j].Severity.Rank()
		}
		return decisions[i].CreatedAt.Before(decisions[j].CreatedAt)
	})
	return decisions
}

// Act executes or parks one decision and reports whether it executed.
func (a *Agent) Act(d *decision.Decision) (executed bool) {
	a.track(d)

	if d.RequiresApproval && d.ApprovedBy == "" {
		if err := a.gate.Enqueue(d); err != nil {
			a.logger.Error().Err(err).Str("decision_id", d.ID.String()).Msg("enqueue failed")
			return false
		}
		a.explain(d, "queued for approval")
		return false
	}

	outcome := a.execute(d)
	if err := d.MarkAutoExecuted(outcome); err != nil {
		a.logger.Error().Err(err).Str("decision_id", d.ID.String()).Msg("mark executed failed")
	}
	a.explain(d, outcome)
	return true
}

// execute performs the store mutation (or alert) behind a decision and
// returns the outcome text. Failures are outcomes, not panics; the decision
// trail records them either way.
func (a *Agent) execute(d *decision.Decision) string {
	switch d.Action {
	case decision.ActionSwapBeds:
		p, err := a.patients.Get(d.Target)
		if err != nil {
			return fmt.Sprintf("failed: %v", err)
		}
		msg, err := a.allocator.ExecuteSwap(p)
		if err != nil {
			return fmt.Sprintf("failed: %v", err)
		}
		return msg

	case decision.ActionAssignStaff:
		p, err := a.patients.Get(d.Target)
		if err != nil {
			return fmt.Sprintf("failed: %v", err)
		}
		var parts []string
		if p.DoctorID == "" {
			if doc, err := a.scheduler.AssignDoctor(p); err == nil {
				parts = append(parts, "doctor "+doc.ID)
			} else {
				parts = append(parts, fmt.Sprintf("doctor unavailable: %v", err))
			}
		}
		if p.NurseID == "" {
			if nurse, err := a.scheduler.AssignNurse(p); err == nil {
				parts = append(parts, "nurse "+nurse.ID)
			} else {
				parts = append(parts, fmt.Sprintf("nurse unavailable: %v", err))
			}
		}
		if len(parts) == 0 {
			return "no gap remained at execution time"
		}
		return "assigned: " + strings.Join(parts, ", ")

	case decision.ActionAlertStaff, decision.ActionDivertHospital:
		a.notifier.Alert(string(d.Severity), d.Target, d.Reason)
		return "alert dispatched"

	case decision.ActionObserveOnly:
		return "noted"

	default:
		return fmt.Sprintf("failed: unknown action %s", d.Action)
	}
}

// explain writes the human-readable justification and the full decision
// payload to the audit trail.
func (a *Agent) explain(d *decision.Decision, outcome string) {
	a.audit.Record("AGENT_DECISION",
		fmt.Sprintf("[%s] %s: %s (%s)", d.Severity, d.Action, d.Reason, outcome),
		map[string]any{
			"decision_id":       d.ID.String(),
			"action":            string(d.Action),
			"severity":          string(d.Severity),
			"target":            d.Target,
			"state":             string(d.State),
			"requires_approval": d.RequiresApproval,
			"outcome":           outcome,
			"details":           d.Details,
		})
}

func (a *Agent) track(d *decision.Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.concerns[d.ConcernKey()] = d.ID
	a.decisions[d.ID] = d
}

// CycleResult summarizes one agent cycle.
type CycleResult struct {
	DecisionsMade     int `json:"decisions_made"`
	DecisionsExecuted int `json:"decisions_executed"`
	PendingApprovals  int `json:"pending_approvals"`
}

// RunCycle performs one full observe-reason-decide-act-explain pass. It is
// the manual trigger; it blocks until any in-flight cycle completes.
func (a *Agent) RunCycle() CycleResult {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	return a.runCycle()
}

func (a *Agent) runCycle() CycleResult {
	obs := a.Observe()
	decisions := a.Decide(a.Reason(obs))

	var res CycleResult
	res.DecisionsMade = len(decisions)
	for _, d := range decisions {
		if a.Act(d) {
			res.DecisionsExecuted++
		}
	}
	res.PendingApprovals = a.gate.Len()

	a.logger.Debug().
		Int("made", res.DecisionsMade).
		Int("executed", res.DecisionsExecuted).
		Int("pending", res.PendingApprovals).
		Msg("cycle complete")
	return res
}

// Decision returns a copy of a tracked decision.
func (a *Agent) Decision(id uuid.UUID) (*decision.Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.decisions[id]
	if !ok {
		return nil, decision.ErrNotFound
	}
	return d.Clone(), nil
}

// PendingApprovals lists decisions waiting for a human.
func (a *Agent) PendingApprovals() []*decision.Decision {
	return a.gate.List()
}
