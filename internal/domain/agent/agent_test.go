package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/bed"
	"github.com/vitalflow/vitalflow/internal/domain/decision"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/staff"
)

type capturedAlert struct {
	severity, target, message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []capturedAlert
}

func (n *recordingNotifier) Alert(severity, target, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, capturedAlert{severity, target, message})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type world struct {
	patients  *patient.Repository
	pool      *bed.Pool
	allocator *bed.Allocator
	scheduler *staff.Scheduler
	gate      *decision.Gate
	audit     *audit.Log
	notifier  *recordingNotifier
	agent     *Agent
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		patients: patient.NewRepository(),
		pool:     bed.NewPool(),
		gate:     decision.NewGate(),
		audit:    audit.NewLog(zerolog.New(io.Discard)),
		notifier: &recordingNotifier{},
	}
	w.allocator = bed.NewAllocator(w.pool, w.patients, w.audit)
	w.scheduler = staff.NewScheduler(staff.NewRepository(), w.patients, w.audit, staff.DefaultConfig())
	w.agent = New(w.patients, w.allocator, w.scheduler, w.gate, w.audit, w.notifier,
		zerolog.New(io.Discard), Config{Interval: 10 * time.Millisecond, ICUCapacityThreshold: 80})
	return w
}

func (w *world) addBed(t *testing.T, id string, class bed.Class, occupant string) {
	t.Helper()
	b := &bed.Bed{ID: id, Class: class}
	if occupant != "" {
		b.Occupied = true
		b.PatientID = occupant
	}
	if err := w.pool.Add(b); err != nil {
		t.Fatal(err)
	}
}

func (w *world) addPatient(t *testing.T, id string, status patient.Status, bedID string) {
	t.Helper()
	p := &patient.Patient{
		ID: id, Name: "Patient " + id, Status: status, BedID: bedID,
		Vitals: patient.Vitals{SpO2: 96, HeartRate: 80, Temperature: 98.6},
	}
	if status == patient.StatusCritical {
		p.Vitals = patient.Vitals{SpO2: 82, HeartRate: 150, Temperature: 98.6}
	}
	if err := w.patients.Add(p); err != nil {
		t.Fatal(err)
	}
}

func (w *world) addDoctor(t *testing.T, id string) {
	t.Helper()
	err := w.scheduler.Staff().Add(&staff.Staff{
		ID: id, Name: "Dr " + id, Role: staff.RoleDoctor,
		Status: staff.StatusAvailable, ShiftStart: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCycleQueuesSwapForApproval(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "ICU-01", bed.ClassICU, "P-OCC")
	w.addPatient(t, "P-OCC", patient.StatusStable, "ICU-01")
	w.addPatient(t, "P-CRIT", patient.StatusCritical, "")

	res := w.agent.RunCycle()
	if res.PendingApprovals == 0 {
		t.Fatal("swap decision should be pending approval")
	}

	pending := w.agent.PendingApprovals()
	var swap *decision.Decision
	for _, d := range pending {
		if d.Action == decision.ActionSwapBeds && d.Target == "P-CRIT" {
			swap = d
		}
	}
	if swap == nil {
		t.Fatalf("no SwapBeds decision pending, got %+v", pending)
	}
	if swap.State != decision.StatePendingApproval {
		t.Errorf("pending decision in state %s", swap.State)
	}

	// Nothing moved without approval.
	p, _ := w.patients.Get("P-CRIT")
	if p.BedID != "" {
		t.Errorf("gated swap executed without approval, bed %s", p.BedID)
	}
}

func TestApproveExecutesSwap(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "ICU-01", bed.ClassICU, "P-OCC")
	w.addBed(t, "GEN-01", bed.ClassGeneral, "")
	w.addPatient(t, "P-OCC", patient.StatusStable, "ICU-01")
	w.addPatient(t, "P-CRIT", patient.StatusCritical, "")

	w.agent.RunCycle()
	pending := w.agent.PendingApprovals()
	var id uuid.UUID
	for _, d := range pending {
		if d.Action == decision.ActionSwapBeds {
			id = d.ID
		}
	}
	if id == uuid.Nil {
		t.Fatal("no pending swap")
	}

	d, err := w.agent.Approve(id, "dr.adams")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if d.State != decision.StateExecuted || d.ApprovedBy != "dr.adams" {
		t.Errorf("approved decision: %+v", d)
	}

	p, _ := w.patients.Get("P-CRIT")
	if p.BedID != "ICU-01" {
		t.Errorf("critical patient in bed %q, want ICU-01", p.BedID)
	}
	evicted, _ := w.patients.Get("P-OCC")
	if evicted.BedID != "GEN-01" {
		t.Errorf("evicted patient in bed %q, want GEN-01", evicted.BedID)
	}

	// Approving the executed decision again is a lifecycle violation.
	if _, err := w.agent.Approve(id, "dr.baker"); !errors.Is(err, decision.ErrInvalidTransition) {
		t.Errorf("re-approve: want ErrInvalidTransition, got %v", err)
	}
}

func TestRejectRecordsWithoutExecuting(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "ICU-01", bed.ClassICU, "P-OCC")
	w.addBed(t, "GEN-01", bed.ClassGeneral, "")
	w.addPatient(t, "P-OCC", patient.StatusStable, "ICU-01")
	w.addPatient(t, "P-CRIT", patient.StatusCritical, "")

	w.agent.RunCycle()
	id := w.agent.PendingApprovals()[0].ID

	d, err := w.agent.Reject(id, "dr.baker", "family requested transfer instead")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if d.State != decision.StateRejected {
		t.Errorf("state = %s, want Rejected", d.State)
	}

	p, _ := w.patients.Get("P-CRIT")
	if p.BedID != "" {
		t.Error("rejected swap still moved the patient")
	}
	if _, err := w.agent.Reject(id, "dr.baker", "again"); !errors.Is(err, decision.ErrInvalidTransition) {
		t.Errorf("re-reject: want ErrInvalidTransition, got %v", err)
	}
}

func TestApproveUnknownDecision(t *testing.T) {
	w := newWorld(t)
	if _, err := w.agent.Approve(uuid.New(), "dr.adams"); !errors.Is(err, decision.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestCycleAssignsStaffAutomatically(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "GEN-01", bed.ClassGeneral, "P1")
	w.addPatient(t, "P1", patient.StatusStable, "GEN-01")
	w.addDoctor(t, "D1")

	res := w.agent.RunCycle()
	if res.DecisionsExecuted == 0 {
		t.Fatal("expected an auto-executed staff assignment")
	}
	p, _ := w.patients.Get("P1")
	if p.DoctorID != "D1" {
		t.Errorf("doctor not assigned, got %q", p.DoctorID)
	}
}

// An unchanged condition already acted upon must not produce a second wave
// of decisions on the next cycle.
func TestSecondCycleIsQuietWithoutStateChange(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "ICU-01", bed.ClassICU, "P-OCC")
	w.addPatient(t, "P-OCC", patient.StatusStable, "ICU-01")
	w.addPatient(t, "P-CRIT", patient.StatusCritical, "")
	w.addDoctor(t, "D1")

	first := w.agent.RunCycle()
	if first.DecisionsMade == 0 {
		t.Fatal("first cycle made no decisions")
	}
	alertsAfterFirst := w.notifier.count()

	second := w.agent.RunCycle()
	if second.DecisionsMade != 0 {
		t.Errorf("second cycle made %d decisions for unchanged conditions", second.DecisionsMade)
	}
	if second.DecisionsExecuted != 0 {
		t.Errorf("second cycle executed %d decisions", second.DecisionsExecuted)
	}
	if w.notifier.count() != alertsAfterFirst {
		t.Error("duplicate alerts for an unchanged condition")
	}
}

func TestConcernClearsWhenConditionDoes(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "GEN-01", bed.ClassGeneral, "P1")
	w.addPatient(t, "P1", patient.StatusStable, "GEN-01")
	w.addDoctor(t, "D1")

	w.agent.RunCycle() // assigns D1
	if err := w.scheduler.PunchOut("D1"); err != nil {
		t.Fatal(err)
	}
	// With no doctor on duty the cycle proposes nothing for P1, so the
	// stale dedup key is dropped.
	w.agent.RunCycle()
	if err := w.scheduler.PunchIn("D1"); err != nil {
		t.Fatal(err)
	}

	// The patient lost the doctor on punch-out; the concern returned with
	// the condition, so a new decision fires.
	res := w.agent.RunCycle()
	if res.DecisionsExecuted == 0 {
		t.Fatal("condition returned but no new decision was made")
	}
	p, _ := w.patients.Get("P1")
	if p.DoctorID != "D1" {
		t.Errorf("doctor not reassigned, got %q", p.DoctorID)
	}
}

// Crossing from the watch threshold to full ICU is a new condition; the
// earlier informational decision must not mask the candidate-naming warning.
func TestFullICUEscalatesPastWatchThreshold(t *testing.T) {
	w := newWorld(t)
	for i, id := range []string{"ICU-01", "ICU-02", "ICU-03", "ICU-04"} {
		pid := "P" + string(rune('1'+i))
		w.addBed(t, id, bed.ClassICU, pid)
		w.addPatient(t, pid, patient.StatusStable, id)
	}
	w.addBed(t, "ICU-05", bed.ClassICU, "")

	// 4 of 5 occupied: at the watch threshold, informational only.
	first := w.agent.RunCycle()
	if first.DecisionsMade == 0 {
		t.Fatal("watch threshold crossing made no decision")
	}

	// The last bed fills; the ICU is now saturated.
	w.addPatient(t, "P5", patient.StatusStable, "")
	if err := w.allocator.AssignBed("P5", "ICU-05"); err != nil {
		t.Fatal(err)
	}
	second := w.agent.RunCycle()
	if second.DecisionsMade == 0 {
		t.Fatal("full ICU suppressed by the earlier watch decision")
	}

	var warned bool
	for _, e := range w.audit.Recent(0) {
		if e.Action != "AGENT_DECISION" || e.Details["severity"] != string(decision.SeverityWarning) {
			continue
		}
		if details, ok := e.Details["details"].(map[string]any); ok {
			if _, ok := details["swap_candidate"]; ok {
				warned = true
			}
		}
	}
	if !warned {
		t.Error("saturation warning does not name a swap candidate")
	}

	// Saturation unchanged: the warning is not repeated.
	third := w.agent.RunCycle()
	if third.DecisionsMade != 0 {
		t.Errorf("third cycle made %d decisions for unchanged saturation", third.DecisionsMade)
	}
}

func TestFullICUWithoutCandidateProposesDiversion(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "ICU-01", bed.ClassICU, "P1")
	w.addPatient(t, "P1", patient.StatusCritical, "ICU-01")

	w.agent.RunCycle()
	var divert *decision.Decision
	for _, d := range w.agent.PendingApprovals() {
		if d.Action == decision.ActionDivertHospital {
			divert = d
		}
	}
	if divert == nil {
		t.Fatal("full ICU with no swap candidate should propose diversion")
	}
	if !divert.RequiresApproval {
		t.Error("diversion must always be gated")
	}
}

func TestLoopStartStop(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "GEN-01", bed.ClassGeneral, "P1")
	w.addPatient(t, "P1", patient.StatusStable, "GEN-01")
	w.addDoctor(t, "D1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.agent.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	if err := w.agent.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	p, _ := w.patients.Get("P1")
	if p.DoctorID == "" {
		t.Error("background loop never ran a cycle")
	}

	// Stop is idempotent.
	if err := w.agent.Stop(time.Second); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestAuditTrailCarriesDecisions(t *testing.T) {
	w := newWorld(t)
	w.addBed(t, "GEN-01", bed.ClassGeneral, "P1")
	w.addPatient(t, "P1", patient.StatusStable, "GEN-01")
	w.addDoctor(t, "D1")

	w.agent.RunCycle()

	var found bool
	for _, e := range w.audit.Recent(0) {
		if e.Action == "AGENT_DECISION" {
			found = true
			if e.Details["decision_id"] == "" {
				t.Error("decision entry missing id")
			}
		}
	}
	if !found {
		t.Error("no AGENT_DECISION entries on the audit trail")
	}
}
