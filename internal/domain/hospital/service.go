// Package hospital is the facade over the allocation core. It owns the
// synchronous operations (admission, vitals ingestion, discharge, approvals)
// and wires them to the allocator, scheduler and agent.
package hospital

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalflow/vitalflow/internal/domain/agent"
	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/bed"
	"github.com/vitalflow/vitalflow/internal/domain/decision"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/staff"
	"github.com/vitalflow/vitalflow/internal/domain/triage"
)

// Service ties the stores and owning components together behind the calls
// the transport layer exposes.
type Service struct {
	patients  *patient.Repository
	allocator *bed.Allocator
	scheduler *staff.Scheduler
	agent     *agent.Agent
	audit     *audit.Log
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(
	patients *patient.Repository,
	allocator *bed.Allocator,
	scheduler *staff.Scheduler,
	ag *agent.Agent,
	auditLog *audit.Log,
	logger zerolog.Logger,
) *Service {
	return &Service{
		patients:  patients,
		allocator: allocator,
		scheduler: scheduler,
		agent:     ag,
		audit:     auditLog,
		logger:    logger.With().Str("component", "hospital").Logger(),
		now:       time.Now,
	}
}

// AllocationResult reports what admission secured for the patient.
type AllocationResult struct {
	PatientID string `json:"patient_id"`
	Rank      int    `json:"rank"`
	RankLabel string `json:"rank_label"`
	BedID     string `json:"bed_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
	NurseID   string `json:"nurse_id,omitempty"`
	Message   string `json:"message"`
}

// Admit registers a patient, triages them, and allocates a bed plus
// caregivers. Rank 1 and 2 arrivals go through the preemptive swap path;
// others take best-fit placement. Allocation failures leave the patient
// queued, not rejected.
func (s *Service) Admit(p *patient.Patient) (*AllocationResult, error) {
	if p.ID == "" || p.Name == "" {
		return nil, errors.New("patient id and name are required")
	}
	if p.Status == "" {
		p.Status = patient.StatusStable
	}
	p.StatusFloor = p.Status
	p.AdmissionTime = s.now()

	if err := s.patients.Add(p); err != nil {
		return nil, fmt.Errorf("admit %s: %w", p.ID, err)
	}

	rank := triage.Classify(p)
	res := &AllocationResult{PatientID: p.ID, Rank: rank, RankLabel: triage.RankLabel(rank)}

	if rank <= triage.RankEmergency {
		msg, err := s.allocator.ExecuteSwap(p)
		if err != nil && !errors.Is(err, bed.ErrAlreadyAssigned) {
			res.Message = fmt.Sprintf("no bed: %v", err)
		} else {
			res.Message = msg
		}
	} else {
		if b, err := s.allocator.FindBestBed(p); err == nil {
			if err := s.allocator.AssignBed(p.ID, b.ID); err == nil {
				res.Message = fmt.Sprintf("assigned to %s", b.ID)
			}
		} else {
			res.Message = "no beds currently available, patient queued"
		}
	}

	if doc, err := s.scheduler.AssignDoctor(p); err == nil {
		res.DoctorID = doc.ID
	}
	if nurse, err := s.scheduler.AssignNurse(p); err == nil {
		res.NurseID = nurse.ID
	}

	placed, err := s.patients.Get(p.ID)
	if err != nil {
		return nil, err
	}
	res.BedID = placed.BedID

	s.audit.Record("PATIENT_ADMITTED",
		fmt.Sprintf("%s admitted with rank %d (%s)", p.Name, rank, triage.RankLabel(rank)),
		map[string]any{
			"patient_id": p.ID,
			"rank":       rank,
			"diagnosis":  p.Diagnosis,
			"bed":        res.BedID,
			"doctor":     res.DoctorID,
			"nurse":      res.NurseID,
		})
	return res, nil
}

// VitalsResult reports what a vitals write changed.
type VitalsResult struct {
	PatientID     string         `json:"patient_id"`
	StatusChanged bool           `json:"status_changed"`
	OldStatus     patient.Status `json:"old_status"`
	NewStatus     patient.Status `json:"new_status"`
	OldRank       int            `json:"old_rank"`
	NewRank       int            `json:"new_rank"`
	BedChanged    bool           `json:"bed_changed"`
	BedID         string         `json:"bed_id,omitempty"`
}

// UpdateVitals ingests a reading, re-triages the patient, promotes status on
// dangerous vitals, and triggers a bed swap when a newly critical patient is
// outside the ICU. Status never auto-demotes below the last human-set floor.
func (s *Service) UpdateVitals(patientID string, v patient.Vitals) (*VitalsResult, error) {
	before, err := s.patients.Get(patientID)
	if err != nil {
		return nil, fmt.Errorf("update vitals for %s: %w", patientID, err)
	}

	res := &VitalsResult{
		PatientID: patientID,
		OldStatus: before.Status,
		OldRank:   triage.Classify(before),
	}

	var after *patient.Patient
	err = s.patients.Update(patientID, func(p *patient.Patient) {
		if v.SpO2 > 0 {
			p.Vitals.SpO2 = v.SpO2
		}
		if v.HeartRate > 0 {
			p.Vitals.HeartRate = v.HeartRate
		}
		if v.BloodPressure != "" {
			p.Vitals.BloodPressure = v.BloodPressure
		}
		if v.Temperature > 0 {
			p.Vitals.Temperature = v.Temperature
		}
		s.adjustStatus(p, res)
		after = p.Clone()
	})
	if err != nil {
		return nil, fmt.Errorf("update vitals for %s: %w", patientID, err)
	}

	res.NewStatus = after.Status
	res.NewRank = triage.Classify(after)
	res.BedID = after.BedID

	if res.StatusChanged && after.Status == patient.StatusCritical && after.BedID != "" {
		if b, err := s.allocator.Pool().Get(after.BedID); err == nil && b.Class != bed.ClassICU {
			if _, err := s.allocator.ExecuteSwap(after); err == nil {
				res.BedChanged = true
				moved, _ := s.patients.Get(patientID)
				res.BedID = moved.BedID
			}
		}
	}
	return res, nil
}

// adjustStatus applies the automatic status transitions for a fresh reading.
// Runs inside the patient store's write lock.
func (s *Service) adjustStatus(p *patient.Patient, res *VitalsResult) {
	isCritical := p.Vitals.SpO2 < triage.SpO2Critical ||
		p.Vitals.HeartRate < triage.HRCriticalLow ||
		p.Vitals.HeartRate > triage.HRCriticalHigh
	isSerious := p.Vitals.SpO2 < triage.SpO2Low ||
		p.Vitals.HeartRate < triage.HRLow ||
		p.Vitals.HeartRate > triage.HRHigh
	isRecovered := p.Vitals.SpO2 >= triage.SpO2Normal &&
		p.Vitals.HeartRate >= triage.HRNormalMin &&
		p.Vitals.HeartRate <= triage.HRNormalMax

	switch {
	case isCritical && p.Status != patient.StatusCritical:
		res.StatusChanged = true
		p.Status = patient.StatusCritical
		s.audit.Record("STATUS_UPGRADE_CRITICAL",
			fmt.Sprintf("%s auto-upgraded to Critical on dangerous vitals (SpO2 %.0f%%, HR %d)", p.Name, p.Vitals.SpO2, p.Vitals.HeartRate),
			map[string]any{"patient_id": p.ID, "spo2": p.Vitals.SpO2, "heart_rate": p.Vitals.HeartRate})

	case isSerious && p.Status != patient.StatusCritical && p.Status != patient.StatusSerious:
		res.StatusChanged = true
		p.Status = patient.StatusSerious
		s.audit.Record("STATUS_UPGRADE_SERIOUS",
			fmt.Sprintf("%s auto-upgraded to Serious on declining vitals (SpO2 %.0f%%, HR %d)", p.Name, p.Vitals.SpO2, p.Vitals.HeartRate),
			map[string]any{"patient_id": p.ID})

	case isRecovered && p.Status == patient.StatusSerious &&
		patient.StatusStable.Acuity() <= p.StatusFloor.Acuity():
		// Improvement may not demote below what a clinician set by hand.
		res.StatusChanged = true
		p.Status = patient.StatusStable
		s.audit.Record("STATUS_IMPROVEMENT",
			fmt.Sprintf("%s improved from Serious to Stable (SpO2 %.0f%%, HR %d)", p.Name, p.Vitals.SpO2, p.Vitals.HeartRate),
			map[string]any{"patient_id": p.ID})
	}
}

// SetStatus is the human override. It moves the status floor with it.
func (s *Service) SetStatus(patientID string, status patient.Status) error {
	err := s.patients.Update(patientID, func(p *patient.Patient) {
		p.Status = status
		p.StatusFloor = status
	})
	if err != nil {
		return fmt.Errorf("set status for %s: %w", patientID, err)
	}
	s.audit.Record("STATUS_SET",
		fmt.Sprintf("status of %s set to %s by clinician", patientID, status),
		map[string]any{"patient_id": patientID, "status": string(status)})
	return nil
}

// DischargeResult reports what discharge released.
type DischargeResult struct {
	PatientID string `json:"patient_id"`
	FreedBed  string `json:"freed_bed,omitempty"`
}

// Discharge releases the patient's bed and caregivers and removes them from
// the active set. A second call for the same id reports NotFound.
func (s *Service) Discharge(patientID, reason string) (*DischargeResult, error) {
	p, err := s.patients.Get(patientID)
	if err != nil {
		return nil, fmt.Errorf("discharge %s: %w", patientID, err)
	}

	res := &DischargeResult{PatientID: patientID, FreedBed: p.BedID}
	if p.BedID != "" {
		if err := s.allocator.ReleaseBed(p.BedID); err != nil {
			s.logger.Warn().Err(err).Str("bed_id", p.BedID).Msg("release on discharge")
		}
	}
	s.scheduler.Unassign(p)

	if err := s.patients.Remove(patientID); err != nil {
		return nil, fmt.Errorf("discharge %s: %w", patientID, err)
	}

	if reason == "" {
		reason = "Recovery"
	}
	s.audit.Record("PATIENT_DISCHARGED",
		fmt.Sprintf("%s discharged: %s", p.Name, reason),
		map[string]any{"patient_id": patientID, "reason": reason, "freed_bed": res.FreedBed})
	return res, nil
}

// GetPatient returns one active patient.
func (s *Service) GetPatient(patientID string) (*patient.Patient, error) {
	return s.patients.Get(patientID)
}

// QueueEntry is one row of the triage queue.
type QueueEntry struct {
	Patient   *patient.Patient `json:"patient"`
	Rank      int              `json:"rank"`
	RankLabel string           `json:"rank_label"`
}

// Queue returns active patients most urgent first, ties by admission time.
func (s *Service) Queue() []QueueEntry {
	list := s.patients.List()
	out := make([]QueueEntry, 0, len(list))
	for _, p := range list {
		rank := triage.Classify(p)
		out = append(out, QueueEntry{Patient: p, Rank: rank, RankLabel: triage.RankLabel(rank)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Patient.AdmissionTime.Before(out[j].Patient.AdmissionTime)
	})
	return out
}

// RunCycle triggers one agent cycle manually.
func (s *Service) RunCycle() agent.CycleResult {
	return s.agent.RunCycle()
}

// PendingApprovals lists decisions waiting for sign-off.
func (s *Service) PendingApprovals() []*decision.Decision {
	return s.agent.PendingApprovals()
}

// Approve executes a gated decision on behalf of the approver.
func (s *Service) Approve(id uuid.UUID, approver string) (*decision.Decision, error) {
	return s.agent.Approve(id, approver)
}

// Reject declines a gated decision.
func (s *Service) Reject(id uuid.UUID, approver, reason string) (*decision.Decision, error) {
	return s.agent.Reject(id, approver, reason)
}

// AuditLog returns up to limit recent audit entries.
func (s *Service) AuditLog(limit int) []audit.Entry {
	return s.audit.Recent(limit)
}

// AddBed registers a bed in the pool.
func (s *Service) AddBed(b *bed.Bed) error {
	if b.ID == "" {
		return errors.New("bed id is required")
	}
	if _, err := bed.ParseClass(string(b.Class)); err != nil {
		return err
	}
	return s.allocator.Pool().Add(b)
}

// Beds lists the bed inventory.
func (s *Service) Beds() []*bed.Bed {
	return s.allocator.Pool().List()
}

// AddStaff registers a caregiver. A fresh registration starts their shift.
func (s *Service) AddStaff(c *staff.Staff) error {
	if c.ID == "" || c.Name == "" {
		return errors.New("staff id and name are required")
	}
	if _, err := staff.ParseRole(string(c.Role)); err != nil {
		return err
	}
	if c.ShiftStart.IsZero() {
		c.ShiftStart = s.now()
	}
	return s.scheduler.Staff().Add(c)
}

// StaffList lists every caregiver.
func (s *Service) StaffList() []*staff.Staff {
	return s.scheduler.Staff().List()
}

// PunchIn starts a caregiver's shift.
func (s *Service) PunchIn(staffID string) error {
	return s.scheduler.PunchIn(staffID)
}

// PunchOut ends a caregiver's shift, clearing their patient references.
func (s *Service) PunchOut(staffID string) error {
	return s.scheduler.PunchOut(staffID)
}

// Stats summarizes the hospital for dashboards.
type Stats struct {
	ActivePatients int                         `json:"active_patients"`
	Occupancy      map[bed.Class]bed.Occupancy `json:"occupancy"`
	DoctorsFree    int                         `json:"doctors_free"`
	NursesFree     int                         `json:"nurses_free"`
	Pending        int                         `json:"pending_approvals"`
	AuditEntries   int                         `json:"audit_entries"`
}

func (s *Service) Stats() Stats {
	return Stats{
		ActivePatients: s.patients.Count(),
		Occupancy:      s.allocator.Pool().OccupancyByClass(),
		DoctorsFree:    s.scheduler.AvailableByRole(staff.RoleDoctor),
		NursesFree:     s.scheduler.AvailableByRole(staff.RoleNurse),
		Pending:        len(s.agent.PendingApprovals()),
		AuditEntries:   s.audit.Len(),
	}
}
