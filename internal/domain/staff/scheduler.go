package staff

import (
	"fmt"
	"strings"
	"time"

	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/triage"
)

// Config carries the scheduler's tunable limits.
type Config struct {
	MaxPatientsPerDoctor int
	MaxPatientsPerNurse  int
	// FatigueThresholdHours is the hard threshold; at or past it a caregiver
	// is excluded from new rank-1 assignment unless no alternative exists.
	FatigueThresholdHours float64
	// FatigueWarningHours is the approaching-fatigue threshold.
	FatigueWarningHours float64
}

// DefaultConfig matches standard ward staffing limits.
func DefaultConfig() Config {
	return Config{
		MaxPatientsPerDoctor:  5,
		MaxPatientsPerNurse:   8,
		FatigueThresholdHours: 12,
		FatigueWarningHours:   10,
	}
}

// fatigueModerateHours is the shift length at which the first suitability
// deduction applies.
const fatigueModerateHours = 6

// Scheduler owns every staff load and fatigue transition. Assignment picks
// the caregiver with the highest suitability score for the patient.
type Scheduler struct {
	staff    *Repository
	patients *patient.Repository
	audit    *audit.Log
	cfg      Config
	now      func() time.Time
}

func NewScheduler(staff *Repository, patients *patient.Repository, auditLog *audit.Log, cfg Config) *Scheduler {
	return &Scheduler{staff: staff, patients: patients, audit: auditLog, cfg: cfg, now: time.Now}
}

// Staff exposes the underlying store for observation.
func (s *Scheduler) Staff() *Repository { return s.staff }

func (s *Scheduler) loadCap(role Role) int {
	switch role {
	case RoleDoctor:
		return s.cfg.MaxPatientsPerDoctor
	case RoleNurse:
		return s.cfg.MaxPatientsPerNurse
	default:
		return s.cfg.MaxPatientsPerDoctor
	}
}

func (s *Scheduler) fatiguePenalty(hours float64) int {
	switch {
	case hours >= s.cfg.FatigueThresholdHours:
		return 30
	case hours >= s.cfg.FatigueWarningHours:
		return 20
	case hours >= fatigueModerateHours:
		return 10
	default:
		return 0
	}
}

// Suitability scores a (caregiver, patient) pair on a 0..100 scale. Higher
// is better. Fatigue is recomputed from the clock on every call.
func (s *Scheduler) Suitability(c *Staff, p *patient.Patient, rank int) int {
	score := 100

	cap := s.loadCap(c.Role)
	if cap > 0 {
		score -= int(float64(c.Load()) / float64(cap) * 40)
	}

	hours := c.HoursOnShift(s.now())
	score -= s.fatiguePenalty(hours)

	if c.Specialization != "" &&
		strings.Contains(strings.ToLower(p.Diagnosis), strings.ToLower(c.Specialization)) {
		score += 20
	}

	// A tired caregiver is a poor match for a resuscitation case even before
	// the hard threshold.
	if rank == triage.RankResuscitation && hours >= s.cfg.FatigueWarningHours {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// AssignDoctor picks and binds the most suitable doctor for the patient.
func (s *Scheduler) AssignDoctor(p *patient.Patient) (*Staff, error) {
	return s.assign(p, RoleDoctor)
}

// AssignNurse picks and binds the most suitable nurse for the patient.
func (s *Scheduler) AssignNurse(p *patient.Patient) (*Staff, error) {
	return s.assign(p, RoleNurse)
}

func (s *Scheduler) assign(p *patient.Patient, role Role) (*Staff, error) {
	rank := triage.Classify(p)
	now := s.now()
	cap := s.loadCap(role)

	var candidates []*Staff
	for _, c := range s.staff.ListByRole(role) {
		if !c.Status.OnDuty() || c.Load() >= cap {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no on-duty %s under load cap: %w", strings.ToLower(string(role)), ErrCapacityExhausted)
	}

	// Rank-1 patients exclude fatigued caregivers first; the exclusion is
	// relaxed rather than leaving the patient unassigned.
	pool := candidates
	if rank == triage.RankResuscitation {
		rested := make([]*Staff, 0, len(candidates))
		for _, c := range candidates {
			if c.HoursOnShift(now) < s.cfg.FatigueThresholdHours {
				rested = append(rested, c)
			}
		}
		if len(rested) > 0 {
			pool = rested
		} else {
			s.audit.Record("FATIGUE_WARNING",
				fmt.Sprintf("all %ss fatigued, relaxing exclusion for critical patient %s", strings.ToLower(string(role)), p.Name),
				map[string]any{"patient_id": p.ID, "role": string(role)})
		}
	}

	best := pool[0]
	bestScore := s.Suitability(best, p, rank)
	for _, c := range pool[1:] {
		score := s.Suitability(c, p, rank)
		if score > bestScore || (score == bestScore && c.ID < best.ID) {
			best, bestScore = c, score
		}
	}

	if err := s.staff.Update(best.ID, func(c *Staff) {
		c.PatientIDs = append(c.PatientIDs, p.ID)
		c.Status = StatusBusy
	}); err != nil {
		return nil, err
	}
	if err := s.patients.Update(p.ID, func(pp *patient.Patient) {
		switch role {
		case RoleDoctor:
			pp.DoctorID = best.ID
		case RoleNurse:
			pp.NurseID = best.ID
		}
	}); err != nil {
		// Patient vanished between selection and binding; undo the load.
		_ = s.staff.Update(best.ID, func(c *Staff) { removePatient(c, p.ID) })
		return nil, err
	}

	s.audit.Record("STAFF_ASSIGNED",
		fmt.Sprintf("%s %s assigned to %s (suitability %d)", role, best.Name, p.Name, bestScore),
		map[string]any{
			"staff_id":    best.ID,
			"patient_id":  p.ID,
			"role":        string(role),
			"suitability": bestScore,
		})

	best.PatientIDs = append(best.PatientIDs, p.ID)
	best.Status = StatusBusy
	return best, nil
}

// Unassign clears the patient from both caregiver load lists, typically on
// discharge. Missing references are ignored.
func (s *Scheduler) Unassign(p *patient.Patient) {
	for _, staffID := range []string{p.DoctorID, p.NurseID} {
		if staffID == "" {
			continue
		}
		_ = s.staff.Update(staffID, func(c *Staff) { removePatient(c, p.ID) })
	}
}

func removePatient(c *Staff, patientID string) {
	kept := c.PatientIDs[:0]
	for _, id := range c.PatientIDs {
		if id != patientID {
			kept = append(kept, id)
		}
	}
	c.PatientIDs = kept
	if len(c.PatientIDs) == 0 && c.Status == StatusBusy {
		c.Status = StatusAvailable
	}
}

// PunchIn starts a caregiver's shift.
func (s *Scheduler) PunchIn(staffID string) error {
	now := s.now()
	var name string
	if err := s.staff.Update(staffID, func(c *Staff) {
		c.ShiftStart = now
		c.Status = StatusAvailable
		name = c.Name
	}); err != nil {
		return err
	}
	s.audit.Record("STAFF_PUNCH_IN", fmt.Sprintf("%s started shift", name),
		map[string]any{"staff_id": staffID})
	return nil
}

// PunchOut ends a caregiver's shift. Every patient referencing the caregiver
// is cleared before the caregiver is marked off duty so no dangling
// reference survives the punch-out.
func (s *Scheduler) PunchOut(staffID string) error {
	c, err := s.staff.Get(staffID)
	if err != nil {
		return err
	}

	for _, p := range s.patients.List() {
		if p.DoctorID != staffID && p.NurseID != staffID {
			continue
		}
		_ = s.patients.Update(p.ID, func(pp *patient.Patient) {
			if pp.DoctorID == staffID {
				pp.DoctorID = ""
			}
			if pp.NurseID == staffID {
				pp.NurseID = ""
			}
		})
	}

	if err := s.staff.Update(staffID, func(cc *Staff) {
		cc.Status = StatusOffDuty
		cc.PatientIDs = nil
	}); err != nil {
		return err
	}

	s.audit.Record("STAFF_PUNCH_OUT",
		fmt.Sprintf("%s ended shift after %.1f hours", c.Name, c.HoursOnShift(s.now())),
		map[string]any{"staff_id": staffID, "released_patients": len(c.PatientIDs)})
	return nil
}

// Fatigued returns on-duty caregivers at or past the warning threshold,
// ordered by id.
func (s *Scheduler) Fatigued() []*Staff {
	now := s.now()
	var out []*Staff
	for _, c := range s.staff.List() {
		if c.Status.OnDuty() && c.HoursOnShift(now) >= s.cfg.FatigueWarningHours {
			out = append(out, c)
		}
	}
	return out
}

// AvailableByRole counts on-duty caregivers of a role below their load cap.
func (s *Scheduler) AvailableByRole(role Role) int {
	cap := s.loadCap(role)
	n := 0
	for _, c := range s.staff.ListByRole(role) {
		if c.Status.OnDuty() && c.Load() < cap {
			n++
		}
	}
	return n
}
