package staff

import (
	"fmt"
	"time"
)

// Role is the clinical role of a caregiver.
type Role string

const (
	RoleDoctor Role = "Doctor"
	RoleNurse  Role = "Nurse"
	RoleOther  Role = "Other"
)

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDoctor, RoleNurse, RoleOther:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown staff role %q", s)
}

// Status is the duty state of a caregiver.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusBusy      Status = "Busy"
	StatusOnBreak   Status = "OnBreak"
	StatusOffDuty   Status = "OffDuty"
)

// OnDuty reports whether the caregiver can take new assignments.
func (s Status) OnDuty() bool {
	return s == StatusAvailable || s == StatusBusy
}

// Staff is a single caregiver. PatientIDs is the current load list; it is
// written only through the Scheduler.
type Staff struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	Specialization string    `json:"specialization,omitempty"`
	Status         Status    `json:"status"`
	ShiftStart     time.Time `json:"shift_start"`
	PatientIDs     []string  `json:"patient_ids,omitempty"`
}

func (s *Staff) Clone() *Staff {
	cp := *s
	cp.PatientIDs = append([]string(nil), s.PatientIDs...)
	return &cp
}

// HoursOnShift is the fatigue input. It is recomputed from the clock on
// every call, never cached.
func (s *Staff) HoursOnShift(now time.Time) float64 {
	if s.ShiftStart.IsZero() || s.Status == StatusOffDuty {
		return 0
	}
	return now.Sub(s.ShiftStart).Hours()
}

// Load is the number of patients currently assigned.
func (s *Staff) Load() int { return len(s.PatientIDs) }
