package patient

import (
	"fmt"
	"time"
)

// Status is the clinical status of a patient. It is a closed set; code that
// switches on Status must handle every value.
type Status string

const (
	StatusCritical   Status = "Critical"
	StatusSerious    Status = "Serious"
	StatusStable     Status = "Stable"
	StatusRecovering Status = "Recovering"
	StatusDischarged Status = "Discharged"
)

// ParseStatus converts a wire string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCritical, StatusSerious, StatusStable, StatusRecovering, StatusDischarged:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown patient status %q", s)
}

// Acuity orders statuses from most acute (0) to least acute. Discharged sorts
// last.
func (s Status) Acuity() int {
	switch s {
	case StatusCritical:
		return 0
	case StatusSerious:
		return 1
	case StatusStable:
		return 2
	case StatusRecovering:
		return 3
	default:
		return 4
	}
}

// Vitals is the most recent vital-sign reading for a patient.
type Vitals struct {
	SpO2          float64 `json:"spo2"`
	HeartRate     int     `json:"heart_rate"`
	BloodPressure string  `json:"blood_pressure"`
	Temperature   float64 `json:"temperature"` // Fahrenheit
}

// Patient is an admitted patient. Bed and caregiver references are owned by
// the bed allocator and staff scheduler respectively; vitals are written by
// the ingestion path.
type Patient struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Age           int       `json:"age"`
	Diagnosis     string    `json:"diagnosis"`
	Status        Status    `json:"status"`
	StatusFloor   Status    `json:"status_floor"` // last human-set status; auto transitions never demote below it
	Vitals        Vitals    `json:"vitals"`
	BedID         string    `json:"bed_id,omitempty"`
	DoctorID      string    `json:"doctor_id,omitempty"`
	NurseID       string    `json:"nurse_id,omitempty"`
	AdmissionTime time.Time `json:"admission_time"`
}

// Clone returns a copy that callers can mutate without holding the store lock.
func (p *Patient) Clone() *Patient {
	cp := *p
	return &cp
}
