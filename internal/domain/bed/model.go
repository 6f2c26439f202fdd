package bed

import "fmt"

// Class is the acuity class of a bed.
type Class string

const (
	ClassICU       Class = "ICU"
	ClassEmergency Class = "Emergency"
	ClassGeneral   Class = "General"
)

// ParseClass converts a wire string into a Class.
func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case ClassICU, ClassEmergency, ClassGeneral:
		return Class(s), nil
	}
	return "", fmt.Errorf("unknown bed class %q", s)
}

// Bed is a single slot in the resource pool. Invariant: Occupied iff
// PatientID != "", and the referenced patient's BedID points back here.
type Bed struct {
	ID        string `json:"id"`
	Class     Class  `json:"class"`
	Ward      string `json:"ward"`
	Occupied  bool   `json:"occupied"`
	PatientID string `json:"patient_id,omitempty"`
}

func (b *Bed) Clone() *Bed {
	cp := *b
	return &cp
}

// Occupancy summarises one class of the pool.
type Occupancy struct {
	Total     int `json:"total"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

// Rate returns the occupied percentage, 0 for an empty class.
func (o Occupancy) Rate() float64 {
	if o.Total == 0 {
		return 0
	}
	return float64(o.Occupied) / float64(o.Total) * 100
}
