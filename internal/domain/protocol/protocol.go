// Package protocol holds the strict, pre-defined emergency protocol table.
// Detection maps a patient onto one of these entries; nothing here is ever
// synthesized at runtime.
package protocol

import (
	"strings"

	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/triage"
)

// Type identifies a medical emergency with a defined protocol.
type Type string

const (
	TypeHeartAttack        Type = "Heart Attack (MI)"
	TypeStroke             Type = "Stroke"
	TypeRespiratoryFailure Type = "Respiratory Failure"
	TypeSepsis             Type = "Sepsis"
	TypeCardiacArrest      Type = "Cardiac Arrest"
	TypeTrauma             Type = "Trauma/Bleeding"
	TypeAnaphylaxis        Type = "Anaphylaxis"
	TypeDiabeticEmergency  Type = "Diabetic Emergency"
	TypeSeizure            Type = "Seizure"
)

// Protocol is one pre-defined emergency response.
type Protocol struct {
	Type              Type     `json:"type"`
	Priority          int      `json:"priority"`
	Destination       string   `json:"destination"`
	TimeCritical      bool     `json:"time_critical"`
	GoldenHourMinutes int      `json:"golden_hour_minutes,omitempty"`
	ImmediateActions  []string `json:"immediate_actions"`
}

var table = map[Type]Protocol{
	TypeHeartAttack: {
		Type: TypeHeartAttack, Priority: 1, Destination: "ICU / Cath Lab",
		TimeCritical: true, GoldenHourMinutes: 90,
		ImmediateActions: []string{
			"Call CODE STEMI if ST elevation",
			"Establish IV access immediately",
			"12-lead ECG within 10 minutes",
			"Continuous cardiac monitoring",
		},
	},
	TypeStroke: {
		Type: TypeStroke, Priority: 1, Destination: "ICU / Stroke Unit",
		TimeCritical: true, GoldenHourMinutes: 270,
		ImmediateActions: []string{
			"FAST assessment (Face, Arms, Speech, Time)",
			"Note exact time of symptom onset",
			"CT scan STAT to rule out hemorrhage",
			"Neuro checks every 15 minutes",
		},
	},
	TypeRespiratoryFailure: {
		Type: TypeRespiratoryFailure, Priority: 1, Destination: "ICU",
		TimeCritical: true,
		ImmediateActions: []string{
			"High-flow oxygen immediately",
			"Position upright if possible",
			"Nebulized bronchodilators",
			"Prepare for intubation if worsening",
		},
	},
	TypeSepsis: {
		Type: TypeSepsis, Priority: 1, Destination: "ICU",
		TimeCritical: true, GoldenHourMinutes: 60,
		ImmediateActions: []string{
			"Draw blood cultures before antibiotics",
			"Administer antibiotics within 1 hour",
			"Aggressive fluid resuscitation",
			"Measure serum lactate",
		},
	},
	TypeCardiacArrest: {
		Type: TypeCardiacArrest, Priority: 1, Destination: "ICU",
		TimeCritical: true, GoldenHourMinutes: 10,
		ImmediateActions: []string{
			"Start CPR immediately, 100-120/min",
			"Call CODE BLUE",
			"Attach defibrillator",
			"Identify reversible causes",
		},
	},
	TypeTrauma: {
		Type: TypeTrauma, Priority: 1, Destination: "Trauma Bay / OR",
		TimeCritical: true, GoldenHourMinutes: 60,
		ImmediateActions: []string{
			"Airway with C-spine protection",
			"Stop bleeding, IV access",
			"Activate massive transfusion if needed",
			"FAST exam for internal bleeding",
		},
	},
	TypeAnaphylaxis: {
		Type: TypeAnaphylaxis, Priority: 1, Destination: "ICU / Emergency",
		TimeCritical: true,
		ImmediateActions: []string{
			"Epinephrine IM immediately",
			"Remove allergen if possible",
			"High-flow oxygen",
			"Prepare for intubation if stridor",
		},
	},
	TypeDiabeticEmergency: {
		Type: TypeDiabeticEmergency, Priority: 2, Destination: "ICU / Emergency",
		TimeCritical: true,
		ImmediateActions: []string{
			"Check blood glucose STAT",
			"If low give dextrose immediately",
			"If high start IV fluids and insulin",
			"Check electrolytes",
		},
	},
	TypeSeizure: {
		Type: TypeSeizure, Priority: 2, Destination: "Emergency / ICU if status",
		TimeCritical: true, GoldenHourMinutes: 30,
		ImmediateActions: []string{
			"Protect patient from injury",
			"Turn to recovery position",
			"Time the seizure",
			"Give benzodiazepine if over 5 minutes",
		},
	},
}

// keywords maps diagnosis text onto emergency types. Order matters: more
// specific phrases are checked before generic ones so "cardiac arrest" does
// not resolve to a heart attack via "cardiac".
var keywords = []struct {
	t     Type
	terms []string
}{
	{TypeCardiacArrest, []string{"cardiac arrest", "code blue", "asystole", "vfib", "pulseless"}},
	{TypeHeartAttack, []string{"heart attack", "myocardial", "chest pain", "stemi", "nstemi", "cardiac"}},
	{TypeStroke, []string{"stroke", "cva", "cerebrovascular", "hemiplegia", "aphasia", "tia"}},
	{TypeRespiratoryFailure, []string{"respiratory", "breathing", "hypoxia", "asthma", "copd", "pneumonia"}},
	{TypeSepsis, []string{"sepsis", "septic", "infection", "bacteremia"}},
	{TypeTrauma, []string{"trauma", "accident", "injury", "bleeding", "fracture", "wound"}},
	{TypeAnaphylaxis, []string{"anaphylaxis", "allergic", "allergy", "angioedema"}},
	{TypeDiabeticEmergency, []string{"diabetic", "dka", "hypoglycemia", "hyperglycemia", "ketoacidosis"}},
	{TypeSeizure, []string{"seizure", "epilepsy", "convulsion"}},
}

// Detect maps a patient to an emergency type from diagnosis keywords first,
// then from vitals. Returns false when no protocol applies.
func Detect(p *patient.Patient) (Type, bool) {
	diagnosis := strings.ToLower(p.Diagnosis)
	for _, k := range keywords {
		for _, term := range k.terms {
			if strings.Contains(diagnosis, term) {
				return k.t, true
			}
		}
	}

	if p.Vitals.SpO2 > 0 && p.Vitals.SpO2 < triage.SpO2Critical {
		return TypeRespiratoryFailure, true
	}
	if p.Vitals.HeartRate > 0 && p.Status == patient.StatusCritical &&
		(p.Vitals.HeartRate > triage.HRCriticalHigh || p.Vitals.HeartRate < triage.HRCriticalLow) {
		return TypeCardiacArrest, true
	}
	return "", false
}

// Lookup returns the protocol for a type.
func Lookup(t Type) (Protocol, bool) {
	p, ok := table[t]
	return p, ok
}

// ForPatient detects and resolves in one step.
func ForPatient(p *patient.Patient) (Protocol, bool) {
	t, ok := Detect(p)
	if !ok {
		return Protocol{}, false
	}
	return Lookup(t)
}

// All returns every protocol, for display.
func All() []Protocol {
	out := make([]Protocol, 0, len(table))
	for _, p := range table {
		out = append(out, p)
	}
	return out
}
