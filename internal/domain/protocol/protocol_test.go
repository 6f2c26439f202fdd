package protocol

import (
	"testing"

	"github.com/vitalflow/vitalflow/internal/domain/patient"
)

func TestDetectFromDiagnosis(t *testing.T) {
	cases := []struct {
		diagnosis string
		want      Type
	}{
		{"Acute Myocardial Infarction", TypeHeartAttack},
		{"Cardiac arrest in ambulance", TypeCardiacArrest}, // not heart attack via "cardiac"
		{"Acute Ischemic Stroke", TypeStroke},
		{"Severe Sepsis from UTI", TypeSepsis},
		{"Multiple Trauma from MVA", TypeTrauma},
		{"COPD exacerbation", TypeRespiratoryFailure},
		{"DKA with dehydration", TypeDiabeticEmergency},
		{"Status epilepticus, ongoing convulsions", TypeSeizure},
		{"Anaphylaxis after bee sting", TypeAnaphylaxis},
	}
	for _, tc := range cases {
		p := &patient.Patient{Diagnosis: tc.diagnosis, Status: patient.StatusSerious,
			Vitals: patient.Vitals{SpO2: 95, HeartRate: 90}}
		got, ok := Detect(p)
		if !ok || got != tc.want {
			t.Errorf("Detect(%q) = %v/%v, want %v", tc.diagnosis, got, ok, tc.want)
		}
	}
}

func TestDetectFromVitals(t *testing.T) {
	p := &patient.Patient{Diagnosis: "unknown collapse", Status: patient.StatusSerious,
		Vitals: patient.Vitals{SpO2: 82, HeartRate: 100}}
	if got, ok := Detect(p); !ok || got != TypeRespiratoryFailure {
		t.Errorf("low saturation should detect respiratory failure, got %v/%v", got, ok)
	}

	p = &patient.Patient{Diagnosis: "unknown collapse", Status: patient.StatusCritical,
		Vitals: patient.Vitals{SpO2: 95, HeartRate: 160}}
	if got, ok := Detect(p); !ok || got != TypeCardiacArrest {
		t.Errorf("extreme heart rate on critical patient should detect arrest, got %v/%v", got, ok)
	}

	// Same vitals on a non-critical patient stay undetected.
	p.Status = patient.StatusSerious
	if _, ok := Detect(p); ok {
		t.Error("extreme heart rate on serious patient should not trigger a protocol")
	}
}

func TestDetectNothing(t *testing.T) {
	p := &patient.Patient{Diagnosis: "routine observation", Status: patient.StatusStable,
		Vitals: patient.Vitals{SpO2: 98, HeartRate: 72}}
	if got, ok := Detect(p); ok {
		t.Errorf("stable patient detected as %v", got)
	}
}

func TestForPatientReturnsFullProtocol(t *testing.T) {
	p := &patient.Patient{Diagnosis: "suspected sepsis", Status: patient.StatusCritical,
		Vitals: patient.Vitals{SpO2: 91, HeartRate: 118}}
	proto, ok := ForPatient(p)
	if !ok {
		t.Fatal("no protocol for sepsis diagnosis")
	}
	if proto.Type != TypeSepsis || proto.Destination != "ICU" || !proto.TimeCritical {
		t.Errorf("unexpected protocol: %+v", proto)
	}
	if proto.GoldenHourMinutes != 60 {
		t.Errorf("golden hour = %d, want 60", proto.GoldenHourMinutes)
	}
	if len(proto.ImmediateActions) == 0 {
		t.Error("protocol has no immediate actions")
	}
}

func TestTableComplete(t *testing.T) {
	all := All()
	if len(all) != 9 {
		t.Fatalf("protocol table has %d entries, want 9", len(all))
	}
	for _, p := range all {
		if p.Destination == "" || len(p.ImmediateActions) == 0 {
			t.Errorf("%s: incomplete protocol entry", p.Type)
		}
	}
}
