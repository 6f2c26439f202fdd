// Package triage turns raw patient observations into an urgency rank and a
// stability score. Everything here is a pure function of its input; results
// are recomputed on every allocation decision and never cached.
package triage

import (
	"strings"

	"github.com/vitalflow/vitalflow/internal/domain/patient"
)

// Urgency ranks. 1 is most urgent.
const (
	RankResuscitation = 1
	RankEmergency     = 2
	RankUrgent        = 3
	RankSemiUrgent    = 4
	RankNonUrgent     = 5
)

// Vital-sign thresholds.
const (
	SpO2Critical = 85.0
	SpO2Low      = 90.0
	SpO2Normal   = 95.0

	HRCriticalLow  = 40
	HRLow          = 50
	HRNormalMin    = 60
	HRNormalMax    = 100
	HRHigh         = 120
	HRCriticalHigh = 150

	TempHypothermia = 95.0
	TempFever       = 100.4
	TempHighFever   = 103.0
)

// MinSwapStability is the floor below which an occupant may not be evicted.
const MinSwapStability = 30

var criticalKeywords = []string{
	"cardiac arrest", "stroke", "heart attack", "trauma",
	"hemorrhage", "respiratory failure", "sepsis", "anaphylaxis",
}

var urgentKeywords = []string{
	"chest pain", "difficulty breathing", "severe pain",
	"fracture", "head injury", "burns",
}

// Classify computes the urgency rank for a patient. The base rank comes from
// the clinical status; vital-sign and diagnosis-keyword passes may only
// tighten it, never loosen it.
func Classify(p *patient.Patient) int {
	var rank int
	switch p.Status {
	case patient.StatusCritical:
		rank = RankResuscitation
	case patient.StatusSerious:
		rank = RankEmergency
	case patient.StatusStable:
		rank = RankUrgent
	case patient.StatusRecovering:
		rank = RankSemiUrgent
	case patient.StatusDischarged:
		rank = RankNonUrgent
	default:
		rank = RankNonUrgent
	}

	v := p.Vitals

	// SpO2 overrides.
	if v.SpO2 < SpO2Critical {
		rank = RankResuscitation
	} else if v.SpO2 < SpO2Low {
		rank = min(rank, RankEmergency)
	}

	// Heart-rate overrides.
	if v.HeartRate > HRCriticalHigh || v.HeartRate < HRCriticalLow {
		rank = RankResuscitation
	} else if v.HeartRate > HRHigh || v.HeartRate < HRLow {
		rank = min(rank, RankEmergency)
	}

	// Temperature overrides.
	if v.Temperature >= TempHighFever {
		rank = min(rank, RankEmergency)
	} else if v.Temperature >= TempFever {
		rank = min(rank, RankUrgent)
	} else if v.Temperature > 0 && v.Temperature <= TempHypothermia {
		rank = min(rank, RankEmergency)
	}

	// Diagnosis keyword overrides. Case-insensitive substring match, no NLP.
	if p.Diagnosis != "" {
		diag := strings.ToLower(p.Diagnosis)
		for _, kw := range criticalKeywords {
			if strings.Contains(diag, kw) {
				return RankResuscitation
			}
		}
		for _, kw := range urgentKeywords {
			if strings.Contains(diag, kw) {
				rank = min(rank, RankEmergency)
				break
			}
		}
	}

	return rank
}

// RankLabel returns the display label for a rank. Labels are cosmetic and
// never feed resource decisions.
func RankLabel(rank int) string {
	switch rank {
	case RankResuscitation:
		return "RESUSCITATION"
	case RankEmergency:
		return "EMERGENCY"
	case RankUrgent:
		return "URGENT"
	case RankSemiUrgent:
		return "SEMI-URGENT"
	case RankNonUrgent:
		return "NON-URGENT"
	default:
		return "UNKNOWN"
	}
}

// StabilityScore measures how safely a patient can be moved to a
// lower-acuity bed, 0 (do not move) to 100. Weighted sum of a status term
// (40), an SpO2 term (30), and a heart-rate term (30).
func StabilityScore(p *patient.Patient) int {
	score := 0

	switch p.Status {
	case patient.StatusRecovering:
		score += 40
	case patient.StatusStable:
		score += 30
	case patient.StatusSerious:
		score += 10
	case patient.StatusCritical:
		// Critical patients are never eviction candidates.
	case patient.StatusDischarged:
		score += 50 // should not be occupying a bed at all
	}

	switch spo2 := p.Vitals.SpO2; {
	case spo2 >= 98:
		score += 30
	case spo2 >= 95:
		score += 25
	case spo2 >= 92:
		score += 15
	case spo2 >= 90:
		score += 10
	case spo2 >= 85:
		score += 5
	}

	switch hr := p.Vitals.HeartRate; {
	case hr >= 60 && hr <= 100:
		score += 30
	case hr >= 55 && hr <= 110:
		score += 20
	case hr >= 50 && hr <= 120:
		score += 10
	case hr >= 45 && hr <= 130:
		score += 5
	}

	return score
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
