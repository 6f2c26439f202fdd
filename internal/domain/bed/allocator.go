package bed

import (
	"fmt"
	"sort"

	"github.com/vitalflow/vitalflow/internal/domain/audit"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/triage"
)

// Allocator owns every bed occupancy transition. It performs best-fit
// placement and, when a class is saturated, the preemptive swap that evicts
// the most stable occupant to make room for a more urgent arrival.
type Allocator struct {
	pool     *Pool
	patients *patient.Repository
	audit    *audit.Log
}

func NewAllocator(pool *Pool, patients *patient.Repository, auditLog *audit.Log) *Allocator {
	return &Allocator{pool: pool, patients: patients, audit: auditLog}
}

// Pool exposes the underlying inventory for observation (occupancy stats).
func (a *Allocator) Pool() *Pool { return a.pool }

// classPreference returns the ordered bed classes acceptable for an urgency
// rank. The first entry is the required class, the rest are fallbacks.
func classPreference(rank int) []Class {
	switch rank {
	case triage.RankResuscitation:
		return []Class{ClassICU, ClassEmergency}
	case triage.RankEmergency:
		return []Class{ClassICU, ClassEmergency, ClassGeneral}
	default:
		return []Class{ClassGeneral, ClassEmergency}
	}
}

// FindBestBed returns the first free bed in the first non-empty class of the
// patient's preference order, or ErrCapacityExhausted.
func (a *Allocator) FindBestBed(p *patient.Patient) (*Bed, error) {
	for _, class := range classPreference(triage.Classify(p)) {
		if free := a.pool.Available(class); len(free) > 0 {
			return free[0], nil
		}
	}
	return nil, ErrCapacityExhausted
}

// AssignBed places a patient into a specific free bed and updates both sides
// of the bed-patient relation. A patient already in the bed is an idempotent
// no-op.
func (a *Allocator) AssignBed(patientID, bedID string) error {
	if err := a.pool.Assign(bedID, patientID); err != nil {
		if err == ErrAlreadyAssigned {
			return nil
		}
		return err
	}
	if err := a.patients.Update(patientID, func(p *patient.Patient) {
		if p.BedID != "" && p.BedID != bedID {
			// Moving between beds: free the old one first.
			_, _ = a.pool.Release(p.BedID)
		}
		p.BedID = bedID
	}); err != nil {
		_, _ = a.pool.Release(bedID)
		return fmt.Errorf("assign bed %s: %w", bedID, err)
	}
	return nil
}

// ReleaseBed frees a bed and clears the occupant's reference. This is the
// only path by which a bed becomes free.
func (a *Allocator) ReleaseBed(bedID string) error {
	occupant, err := a.pool.Release(bedID)
	if err != nil {
		return err
	}
	if occupant != "" {
		// A discharge may already have removed the patient record.
		_ = a.patients.Update(occupant, func(p *patient.Patient) { p.BedID = "" })
	}
	return nil
}

// SwapCandidate identifies the most stable non-Critical occupant of the given
// class. Occupants below the eviction floor are not eligible.
func (a *Allocator) SwapCandidate(class Class) (*patient.Patient, int, bool) {
	return a.swapCandidate(class, "")
}

// swapCandidate is SwapCandidate with one occupant excluded, so a patient
// being placed is never selected to vacate their own bed.
func (a *Allocator) swapCandidate(class Class, excludeID string) (*patient.Patient, int, bool) {
	type scored struct {
		p     *patient.Patient
		score int
	}
	var candidates []scored

	for _, b := range a.pool.OccupiedByClass(class) {
		if excludeID != "" && b.PatientID == excludeID {
			continue
		}
		occ, err := a.patients.Get(b.PatientID)
		if err != nil {
			continue
		}
		if occ.Status == patient.StatusCritical {
			continue
		}
		candidates = append(candidates, scored{occ, triage.StabilityScore(occ)})
	}
	if len(candidates) == 0 {
		return nil, 0, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].p.ID < candidates[j].p.ID
	})

	best := candidates[0]
	if best.score < triage.MinSwapStability {
		return nil, 0, false
	}
	return best.p, best.score, true
}

// ExecuteSwap places an urgent patient, evicting a stable occupant when
// direct placement fails. The returned message is suitable for the audit
// trail; on failure err wraps one of the package sentinels. Every outcome is
// recorded in the audit log.
func (a *Allocator) ExecuteSwap(p *patient.Patient) (string, error) {
	rank := triage.Classify(p)
	prefs := classPreference(rank)
	required := prefs[0]

	// How far down the preference order the patient currently sits.
	// len(prefs) means unplaced or in a class outside the preference set.
	currentPref := len(prefs)
	if p.BedID != "" {
		if current, err := a.pool.Get(p.BedID); err == nil {
			for i, class := range prefs {
				if current.Class == class {
					currentPref = i
					break
				}
			}
		}
	}

	// Idempotent fast exit: already in the required class.
	if currentPref == 0 {
		return fmt.Sprintf("patient %s already in %s bed %s", p.ID, required, p.BedID), ErrAlreadyAssigned
	}

	// Fast path: a free bed in a class strictly preferred over the current
	// placement. A patient in an acceptable fallback bed is never churned to
	// an equal-or-worse one.
	for _, class := range prefs[:currentPref] {
		free := a.pool.Available(class)
		if len(free) == 0 {
			continue
		}
		target := free[0]
		if err := a.AssignBed(p.ID, target.ID); err != nil {
			return "", err
		}
		a.audit.Record("BED_DIRECT_ASSIGN",
			fmt.Sprintf("free %s bed, direct assignment of %s to %s", class, p.Name, target.ID),
			map[string]any{"patient_id": p.ID, "bed_id": target.ID, "class": string(class)})
		return fmt.Sprintf("assigned to %s", target.ID), nil
	}

	// Preemptive eviction is reserved for rank 1 and 2 arrivals.
	if rank > triage.RankEmergency {
		a.audit.Record("SWAP_SKIPPED",
			fmt.Sprintf("no beds available and patient %s (rank %d) not urgent enough for swap", p.Name, rank),
			map[string]any{"patient_id": p.ID, "rank": rank})
		return "", fmt.Errorf("rank %d patient: %w", rank, ErrCapacityExhausted)
	}

	// Select the most stable occupant, required class first, then fallbacks.
	var (
		candidate *patient.Patient
		score     int
		found     bool
	)
	evictClass := required
	for _, class := range prefs[:currentPref] {
		if candidate, score, found = a.swapCandidate(class, p.ID); found {
			evictClass = class
			break
		}
	}
	if !found {
		a.audit.Record("SWAP_FAILED", "no stable occupant available for swap",
			map[string]any{"patient_id": p.ID, "required_class": string(required)})
		return "", ErrNoSwapCandidate
	}

	// Find a downgrade bed in a different class than the one being vacated.
	var downgrade *Bed
	for _, class := range []Class{ClassGeneral, ClassEmergency} {
		if class == evictClass {
			continue
		}
		if free := a.pool.Available(class); len(free) > 0 {
			downgrade = free[0]
			break
		}
	}
	if downgrade == nil {
		a.audit.Record("SWAP_FAILED", "no downgrade capacity available",
			map[string]any{
				"patient_id":      p.ID,
				"swap_candidate":  candidate.ID,
				"stability_score": score,
			})
		return "", fmt.Errorf("no downgrade capacity available: %w", ErrCapacityExhausted)
	}

	freedBedID := candidate.BedID
	if err := a.pool.Swap(freedBedID, downgrade.ID, candidate.ID, p.ID); err != nil {
		a.audit.Record("SWAP_FAILED", fmt.Sprintf("swap aborted: %v", err),
			map[string]any{"patient_id": p.ID, "swap_candidate": candidate.ID})
		return "", err
	}

	// The pool has committed; propagate both bed references.
	if err := a.patients.Update(candidate.ID, func(pp *patient.Patient) { pp.BedID = downgrade.ID }); err != nil {
		// Candidate discharged mid-swap; leave the downgrade bed free.
		_, _ = a.pool.Release(downgrade.ID)
	}
	if err := a.patients.Update(p.ID, func(pp *patient.Patient) {
		if pp.BedID != "" && pp.BedID != freedBedID {
			// Promoted while admitted: free the bed being vacated.
			_, _ = a.pool.Release(pp.BedID)
		}
		pp.BedID = freedBedID
	}); err != nil {
		return "", fmt.Errorf("update incoming patient: %w", err)
	}

	a.audit.Record("SWAP_EXECUTED",
		fmt.Sprintf("%s full: moved %s (stability %d/100) to %s to accommodate %s", evictClass,
			candidate.Name, score, downgrade.ID, p.Name),
		map[string]any{
			"evicted_patient":  candidate.ID,
			"incoming_patient": p.ID,
			"stability_score":  score,
			"freed_bed":        freedBedID,
			"downgrade_bed":    downgrade.ID,
		})
	return fmt.Sprintf("swap executed: %s -> %s, %s -> %s", candidate.ID, downgrade.ID, p.ID, freedBedID), nil
}
