package service

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pkordes/patient-transport/internal/domain"
)

// enrichRoster attaches patient and physician display records to each
// assignment and orders the result by patient name, then assignment id.
// Names are compared with Portuguese collation so accented names sort where
// a reader expects them ("Álvaro" next to "Alice", not after "Zilda").
func enrichRoster(ctx context.Context, dir Directory, list []domain.Assignment) ([]domain.RosterEntry, error) {
	physicians := map[int64]domain.Physician{}
	out := make([]domain.RosterEntry, 0, len(list))

	for _, a := range list {
		p, err := dir.FindPatient(ctx, a.PatientID)
		if err != nil {
			return nil, fmt.Errorf("patient %d: %w", a.PatientID, err)
		}
		e := domain.RosterEntry{Assignment: a, Patient: p}

		if a.PhysicianID != nil {
			ph, ok := physicians[*a.PhysicianID]
			if !ok {
				ph, err = dir.FindPhysician(ctx, *a.PhysicianID)
				if err != nil {
					return nil, fmt.Errorf("physician %d: %w", *a.PhysicianID, err)
				}
				physicians[ph.ID] = ph
			}
			e.Physician = &ph
		}
		out = append(out, e)
	}

	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := c.CompareString(out[i].Patient.Name, out[j].Patient.Name); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
