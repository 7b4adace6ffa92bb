package booking

import (
	"regexp"

	"github.com/dosehunt/dosehunt/internal/doctolib"
)

// FindMotive returns the id of the first motive whose name matches
// pattern, in server-provided order.
func FindMotive(meta *doctolib.BookingMeta, pattern *regexp.Regexp) (int, error) {
	for _, motive := range meta.Motives {
		if pattern.MatchString(motive.Name) {
			return motive.ID, nil
		}
	}

	names := make([]string, len(meta.Motives))
	for i, motive := range meta.Motives {
		names[i] = motive.Name
	}
	return 0, &MotiveNotFoundError{Pattern: pattern.String(), Available: names}
}

// EligibleAgendas returns the ids of enabled agendas serving motiveID.
// A non-zero practiceID restricts the result to that practice.
func EligibleAgendas(meta *doctolib.BookingMeta, motiveID, practiceID int) []int {
	var ids []int
	for _, agenda := range meta.Agendas {
		if agenda.BookingDisabled {
			continue
		}
		if practiceID != 0 && agenda.PracticeID != practiceID {
			continue
		}
		if !servesMotive(agenda, motiveID) {
			continue
		}
		ids = append(ids, agenda.ID)
	}
	return ids
}

// ResolveAgendas returns the agendas to query for a place. When the
// practice-scoped set is empty the filter is relaxed once to any agenda
// serving the motive, so a place is never skipped on scoping alone.
func ResolveAgendas(meta *doctolib.BookingMeta, motiveID, practiceID int) []int {
	ids := EligibleAgendas(meta, motiveID, practiceID)
	if len(ids) == 0 && practiceID != 0 {
		ids = EligibleAgendas(meta, motiveID, 0)
	}
	return ids
}

func servesMotive(agenda doctolib.Agenda, motiveID int) bool {
	for _, id := range agenda.VisitMotiveIDs {
		if id == motiveID {
			return true
		}
	}
	return false
}
