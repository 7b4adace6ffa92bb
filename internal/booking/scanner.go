package booking

import (
	"context"

	"github.com/dosehunt/dosehunt/internal/doctolib"
	"github.com/dosehunt/dosehunt/pkg/logging"
)

const defaultScanMaxSteps = 31

// AvailabilityFetcher is the slice of the remote client the scanner uses.
type AvailabilityFetcher interface {
	GetAvailabilities(ctx context.Context, q doctolib.AvailabilityQuery) (*doctolib.Availabilities, error)
}

// Scanner pages forward through availability dates. Each response may
// carry the next date worth querying; the scan follows those pointers,
// never revisits an earlier date, and gives up after MaxSteps advances
// even if the server keeps supplying next dates.
type Scanner struct {
	Fetcher  AvailabilityFetcher
	MaxSteps int
	Logger   *logging.Logger
}

// FindSlot runs windowed queries starting at q.StartDate until sel yields
// a slot. Returns ErrExhausted when the horizon is reached without one.
func (s *Scanner) FindSlot(ctx context.Context, q doctolib.AvailabilityQuery, sel *Selector) (*doctolib.Slot, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxSteps := s.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultScanMaxSteps
	}

	date := q.StartDate
	for step := 0; step < maxSteps; step++ {
		q.StartDate = date
		window, err := s.Fetcher.GetAvailabilities(ctx, q)
		if err != nil {
			return nil, err
		}

		if slot := sel.Select(window.Days); slot != nil {
			return slot, nil
		}

		next := window.NextSlot
		if next == "" {
			return nil, ErrExhausted
		}
		// ISO dates order lexically; a non-advancing pointer would loop.
		if next <= date {
			logger.Warn("availability scan stopped on non-advancing next date", "date", date, "next", next)
			return nil, ErrExhausted
		}
		date = next
	}

	logger.Warn("availability scan hit step bound", "steps", maxSteps)
	return nil, ErrExhausted
}
