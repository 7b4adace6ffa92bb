package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosehunt/dosehunt/internal/doctolib"
)

// scriptedFetcher returns canned windows keyed by start date and records
// every queried date.
type scriptedFetcher struct {
	windows map[string]*doctolib.Availabilities
	queried []string
}

func (f *scriptedFetcher) GetAvailabilities(_ context.Context, q doctolib.AvailabilityQuery) (*doctolib.Availabilities, error) {
	f.queried = append(f.queried, q.StartDate)
	if window, ok := f.windows[q.StartDate]; ok {
		return window, nil
	}
	return &doctolib.Availabilities{}, nil
}

func TestFindSlotFollowsNextDate(t *testing.T) {
	fetcher := &scriptedFetcher{windows: map[string]*doctolib.Availabilities{
		"2024-05-01": {NextSlot: "2024-05-03"},
		"2024-05-03": {Days: []doctolib.DayAvailability{daySlot("2024-05-04", "09:00")}},
	}}
	scanner := &Scanner{Fetcher: fetcher}
	sel := &Selector{Policy: PolicyLast, Now: fixedNow}

	slot, err := scanner.FindSlot(context.Background(), doctolib.AvailabilityQuery{StartDate: "2024-05-01"}, sel)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, "2024-05-04T09:00:00.000+02:00", slot.StartDate)
	assert.Equal(t, []string{"2024-05-01", "2024-05-03"}, fetcher.queried)
}

func TestFindSlotExhaustedWithoutNextDate(t *testing.T) {
	fetcher := &scriptedFetcher{windows: map[string]*doctolib.Availabilities{
		"2024-05-01": {},
	}}
	scanner := &Scanner{Fetcher: fetcher}
	sel := &Selector{Policy: PolicyLast, Now: fixedNow}

	slot, err := scanner.FindSlot(context.Background(), doctolib.AvailabilityQuery{StartDate: "2024-05-01"}, sel)
	assert.Nil(t, slot)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []string{"2024-05-01"}, fetcher.queried)
}

func TestFindSlotStopsOnNonAdvancingDate(t *testing.T) {
	// An adversarial server that points back at the same date must not
	// cause a second query of it.
	fetcher := &scriptedFetcher{windows: map[string]*doctolib.Availabilities{
		"2024-05-01": {NextSlot: "2024-05-01"},
	}}
	scanner := &Scanner{Fetcher: fetcher}
	sel := &Selector{Policy: PolicyLast, Now: fixedNow}

	_, err := scanner.FindSlot(context.Background(), doctolib.AvailabilityQuery{StartDate: "2024-05-01"}, sel)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []string{"2024-05-01"}, fetcher.queried)
}

// alwaysNext fabricates an endless chain of advancing next dates.
type alwaysNext struct {
	queried []string
}

func (f *alwaysNext) GetAvailabilities(_ context.Context, q doctolib.AvailabilityQuery) (*doctolib.Availabilities, error) {
	f.queried = append(f.queried, q.StartDate)
	return &doctolib.Availabilities{NextSlot: q.StartDate + "z"}, nil
}

func TestFindSlotBoundedUnderAdversarialServer(t *testing.T) {
	fetcher := &alwaysNext{}
	scanner := &Scanner{Fetcher: fetcher, MaxSteps: 5}
	sel := &Selector{Policy: PolicyLast, Now: fixedNow}

	_, err := scanner.FindSlot(context.Background(), doctolib.AvailabilityQuery{StartDate: "2024-05-01"}, sel)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, fetcher.queried, 5)

	// Forward-only: no date is ever queried twice.
	seen := make(map[string]bool)
	for _, date := range fetcher.queried {
		assert.False(t, seen[date], "date %s queried twice", date)
		seen[date] = true
	}
}

func TestFindSlotSkipsEmptyWindows(t *testing.T) {
	fetcher := &scriptedFetcher{windows: map[string]*doctolib.Availabilities{
		"2024-05-01": {Days: []doctolib.DayAvailability{{Date: "2024-05-01"}}, NextSlot: "2024-05-02"},
		"2024-05-02": {Days: []doctolib.DayAvailability{daySlot("2024-05-02", "14:00")}},
	}}
	scanner := &Scanner{Fetcher: fetcher}
	sel := &Selector{NearTermOnly: true, Policy: PolicyLast, Now: fixedNow}

	slot, err := scanner.FindSlot(context.Background(), doctolib.AvailabilityQuery{StartDate: "2024-05-01"}, sel)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02T14:00:00.000+02:00", slot.StartDate)
}
