package booking

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosehunt/dosehunt/internal/doctolib"
)

var mrnaPattern = regexp.MustCompile(`1re.*(Pfizer|Moderna)`)

func vaccinationMeta() *doctolib.BookingMeta {
	return &doctolib.BookingMeta{
		Motives: []doctolib.Motive{
			{ID: 101, Name: "1re injection vaccin COVID-19 (Pfizer-BioNTech)"},
			{ID: 102, Name: "1re injection vaccin COVID-19 (Moderna)"},
			{ID: 103, Name: "Consultation"},
		},
		Agendas: []doctolib.Agenda{
			{ID: 1, PracticeID: 11, VisitMotiveIDs: []int{101, 103}},
			{ID: 2, PracticeID: 22, VisitMotiveIDs: []int{101}},
			{ID: 3, PracticeID: 11, BookingDisabled: true, VisitMotiveIDs: []int{101}},
			{ID: 4, PracticeID: 11, VisitMotiveIDs: []int{103}},
		},
		Places: []doctolib.Place{
			{Name: "Centre principal", PracticeIDs: []int{11}},
		},
		ProfileID: 900,
	}
}

func TestFindMotive(t *testing.T) {
	t.Run("returns first match in server order", func(t *testing.T) {
		meta := vaccinationMeta()
		id, err := FindMotive(meta, mrnaPattern)
		require.NoError(t, err)
		assert.Equal(t, 101, id)
	})

	t.Run("no match surfaces all motive names", func(t *testing.T) {
		meta := &doctolib.BookingMeta{
			Motives: []doctolib.Motive{
				{ID: 1, Name: "Consultation"},
				{ID: 2, Name: "2de injection vaccin COVID-19 (Pfizer-BioNTech)"},
			},
		}
		_, err := FindMotive(meta, mrnaPattern)
		require.Error(t, err)

		var notFound *MotiveNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, []string{
			"Consultation",
			"2de injection vaccin COVID-19 (Pfizer-BioNTech)",
		}, notFound.Available)
		assert.Contains(t, notFound.Error(), "Consultation")
	})
}

func TestEligibleAgendas(t *testing.T) {
	meta := vaccinationMeta()

	t.Run("practice filter narrows the unscoped set", func(t *testing.T) {
		scoped := EligibleAgendas(meta, 101, 11)
		unscoped := EligibleAgendas(meta, 101, 0)

		assert.Equal(t, []int{1}, scoped)
		assert.Equal(t, []int{1, 2}, unscoped)
		for _, id := range scoped {
			assert.Contains(t, unscoped, id)
		}
	})

	t.Run("disabled agendas are excluded", func(t *testing.T) {
		ids := EligibleAgendas(meta, 101, 0)
		assert.NotContains(t, ids, 3)
	})

	t.Run("agendas not serving the motive are excluded", func(t *testing.T) {
		ids := EligibleAgendas(meta, 101, 0)
		assert.NotContains(t, ids, 4)
	})
}

func TestResolveAgendas(t *testing.T) {
	meta := vaccinationMeta()

	t.Run("keeps the practice-scoped set when non-empty", func(t *testing.T) {
		assert.Equal(t, []int{1}, ResolveAgendas(meta, 101, 11))
	})

	t.Run("relaxes the practice filter exactly once", func(t *testing.T) {
		// Practice 33 has no agenda; the unscoped set is used instead.
		assert.Equal(t, []int{1, 2}, ResolveAgendas(meta, 101, 33))
	})

	t.Run("empty after relaxation stays empty", func(t *testing.T) {
		assert.Empty(t, ResolveAgendas(meta, 999, 33))
	})
}
