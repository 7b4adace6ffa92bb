package booking

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dosehunt/dosehunt/internal/doctolib"
	"github.com/dosehunt/dosehunt/internal/observability/metrics"
	"github.com/dosehunt/dosehunt/pkg/logging"
)

// API is the slice of the remote booking client the engine consumes.
type API interface {
	GetBookingMeta(ctx context.Context, centerSlug string) (*doctolib.BookingMeta, error)
	GetAvailabilities(ctx context.Context, q doctolib.AvailabilityQuery) (*doctolib.Availabilities, error)
	CreateAppointment(ctx context.Context, req doctolib.AppointmentRequest) (*doctolib.AppointmentResponse, error)
	GetAppointmentEdit(ctx context.Context, appointmentID string, masterPatientID int) ([]doctolib.CustomField, error)
	GetMasterPatient(ctx context.Context) (*doctolib.MasterPatient, error)
	FinalizeAppointment(ctx context.Context, appointmentID string, p doctolib.FinalizePayload) (*doctolib.FinalizeResult, error)
	GetAppointment(ctx context.Context, appointmentID string) (*doctolib.Appointment, error)
}

// State is one step of the booking transaction.
type State string

const (
	StateSearchingFirst  State = "searching_first"
	StateFirstCreated    State = "first_created"
	StateSearchingSecond State = "searching_second"
	StateSecondAttached  State = "second_attached"
	StateFinalizing      State = "finalizing"
	StateConfirmed       State = "confirmed"
	StateAborted         State = "aborted"
)

// Abort reasons, used as metric outcome labels.
const (
	OutcomeConfirmed    = "confirmed"
	OutcomeNoMotive     = "no_motive"
	OutcomeNoAgendas    = "no_agendas"
	OutcomeNoSlot       = "no_slot"
	OutcomeSlotRace     = "slot_race"
	OutcomeNoSecondSlot = "no_second_slot"
	OutcomeNotConfirmed = "not_confirmed"
	OutcomeError        = "error"
)

// Engine drives the two-phase booking transaction, one center at a time.
type Engine struct {
	api      API
	answers  AnswerProvider
	pattern  *regexp.Regexp
	policy   SlotPolicy
	maxSteps int
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

// EngineOption is a functional option for configuring the Engine.
type EngineOption func(*Engine)

func WithLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.BookingMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithSlotPolicy(policy SlotPolicy) EngineOption {
	return func(e *Engine) { e.policy = policy }
}

func WithScanSteps(steps int) EngineOption {
	return func(e *Engine) { e.maxSteps = steps }
}

// WithClock overrides the engine's notion of "today".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a booking engine. pattern selects the target motive
// by display name; answers resolves intake fields with no default.
func NewEngine(api API, answers AnswerProvider, pattern *regexp.Regexp, opts ...EngineOption) *Engine {
	e := &Engine{
		api:     api,
		answers: answers,
		pattern: pattern,
		policy:  PolicyLast,
		logger:  logging.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AttemptBooking tries to book a two-dose appointment at one center.
// false with a nil error means the center was abandoned for this sweep;
// a non-nil error is a transport-level failure of the attempt. Nothing
// is retried here: the sweep driver re-scans fresh on its next pass.
func (e *Engine) AttemptBooking(ctx context.Context, center doctolib.Center) (bool, error) {
	logger := e.logger.With("attempt", uuid.NewString()[:8], "center", center.Name)

	meta, err := e.api.GetBookingMeta(ctx, center.Slug())
	if err != nil {
		e.metrics.ObserveAttempt(OutcomeError)
		return false, err
	}

	motiveID, err := FindMotive(meta, e.pattern)
	if err != nil {
		var notFound *MotiveNotFoundError
		if errors.As(err, &notFound) {
			logger.Info("unable to find matching motive",
				"pattern", notFound.Pattern,
				"motives", strings.Join(notFound.Available, ", "))
			e.metrics.ObserveAttempt(OutcomeNoMotive)
			return false, nil
		}
		e.metrics.ObserveAttempt(OutcomeError)
		return false, err
	}

	visited := false
	for _, place := range meta.Places {
		if len(place.PracticeIDs) == 0 {
			continue
		}
		visited = true
		practiceID := place.PracticeIDs[0]
		logger.Info("looking for slots in place", "place", place.Name)

		agendaIDs := ResolveAgendas(meta, motiveID, practiceID)
		if len(agendaIDs) == 0 {
			logger.Info("no bookable agenda for this place", "place", place.Name)
			e.metrics.ObserveAttempt(OutcomeNoAgendas)
			continue
		}

		result := e.runTransaction(ctx, logger, meta.ProfileID, motiveID, practiceID, agendaIDs)
		if result.Err != nil {
			e.metrics.ObserveAttempt(OutcomeError)
			return false, result.Err
		}
		if result.Confirmed {
			e.metrics.ObserveAttempt(OutcomeConfirmed)
			return true, nil
		}
		e.metrics.ObserveAttempt(result.Outcome)
	}

	if !visited {
		logger.Info("no place with a practice at this center")
		e.metrics.ObserveAttempt(OutcomeNoAgendas)
	}
	return false, nil
}

// TxResult is the terminal record of one booking transaction.
type TxResult struct {
	Confirmed bool
	Outcome   string
	Err       error
	Path      []State
}

func (e *Engine) runTransaction(ctx context.Context, logger *logging.Logger, profileID, motiveID, practiceID int, agendaIDs []int) *TxResult {
	tx := &transaction{
		engine:     e,
		logger:     logger,
		profileID:  profileID,
		motiveID:   motiveID,
		practiceID: practiceID,
		agendaIDs:  agendaIDs,
	}
	return tx.run(ctx)
}

// transaction is one pass through the booking state machine for a single
// (center, motive, agenda-set) tuple. Every remote call either fully
// succeeds server-side or the transaction aborts; no step is retried.
type transaction struct {
	engine     *Engine
	logger     *logging.Logger
	profileID  int
	motiveID   int
	practiceID int
	agendaIDs  []int

	state State
	path  []State
}

func (t *transaction) to(state State) {
	t.state = state
	t.path = append(t.path, state)
}

func (t *transaction) abort(outcome, reason string) *TxResult {
	t.to(StateAborted)
	t.logger.Info("abandoning center", "reason", reason)
	return &TxResult{Outcome: outcome, Path: t.path}
}

func (t *transaction) fail(err error) *TxResult {
	t.to(StateAborted)
	return &TxResult{Outcome: OutcomeError, Err: err, Path: t.path}
}

func (t *transaction) run(ctx context.Context) *TxResult {
	e := t.engine
	scanner := &Scanner{Fetcher: e.api, MaxSteps: e.maxSteps, Logger: t.logger}
	baseQuery := doctolib.AvailabilityQuery{
		MotiveID:   t.motiveID,
		AgendaIDs:  t.agendaIDs,
		PracticeID: t.practiceID,
	}

	// First dose: near-term slots only, starting today.
	t.to(StateSearchingFirst)
	firstQuery := baseQuery
	firstQuery.StartDate = e.now().Format("2006-01-02")
	first, err := scanner.FindSlot(ctx, firstQuery, &Selector{NearTermOnly: true, Policy: e.policy, Now: e.now})
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			return t.abort(OutcomeNoSlot, "no availabilities in this center")
		}
		return t.fail(err)
	}
	t.logger.Info("first-dose slot found", "start", first.StartDate)

	// Provisional creation. A remote error here means another client won
	// the race; the slot is not retried.
	t.to(StateFirstCreated)
	req := doctolib.AppointmentRequest{
		ProfileID:  t.profileID,
		MotiveID:   t.motiveID,
		StartDate:  first.StartDate,
		AgendaIDs:  t.agendaIDs,
		PracticeID: t.practiceID,
	}
	created, err := e.api.CreateAppointment(ctx, req)
	if err != nil {
		return t.fail(err)
	}
	if created.Error != "" {
		raceErr := &SlotRaceError{Remote: created.Error}
		return t.abort(OutcomeSlotRace, raceErr.Error())
	}

	// Second dose: anchored to the first slot's linked step, no ceiling.
	// If this aborts, the provisional first booking stays on the remote
	// side; no compensating cancellation is issued.
	t.to(StateSearchingSecond)
	anchor := first.SecondDoseDate()
	if anchor == "" {
		return t.abort(OutcomeNoSecondSlot, "first slot carries no linked second dose")
	}
	secondQuery := baseQuery
	secondQuery.StartDate = anchor
	secondQuery.FirstSlot = first.StartDate
	second, err := scanner.FindSlot(ctx, secondQuery, &Selector{Policy: e.policy, Now: e.now})
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			return t.abort(OutcomeNoSecondSlot, "no second shot found")
		}
		return t.fail(err)
	}
	t.logger.Info("second-dose slot found", "start", second.StartDate)

	// Attach the second slot by re-submitting the creation payload.
	t.to(StateSecondAttached)
	req.SecondSlot = second.StartDate
	attached, err := e.api.CreateAppointment(ctx, req)
	if err != nil {
		return t.fail(err)
	}
	if attached.Error != "" {
		raceErr := &SlotRaceError{Remote: attached.Error}
		return t.abort(OutcomeSlotRace, raceErr.Error())
	}
	appointmentID := attached.ID

	// Finalize: patient identity plus answered intake fields.
	t.to(StateFinalizing)
	patient, err := e.api.GetMasterPatient(ctx)
	if err != nil {
		return t.fail(err)
	}
	t.logger.Info("booking for patient", "patient", patient.FirstName+" "+patient.LastName)

	fields, err := e.api.GetAppointmentEdit(ctx, appointmentID, patient.ID)
	if err != nil {
		return t.fail(err)
	}
	answers, err := ResolveFields(ctx, fields, e.answers)
	if err != nil {
		return t.fail(err)
	}

	finalized, err := e.api.FinalizeAppointment(ctx, appointmentID, doctolib.FinalizePayload{
		CustomFields:  answers,
		MasterPatient: *patient,
	})
	if err != nil {
		return t.fail(err)
	}
	if finalized.Redirection != "" {
		t.logger.Info("remote follow-up required", "path", finalized.Redirection)
	}

	// The read-back confirmed flag is the authoritative success signal.
	readback, err := e.api.GetAppointment(ctx, appointmentID)
	if err != nil {
		return t.fail(err)
	}
	t.logger.Info("booking status", "confirmed", readback.Confirmed)
	if !readback.Confirmed {
		return t.abort(OutcomeNotConfirmed, "appointment not confirmed on read-back")
	}

	t.to(StateConfirmed)
	return &TxResult{Confirmed: true, Outcome: OutcomeConfirmed, Path: t.path}
}
