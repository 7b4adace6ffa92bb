// Package doctolib contains the Doctolib booking service client and its
// request/response types.
package doctolib

import "time"

// Center is one search result from center discovery.
type Center struct {
	ID   int    `json:"id"`
	Name string `json:"name_with_title"`
	URL  string `json:"url"`
}

// Motive is a bookable visit reason (e.g. a vaccine first dose).
type Motive struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Agenda is a bookable calendar attached to a practice.
type Agenda struct {
	ID              int   `json:"id"`
	PracticeID      int   `json:"practice_id"`
	BookingDisabled bool  `json:"booking_disabled"`
	VisitMotiveIDs  []int `json:"visit_motive_ids"`
}

// Place is a physical location of a center, carrying its practice ids.
type Place struct {
	Name        string `json:"name"`
	PracticeIDs []int  `json:"practice_ids"`
}

// BookingMeta is the booking metadata of one center.
type BookingMeta struct {
	Motives   []Motive
	Agendas   []Agenda
	Places    []Place
	ProfileID int
}

// SlotStep is one dose of a linked multi-dose slot.
type SlotStep struct {
	StartDate string `json:"start_date"`
}

// Slot is a concrete bookable instant. For two-dose motives Steps holds
// the first and second dose timestamps in order.
type Slot struct {
	StartDate string     `json:"start_date"`
	Steps     []SlotStep `json:"steps"`
}

// DayAvailability is the set of open slots for one date.
type DayAvailability struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// Availabilities is one availability query response. NextSlot, when set,
// is the next date worth querying.
type Availabilities struct {
	Days     []DayAvailability `json:"availabilities"`
	NextSlot string            `json:"next_slot"`
}

// AvailabilityQuery describes one availability fetch. When FirstSlot is
// set the query targets second-dose availabilities linked to that slot.
type AvailabilityQuery struct {
	StartDate  string
	MotiveID   int
	AgendaIDs  []int
	PracticeID int
	FirstSlot  string
	Limit      int
}

// AppointmentRequest creates or updates an appointment. A non-empty
// SecondSlot attaches the linked second-dose timestamp.
type AppointmentRequest struct {
	ProfileID  int
	MotiveID   int
	StartDate  string
	AgendaIDs  []int
	PracticeID int
	SecondSlot string
}

// AppointmentResponse is the create/update result. A non-empty Error
// means the remote side rejected the slot.
type AppointmentResponse struct {
	ID    string
	Error string
}

// CustomField is a patient intake question attached to an appointment.
type CustomField struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
}

// MasterPatient is the account's patient profile used to book.
type MasterPatient struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FinalizePayload carries the answered intake fields and the patient
// identity for the final appointment update.
type FinalizePayload struct {
	CustomFields  map[string]string
	MasterPatient MasterPatient
}

// FinalizeResult is the finalize response. Redirection, when set, is a
// path the operator should visit to complete any remaining remote steps.
type FinalizeResult struct {
	Redirection string `json:"redirection"`
}

// Appointment is the read-back of a booked appointment. Confirmed is the
// authoritative success signal.
type Appointment struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

// slot timestamp layouts observed on the wire, tried in order.
var slotLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02",
}

// ParseSlotTime parses a slot or step timestamp.
func ParseSlotTime(value string) (time.Time, bool) {
	for _, layout := range slotLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Start returns the slot's parsed start timestamp.
func (s Slot) Start() (time.Time, bool) {
	return ParseSlotTime(s.StartDate)
}

// SecondDoseDate returns the date portion of the linked second-dose step,
// or "" when the slot has no second step.
func (s Slot) SecondDoseDate() string {
	if len(s.Steps) < 2 {
		return ""
	}
	t, ok := ParseSlotTime(s.Steps[1].StartDate)
	if !ok {
		// Fall back to the raw date prefix of an unparseable timestamp.
		if len(s.Steps[1].StartDate) >= 10 {
			return s.Steps[1].StartDate[:10]
		}
		return ""
	}
	return t.Format("2006-01-02")
}
