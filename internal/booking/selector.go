package booking

import (
	"time"

	"github.com/dosehunt/dosehunt/internal/doctolib"
)

// SlotPolicy decides which eligible slot of a window is chosen.
type SlotPolicy string

const (
	// PolicyLast picks the last eligible slot in server order.
	PolicyLast SlotPolicy = "last"
	// PolicyFirst picks the first eligible slot in server order.
	PolicyFirst SlotPolicy = "first"
)

// ParsePolicy maps a config string to a SlotPolicy, defaulting to last.
func ParsePolicy(value string) SlotPolicy {
	if value == string(PolicyFirst) {
		return PolicyFirst
	}
	return PolicyLast
}

// Selector picks a slot from an availability window. With NearTermOnly
// set, slots dated more than one day past today are rejected; that keeps
// a first-dose search on the soonest realistic slot instead of one weeks
// out.
type Selector struct {
	NearTermOnly bool
	Policy       SlotPolicy
	Now          func() time.Time
}

// Select returns the chosen slot, or nil when nothing in the window
// passes the filter.
func (s *Selector) Select(days []doctolib.DayAvailability) *doctolib.Slot {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	limit := now().AddDate(0, 0, 1).Format("2006-01-02")

	var eligible []*doctolib.Slot
	for i := range days {
		day := days[i]
		for j := range day.Slots {
			slot := &day.Slots[j]
			if s.NearTermOnly && slotDate(slot, day.Date) > limit {
				continue
			}
			eligible = append(eligible, slot)
		}
	}

	if len(eligible) == 0 {
		return nil
	}
	if s.Policy == PolicyFirst {
		return eligible[0]
	}
	return eligible[len(eligible)-1]
}

// slotDate returns the slot's date in YYYY-MM-DD form, falling back to
// the enclosing day's date when the slot timestamp cannot be parsed.
func slotDate(slot *doctolib.Slot, dayDate string) string {
	if t, ok := slot.Start(); ok {
		return t.Format("2006-01-02")
	}
	if len(dayDate) >= 10 {
		return dayDate[:10]
	}
	return dayDate
}
