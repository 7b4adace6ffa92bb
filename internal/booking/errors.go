package booking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExhausted is returned when an availability scan reaches the server's
// horizon without yielding an eligible slot.
var ErrExhausted = errors.New("availability search exhausted")

// MotiveNotFoundError is returned when no motive name matches the target
// pattern. Available carries every motive name the center offered, for
// operator diagnosis.
type MotiveNotFoundError struct {
	Pattern   string
	Available []string
}

func (e *MotiveNotFoundError) Error() string {
	return fmt.Sprintf("no motive matches %q (available: %s)", e.Pattern, strings.Join(e.Available, ", "))
}

// SlotRaceError is returned when the remote side rejects an appointment
// creation because the slot was taken by another client in the meantime.
type SlotRaceError struct {
	Remote string
}

func (e *SlotRaceError) Error() string {
	return fmt.Sprintf("appointment not available anymore: %s", e.Remote)
}
