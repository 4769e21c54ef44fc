// internal/schedule/domain.go
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format of schedule dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the 12-hour clock used in time slots.
	ClockLayout = "03:04 PM"
)

var (
	ErrEmptySlot   = errors.New("time slot cannot be empty")
	ErrInvalidSlot = errors.New("time slot must look like \"07:00 AM - 08:00 AM\"")
	ErrFull        = errors.New("schedule is full")
)

// Schedule is a bookable time slot instance of a class.
type Schedule struct {
	ID              int64  `json:"id"`
	ClassID         int64  `json:"classId,omitempty"`
	ClassName       string `json:"className,omitempty"`
	Day             string `json:"day"`
	TimeSlot        string `json:"timeSlot"`
	Date            string `json:"date"`
	MaxParticipants int    `json:"maxParticipants"`
	EnrolledCount   int    `json:"enrolledCount"`
}

// IsFull reports whether no seat is left. A full schedule is not selectable.
func (s Schedule) IsFull() bool {
	return s.EnrolledCount >= s.MaxParticipants
}

// Remaining returns the number of open seats, never negative.
func (s Schedule) Remaining() int {
	if n := s.MaxParticipants - s.EnrolledCount; n > 0 {
		return n
	}
	return 0
}

// StartsAt combines the schedule date with the slot's start time in loc.
func (s Schedule) StartsAt(loc *time.Location) (time.Time, error) {
	return StartOf(s.Date, s.TimeSlot, loc)
}

// Slot is a parsed "HH:MM AM - HH:MM PM" range expressed as offsets from midnight.
type Slot struct {
	Start time.Duration
	End   time.Duration
}

// ParseSlot parses a time slot. A single clock value ("07:00 AM") is accepted
// as a zero-length slot so that legacy rows carrying only a start time still compare.
func ParseSlot(raw string) (Slot, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Slot{}, ErrEmptySlot
	}

	startRaw, endRaw, found := strings.Cut(raw, "-")
	start, err := parseClock(startRaw)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidSlot, raw)
	}
	if !found {
		return Slot{Start: start, End: start}, nil
	}

	end, err := parseClock(endRaw)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrInvalidSlot, raw)
	}
	if end < start {
		end += 24 * time.Hour // overnight
	}
	return Slot{Start: start, End: end}, nil
}

// Overlaps reports whether two slots share any instant. Identical
// zero-length slots overlap.
func (s Slot) Overlaps(o Slot) bool {
	if s == o {
		return true
	}
	return s.Start < o.End && o.Start < s.End
}

// SameTime reports whether two slot strings on the same date collide. Slots
// that cannot be parsed only collide when the strings are identical.
func SameTime(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	sa, errA := ParseSlot(a)
	sb, errB := ParseSlot(b)
	if errA != nil || errB != nil {
		return false
	}
	return sa.Overlaps(sb)
}

// StartOf returns the instant a slot begins on date, in loc.
func StartOf(date, slot string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule date %q: %w", date, err)
	}
	parsed, err := ParseSlot(slot)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(parsed.Start), nil
}

func parseClock(raw string) (time.Duration, error) {
	raw = strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	for _, layout := range []string{ClockLayout, "3:04 PM", "15:04"} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
		}
	}
	return 0, fmt.Errorf("invalid clock value %q", raw)
}

// Class is a trainer-led class offered by the gym.
type Class struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Trainer     string `json:"trainer,omitempty"`
	Description string `json:"description,omitempty"`
	Fee         int64  `json:"fee"`
}
