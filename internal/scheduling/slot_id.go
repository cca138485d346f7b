package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidInput is returned for malformed anchor dates and slot identifiers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSlotAlreadyBooked means a confirmed appointment already holds the doctor's timestamp.
	ErrSlotAlreadyBooked = errors.New("this time slot is already booked")
	// ErrSlotBeingBooked means a concurrent request holds the booking lock for the slot.
	ErrSlotBeingBooked = errors.New("this time slot is currently being booked, please retry")
)

const slotIDLayout = "2006-01-02-15-04"

// SlotID encodes the wall-clock date and time of t as "YYYY-MM-DD-HH-mm".
func SlotID(t time.Time) string {
	return t.Format(slotIDLayout)
}

// ParseSlotID decodes a slot identifier into a timestamp in loc.
func ParseSlotID(id string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(id), "-")
	if len(parts) != 5 {
		return time.Time{}, fmt.Errorf("%w: slot id %q must have 5 parts", ErrInvalidInput, id)
	}

	var nums [5]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("%w: slot id %q has a bad component %q", ErrInvalidInput, id, p)
		}
		nums[i] = n
	}
	year, month, day, hour, minute := nums[0], nums[1], nums[2], nums[3], nums[4]

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: slot id %q is out of range", ErrInvalidInput, id)
	}
	if loc == nil {
		loc = time.Local
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	// Reject dates that time.Date normalized, e.g. 2024-02-30.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: slot id %q is not a calendar date", ErrInvalidInput, id)
	}
	return t, nil
}

// ParseAnchorDate reads the "date" query parameter. An empty value means now.
// Accepted forms are YYYY-MM-DD (midnight in loc) and RFC 3339 timestamps.
func ParseAnchorDate(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.In(loc), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: date %q is not an ISO date", ErrInvalidInput, raw)
}
