// Package scheduling computes bookable appointment slots and guards slot
// bookings against double booking.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/ru"
	"github.com/jinzhu/now"

	"clinic-booking-server/internal/models"
)

// Booking is the projection of an appointment the planner needs.
type Booking struct {
	DoctorID        string
	AppointmentDate time.Time
	Status          models.AppointmentStatus
}

// Slot is a candidate appointment window. Slots are generated per request
// and never persisted.
type Slot struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsAvailable bool      `json:"isAvailable"`
	DisplayTime string    `json:"displayTime"`
	DisplayDate string    `json:"displayDate"`
}

// Plan is the planner output: every slot in order, and the same slots
// grouped by ISO date.
type Plan struct {
	Slots      []Slot            `json:"slots"`
	SlotsByDay map[string][]Slot `json:"slotsByDay"`
}

// Planner generates slots from fixed business hours.
type Planner struct {
	loc        *time.Location
	startHour  int
	endHour    int
	interval   time.Duration
	windowDays int
	trans      locales.Translator
}

// Option configures a Planner.
type Option func(*Planner)

// WithLocation sets the clinic timezone used for calendar days and hours.
func WithLocation(loc *time.Location) Option {
	return func(p *Planner) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithBusinessHours sets the first slot hour, the closing hour and the slot length.
func WithBusinessHours(startHour, endHour int, interval time.Duration) Option {
	return func(p *Planner) {
		p.startHour, p.endHour, p.interval = startHour, endHour, interval
	}
}

// WithWindowDays sets how many calendar days a plan covers.
func WithWindowDays(days int) Option {
	return func(p *Planner) { p.windowDays = days }
}

// WithLocale sets the translator used for month names in DisplayDate.
func WithLocale(trans locales.Translator) Option {
	return func(p *Planner) {
		if trans != nil {
			p.trans = trans
		}
	}
}

// Translator returns the month-name translator for a locale name.
// Unknown names fall back to Russian, the clinic's default.
func Translator(name string) locales.Translator {
	switch strings.ToLower(name) {
	case "en":
		return en.New()
	default:
		return ru.New()
	}
}

// NewPlanner returns a planner for 09:00-18:00 hourly slots over seven days
// in local time, unless overridden by opts.
func NewPlanner(opts ...Option) (*Planner, error) {
	p := &Planner{
		loc:        time.Local,
		startHour:  9,
		endHour:    18,
		interval:   time.Hour,
		windowDays: 7,
		trans:      ru.New(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.startHour < 0 || p.endHour > 24 || p.startHour >= p.endHour {
		return nil, fmt.Errorf("%w: business hours %d-%d", ErrInvalidInput, p.startHour, p.endHour)
	}
	if p.interval <= 0 || p.interval%time.Minute != 0 {
		return nil, fmt.Errorf("%w: slot interval %s", ErrInvalidInput, p.interval)
	}
	if p.windowDays <= 0 {
		return nil, fmt.Errorf("%w: window of %d days", ErrInvalidInput, p.windowDays)
	}
	return p, nil
}

// Location returns the clinic timezone.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// Window returns the [from, to) range whose appointments affect the plan
// anchored at anchor.
func (p *Planner) Window(anchor time.Time) (from, to time.Time) {
	from = now.With(anchor.In(p.loc)).BeginningOfDay()
	return from, from.AddDate(0, 0, p.windowDays)
}

// Plan lists the slots of doctorID for the window starting at anchor.
// A slot is unavailable when a confirmed booking for the doctor starts on the
// same day at the same hour and minute. Weekends produce no slots.
func (p *Planner) Plan(doctorID string, anchor time.Time, existing []Booking) (*Plan, error) {
	if anchor.IsZero() {
		return nil, fmt.Errorf("%w: anchor date is required", ErrInvalidInput)
	}

	taken := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		if b.Status != models.StatusConfirmed {
			continue
		}
		if b.DoctorID != "" && b.DoctorID != doctorID {
			continue
		}
		taken[SlotID(b.AppointmentDate.In(p.loc))] = struct{}{}
	}

	from, _ := p.Window(anchor)
	plan := &Plan{
		Slots:      []Slot{},
		SlotsByDay: make(map[string][]Slot),
	}

	step := int(p.interval / time.Minute)
	for i := 0; i < p.windowDays; i++ {
		day := from.AddDate(0, 0, i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		y, m, d := day.Date()
		key := day.Format(time.DateOnly)
		daySlots := make([]Slot, 0, (p.endHour-p.startHour)*60/step)

		for minute := p.startHour * 60; minute < p.endHour*60; minute += step {
			start := time.Date(y, m, d, 0, minute, 0, 0, p.loc)
			end := time.Date(y, m, d, 0, minute+step, 0, 0, p.loc)
			id := SlotID(start)
			_, booked := taken[id]

			daySlots = append(daySlots, Slot{
				ID:          id,
				StartTime:   start,
				EndTime:     end,
				IsAvailable: !booked,
				DisplayTime: start.Format("15:04"),
				DisplayDate: p.displayDate(start),
			})
		}

		plan.SlotsByDay[key] = daySlots
		plan.Slots = append(plan.Slots, daySlots...)
	}
	return plan, nil
}

// OnGrid reports whether t is the start of a slot the planner would list:
// a weekday, inside business hours and aligned to the slot interval.
func (p *Planner) OnGrid(t time.Time) bool {
	t = t.In(p.loc)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if minute < p.startHour*60 || minute >= p.endHour*60 {
		return false
	}
	return (minute-p.startHour*60)%int(p.interval/time.Minute) == 0
}

func (p *Planner) displayDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %d %s", t.Day(), p.trans.MonthWide(t.Month()), t.Year(), t.Format("15:04"))
}
