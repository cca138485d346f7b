package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking-server/internal/lock"
	"clinic-booking-server/internal/models"
)

// NewAppointment is what the guard hands to the store once a slot is free.
type NewAppointment struct {
	DoctorID        string
	PatientID       string
	AppointmentDate time.Time
	Status          models.AppointmentStatus
	Notes           string
}

// AppointmentStore is the persistence the guard depends on. The store must
// enforce uniqueness of confirmed (doctor, timestamp) pairs on its own and
// report violations as an error the caller can recognise.
type AppointmentStore interface {
	HasConfirmed(ctx context.Context, doctorID string, at time.Time) (bool, error)
	CreateAppointment(ctx context.Context, in NewAppointment) (*models.Appointment, error)
	RescheduleAppointment(ctx context.Context, id string, at time.Time) (*models.Appointment, error)
}

// BookingRequest asks for a doctor's slot on behalf of a patient.
type BookingRequest struct {
	DoctorID        string
	PatientID       string
	AppointmentDate time.Time
	Notes           string
}

// Guard rejects bookings of slots already held by a confirmed appointment.
// Its check is a fast path; the store's uniqueness constraint stays authoritative.
type Guard struct {
	store  AppointmentStore
	locker lock.Locker
}

// NewGuard wires a guard. A nil locker means in-process locking.
func NewGuard(store AppointmentStore, locker lock.Locker) *Guard {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Guard{store: store, locker: locker}
}

// Check fails with ErrSlotAlreadyBooked when the doctor already has a
// confirmed appointment at exactly at.
func (g *Guard) Check(ctx context.Context, doctorID string, at time.Time) error {
	taken, err := g.store.HasConfirmed(ctx, doctorID, at)
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return ErrSlotAlreadyBooked
	}
	return nil
}

// Book creates a confirmed appointment for the requested slot.
func (g *Guard) Book(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	if req.DoctorID == "" || req.PatientID == "" || req.AppointmentDate.IsZero() {
		return nil, fmt.Errorf("%w: doctor, patient and appointment date are required", ErrInvalidInput)
	}

	var created *models.Appointment
	err := g.locker.WithLock(ctx, lockKey(req.DoctorID, req.AppointmentDate), func(ctx context.Context) error {
		if err := g.Check(ctx, req.DoctorID, req.AppointmentDate); err != nil {
			return err
		}

		appt, err := g.store.CreateAppointment(ctx, NewAppointment{
			DoctorID:        req.DoctorID,
			PatientID:       req.PatientID,
			AppointmentDate: req.AppointmentDate,
			Status:          models.StatusConfirmed,
			Notes:           req.Notes,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, ErrSlotBeingBooked
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Reschedule moves an existing appointment of doctorID to a new slot under
// the same rules as Book.
func (g *Guard) Reschedule(ctx context.Context, appointmentID, doctorID string, at time.Time) (*models.Appointment, error) {
	if appointmentID == "" || doctorID == "" || at.IsZero() {
		return nil, fmt.Errorf("%w: appointment, doctor and appointment date are required", ErrInvalidInput)
	}

	var moved *models.Appointment
	err := g.locker.WithLock(ctx, lockKey(doctorID, at), func(ctx context.Context) error {
		if err := g.Check(ctx, doctorID, at); err != nil {
			return err
		}
		appt, err := g.store.RescheduleAppointment(ctx, appointmentID, at)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		moved = appt
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, ErrSlotBeingBooked
	}
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func lockKey(doctorID string, at time.Time) string {
	return fmt.Sprintf("lock:slot:%s:%s", doctorID, at.UTC().Format(time.RFC3339))
}
