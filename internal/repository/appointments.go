// Package repository persists appointments and enforces the one confirmed
// appointment per doctor and timestamp rule at the storage level.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record conflicts with an existing one")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// AppointmentRepository is the gorm-backed appointment store.
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// FindAppointments returns the doctor's appointments starting in [from, to).
func (r *AppointmentRepository) FindAppointments(ctx context.Context, doctorID string, from, to time.Time) ([]scheduling.Booking, error) {
	var rows []models.Appointment
	err := r.db.WithContext(ctx).
		Select("doctor_id", "appointment_date", "status").
		Where("doctor_id = ? AND appointment_date >= ? AND appointment_date < ?", doctorID, from.UTC(), to.UTC()).
		Order("appointment_date asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}

	bookings := make([]scheduling.Booking, 0, len(rows))
	for _, a := range rows {
		bookings = append(bookings, scheduling.Booking{
			DoctorID:        a.DoctorID,
			AppointmentDate: a.AppointmentDate,
			Status:          a.Status,
		})
	}
	return bookings, nil
}

// HasConfirmed reports whether the doctor has a confirmed appointment at exactly at.
func (r *AppointmentRepository) HasConfirmed(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND status = ?", doctorID, at.UTC(), models.StatusConfirmed).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count confirmed appointments: %w", err)
	}
	return count > 0, nil
}

// CreateAppointment inserts an appointment. Confirmed appointments also claim
// their slot; a second claim of the same slot fails with ErrConflict.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, in scheduling.NewAppointment) (*models.Appointment, error) {
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	appt := &models.Appointment{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		AppointmentDate: in.AppointmentDate.UTC(),
		Status:          status,
		Notes:           in.Notes,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(appt).Error; err != nil {
			return err
		}
		if status == models.StatusConfirmed {
			return claimSlot(tx, appt)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return appt, nil
}

// UpdateStatus moves an appointment along the status machine. Entering
// CONFIRMED claims the slot and leaving it releases the claim.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, to models.AppointmentStatus, notes string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, "id = ?", id).Error; err != nil {
			return err
		}
		return applyStatus(tx, &appt, to, notes)
	})
	if err != nil {
		return nil, translate(err)
	}
	return &appt, nil
}

// applyStatus writes the transition only if the row still holds the status
// and date appt was read with, so claim bookkeeping never runs on a stale read.
func applyStatus(tx *gorm.DB, appt *models.Appointment, to models.AppointmentStatus, notes string) error {
	from := appt.Status
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	updates := map[string]interface{}{"status": to}
	if notes != "" {
		updates["notes"] = notes
	}
	if err := updateIfUnchanged(tx, appt, updates); err != nil {
		return err
	}

	if from == models.StatusConfirmed {
		if err := releaseSlot(tx, appt.ID); err != nil {
			return err
		}
	}
	appt.Status = to
	if notes != "" {
		appt.Notes = notes
	}
	if to == models.StatusConfirmed {
		return claimSlot(tx, appt)
	}
	return nil
}

// RescheduleAppointment moves a non-terminal appointment to at, moving its
// slot claim when it is confirmed.
func (r *AppointmentRepository) RescheduleAppointment(ctx context.Context, id string, at time.Time) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, "id = ?", id).Error; err != nil {
			return err
		}
		return applyReschedule(tx, &appt, at)
	})
	if err != nil {
		return nil, translate(err)
	}
	return &appt, nil
}

func applyReschedule(tx *gorm.DB, appt *models.Appointment, at time.Time) error {
	if appt.Status.Terminal() {
		return fmt.Errorf("%w: %s appointments cannot be rescheduled", ErrInvalidTransition, appt.Status)
	}
	if err := updateIfUnchanged(tx, appt, map[string]interface{}{"appointment_date": at.UTC()}); err != nil {
		return err
	}
	appt.AppointmentDate = at.UTC()
	if appt.Status != models.StatusConfirmed {
		return nil
	}
	if err := releaseSlot(tx, appt.ID); err != nil {
		return err
	}
	return claimSlot(tx, appt)
}

// updateIfUnchanged applies updates guarded by the status and date appt was
// read with. A concurrent change makes it match no row.
func updateIfUnchanged(tx *gorm.DB, appt *models.Appointment, updates map[string]interface{}) error {
	res := tx.Model(&models.Appointment{}).
		Where("id = ? AND status = ? AND appointment_date = ?", appt.ID, appt.Status, appt.AppointmentDate.UTC()).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: appointment %s changed concurrently", ErrInvalidTransition, appt.ID)
	}
	return nil
}

// GetByID loads an appointment with its patient and doctor.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.withParties(ctx).First(&appt, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &appt, nil
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	return r.list(ctx, "patient_id = ?", patientID)
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	return r.list(ctx, "doctor_id = ?", doctorID)
}

func (r *AppointmentRepository) ListAll(ctx context.Context) ([]models.Appointment, error) {
	return r.list(ctx, "")
}

func (r *AppointmentRepository) list(ctx context.Context, where string, args ...interface{}) ([]models.Appointment, error) {
	q := r.withParties(ctx).Order("appointment_date asc")
	if where != "" {
		q = q.Where(where, args...)
	}
	appointments := []models.Appointment{}
	if err := q.Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (r *AppointmentRepository) withParties(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Patient").Preload("Doctor")
}

func claimSlot(tx *gorm.DB, appt *models.Appointment) error {
	return tx.Create(&models.BookedSlot{
		DoctorID:      appt.DoctorID,
		SlotTime:      appt.AppointmentDate.UTC(),
		AppointmentID: appt.ID,
	}).Error
}

func releaseSlot(tx *gorm.DB, appointmentID string) error {
	return tx.Where("appointment_id = ?", appointmentID).Delete(&models.BookedSlot{}).Error
}

// translate maps driver errors onto the repository's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// isDuplicate recognises unique-constraint violations. Not every dialector
// translates them into gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
