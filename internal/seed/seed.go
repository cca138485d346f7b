// Package seed fills a database with demo users, doctors and appointments.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
)

const (
	AdminEmail    = "admin@clinic.local"
	AdminPassword = "admin123"

	// DemoPassword is shared by every generated doctor and patient.
	DemoPassword = "password123"
)

// Options controls how much data is generated.
type Options struct {
	Doctors               int
	Patients              int
	AppointmentsPerDoctor int
	// Anchor is the first day of the week appointments are spread over.
	Anchor time.Time
}

// Result counts what was created.
type Result struct {
	Doctors      int
	Patients     int
	Appointments int
}

// Run seeds the database. The admin account is created once; doctors,
// patients and appointments are added on every run.
func Run(ctx context.Context, db *gorm.DB, planner *scheduling.Planner, guard *scheduling.Guard, opts Options, log zerolog.Logger) (*Result, error) {
	if err := ensureAdmin(ctx, db); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	res := &Result{}
	doctors := make([]*models.User, 0, opts.Doctors)
	for i := 0; i < opts.Doctors; i++ {
		doc, err := createDoctor(ctx, db, models.Specializations[i%len(models.Specializations)])
		if err != nil {
			return nil, fmt.Errorf("seed doctor: %w", err)
		}
		doctors = append(doctors, doc)
		res.Doctors++
	}
	log.Info().Int("count", res.Doctors).Msg("doctors seeded")

	patients := make([]*models.User, 0, opts.Patients)
	for i := 0; i < opts.Patients; i++ {
		p, err := createUser(ctx, db, models.RolePatient)
		if err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		patients = append(patients, p)
		res.Patients++
	}
	log.Info().Int("count", res.Patients).Msg("patients seeded")

	if len(patients) == 0 || opts.AppointmentsPerDoctor <= 0 {
		return res, nil
	}

	anchor := opts.Anchor
	if anchor.IsZero() {
		anchor = time.Now()
	}
	for _, doc := range doctors {
		plan, err := planner.Plan(doc.ID, anchor, nil)
		if err != nil {
			return nil, err
		}
		if len(plan.Slots) == 0 {
			continue
		}
		for i := 0; i < opts.AppointmentsPerDoctor; i++ {
			slot := plan.Slots[gofakeit.Number(0, len(plan.Slots)-1)]
			patient := patients[gofakeit.Number(0, len(patients)-1)]
			_, err := guard.Book(ctx, scheduling.BookingRequest{
				DoctorID:        doc.ID,
				PatientID:       patient.ID,
				AppointmentDate: slot.StartTime,
				Notes:           "seeded",
			})
			if errors.Is(err, scheduling.ErrSlotAlreadyBooked) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("seed appointment: %w", err)
			}
			res.Appointments++
		}
	}
	log.Info().Int("count", res.Appointments).Msg("appointments seeded")
	return res, nil
}

func ensureAdmin(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", AdminEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	admin := &models.User{
		Email:     AdminEmail,
		INN:       "000000000000",
		Phone:     "+70000000000",
		FirstName: "Clinic",
		LastName:  "Admin",
		Role:      models.RoleAdmin,
	}
	if err := admin.SetPassword(AdminPassword); err != nil {
		return err
	}
	return db.WithContext(ctx).Create(admin).Error
}

func createUser(ctx context.Context, db *gorm.DB, role models.Role) (*models.User, error) {
	u := &models.User{
		Email:     gofakeit.Email(),
		INN:       gofakeit.Numerify("############"),
		Phone:     gofakeit.Phone(),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Role:      role,
	}
	if err := u.SetPassword(DemoPassword); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func createDoctor(ctx context.Context, db *gorm.DB, spec models.Specialization) (*models.User, error) {
	u, err := createUser(ctx, db, models.RoleDoctor)
	if err != nil {
		return nil, err
	}
	profile := &models.DoctorProfile{
		UserID:         u.ID,
		Specialization: spec,
		Education:      fmt.Sprintf("%s Medical University", gofakeit.City()),
		Experience:     fmt.Sprintf("%d years", gofakeit.Number(1, 35)),
		Description:    fmt.Sprintf("Practising %s, previously at %s.", spec, gofakeit.Company()),
	}
	if err := db.WithContext(ctx).Omit("User").Create(profile).Error; err != nil {
		return nil, err
	}
	return u, nil
}
