package seed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/testutil"
)

func TestRun(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	planner, err := scheduling.NewPlanner(scheduling.WithLocation(time.UTC))
	require.NoError(t, err)
	guard := scheduling.NewGuard(repository.NewAppointmentRepository(db), nil)

	opts := Options{
		Doctors:               3,
		Patients:              5,
		AppointmentsPerDoctor: 4,
		Anchor:                time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
	}
	res, err := Run(ctx, db, planner, guard, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Doctors)
	assert.Equal(t, 5, res.Patients)
	assert.LessOrEqual(t, res.Appointments, 12)
	assert.Positive(t, res.Appointments)

	var profiles int64
	require.NoError(t, db.Model(&models.DoctorProfile{}).Count(&profiles).Error)
	assert.EqualValues(t, 3, profiles)

	var admin models.User
	require.NoError(t, db.First(&admin, "email = ?", AdminEmail).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.CheckPassword(AdminPassword))

	var confirmed []models.Appointment
	require.NoError(t, db.Where("status = ?", models.StatusConfirmed).Find(&confirmed).Error)
	assert.Len(t, confirmed, res.Appointments)
	seen := map[string]bool{}
	for _, a := range confirmed {
		key := a.DoctorID + scheduling.SlotID(a.AppointmentDate.UTC())
		assert.False(t, seen[key], "double booking of %s", key)
		seen[key] = true
	}

	// A second run keeps the single admin.
	_, err = Run(ctx, db, planner, guard, Options{}, zerolog.Nop())
	require.NoError(t, err)
	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)
}
