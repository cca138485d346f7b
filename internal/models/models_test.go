package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusConfirmed, StatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, AppointmentStatus("BOOKED").Valid())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleDoctor, ParseRole("doctor"))
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.Equal(t, RolePatient, ParseRole("patient"))
	assert.Equal(t, RolePatient, ParseRole("nurse"))
	assert.Equal(t, RolePatient, ParseRole(""))
}

func TestUserPassword(t *testing.T) {
	u := &User{Email: "anna@example.com"}
	require.NoError(t, u.SetPassword("s3cret!"))

	assert.NotEqual(t, "s3cret!", u.Password)
	assert.True(t, u.CheckPassword("s3cret!"))
	assert.False(t, u.CheckPassword("wrong"))

	view := u.Sanitize()
	assert.Equal(t, "anna@example.com", view.Email)
}
