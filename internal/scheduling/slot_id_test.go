package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotID_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)
	id := SlotID(at)
	assert.Equal(t, "2024-03-08-09-00", id)

	parsed, err := ParseSlotID(id, time.UTC)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestParseSlotID_UsesLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	parsed, err := ParseSlotID("2024-03-18-10-00", msk)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 7, 0, 0, 0, time.UTC), parsed.UTC())
}

func TestParseSlotID_Invalid(t *testing.T) {
	for _, id := range []string{
		"",
		"2024-03-18",
		"2024-03-18-10",
		"2024-03-18-10-00-00",
		"2024-xx-18-10-00",
		"2024-13-18-10-00",
		"2024-02-30-10-00",
		"2024-03-18-24-00",
		"2024-03-18-10-60",
		"2024--3-18-10-00",
	} {
		_, err := ParseSlotID(id, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidInput, id)
	}
}

func TestParseAnchorDate(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	got, err := ParseAnchorDate("", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = ParseAnchorDate("2024-03-18", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseAnchorDate("2024-03-18T10:00:00Z", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC), got)

	for _, raw := range []string{"tomorrow", "18.03.2024", "2024-13-01"} {
		_, err := ParseAnchorDate(raw, time.UTC, now)
		assert.ErrorIs(t, err, ErrInvalidInput, raw)
	}
}
