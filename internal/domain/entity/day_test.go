package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf_DependsOnLocation(t *testing.T) {
	instant := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	assert.Equal(t, Day("2026-03-02"), DayOf(instant, time.UTC))
	assert.Equal(t, Day("2026-03-01"), DayOf(instant, ny))
	assert.Equal(t, Day("2026-03-02"), DayOf(instant, nil))
}

func TestDay_Arithmetic(t *testing.T) {
	d := Day("2026-03-01")

	assert.Equal(t, Day("2026-02-28"), d.Yesterday())
	assert.Equal(t, Day("2026-03-04"), d.AddDays(3))
	assert.True(t, d.Yesterday().Before(d))
	assert.False(t, d.Before(d))
	assert.Equal(t, Day("garbage"), Day("garbage").AddDays(1))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, Day("2026-12-31"), d)

	_, err = ParseDay("31/12/2026")
	assert.Error(t, err)
}

func TestNextMidnight(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), NextMidnight(now, time.UTC))
}

func TestActor_Today(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, Day("2026-03-02"), NewActor("u", tokyo).Today(now))
	assert.Equal(t, Day("2026-03-01"), Actor{UserID: "u"}.Today(now))
}
