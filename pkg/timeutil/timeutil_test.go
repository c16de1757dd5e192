package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, AlmatyTZ, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestClock_TodayFollowsLocation(t *testing.T) {
	// 20:30 UTC is already the next day in Almaty.
	at := time.Date(2024, 3, 10, 20, 30, 0, 0, time.UTC)

	assert.Equal(t, MustParseDate("2024-03-10"), FixedClock{At: at}.Today())
	assert.Equal(t, MustParseDate("2024-03-11"), FixedClock{At: at.In(AlmatyTZ)}.Today())

	clock := NewSystemClock(nil)
	assert.Equal(t, AlmatyTZ, clock.Location())
	assert.Equal(t, DateOf(clock.Now()), clock.Today())
}

func TestDate(t *testing.T) {
	d := MustParseDate("2024-02-28")

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", MustParseDate("2024-01-01").AddDays(-1).String())

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 0, d.Compare(MustParseDate("2024-02-28")))
	assert.Equal(t, 2, DaysBetween(d, d.AddDays(2)))
	assert.Equal(t, -366, DaysBetween(d, MustParseDate("2023-02-27")))

	assert.True(t, Date{}.IsZero())
	assert.Equal(t, time.Date(2024, 2, 28, 0, 0, 0, 0, AlmatyTZ), d.In(AlmatyTZ))

	_, err := ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Day Date `json:"day"`
	}

	raw, err := json.Marshal(payload{Day: MustParseDate("2024-03-10")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-03-10"}`, string(raw))

	var back payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, MustParseDate("2024-03-10"), back.Day)

	assert.Error(t, json.Unmarshal([]byte(`{"day":"10.03.2024"}`), &back))
}
