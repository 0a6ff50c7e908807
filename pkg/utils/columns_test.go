package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID       int64      `db:"id"`
	PH       *float64   `db:"final_ph" json:"final_ph" validate:"omitempty,gte=0"`
	Unit     *string    `db:"unit" json:"unit" validate:"omitempty,oneof=% ppm"`
	Count    *int64     `db:"count"`
	Measured *time.Time `db:"measured"`
	Ignored  string
}

func TestColumnValues(t *testing.T) {
	ph := 7.2
	values := ColumnValues(&sample{ID: 3, PH: &ph})

	assert.Equal(t, map[string]any{
		"id":       int64(3),
		"final_ph": 7.2,
		"unit":     nil,
		"count":    nil,
		"measured": nil,
	}, values)
	assert.Equal(t, []string{"id", "final_ph", "unit", "count", "measured"}, ColumnNames(sample{}))
}

func TestSetColumn(t *testing.T) {
	s := &sample{}

	require.NoError(t, SetColumn(s, "final_ph", "7.25"))
	require.NoError(t, SetColumn(s, "unit", "ppm"))
	require.NoError(t, SetColumn(s, "count", 3.0))
	require.NoError(t, SetColumn(s, "measured", "2024-01-02"))

	assert.Equal(t, 7.25, *s.PH)
	assert.Equal(t, "ppm", *s.Unit)
	assert.Equal(t, int64(3), *s.Count)
	assert.Equal(t, 2024, s.Measured.Year())

	require.NoError(t, SetColumn(s, "final_ph", ""))
	assert.Nil(t, s.PH)

	assert.Error(t, SetColumn(s, "final_ph", "abc"))
	assert.Error(t, SetColumn(s, "id", 1))
	assert.Error(t, SetColumn(s, "missing", 1))
}

func TestFieldErrors(t *testing.T) {
	neg := -1.0
	bad := "mol"
	errs := FieldErrors(sample{PH: &neg, Unit: &bad})

	require.Len(t, errs, 2)
	assert.Contains(t, errs["final_ph"], "gte")
	assert.Contains(t, errs["unit"], "oneof")

	ok := 1.0
	assert.Nil(t, FieldErrors(sample{PH: &ok}))
}
