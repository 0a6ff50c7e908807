package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnyToType(t *testing.T) {
	f, err := AnyToType[float64](3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	i, err := AnyToType[int64](7.0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	_, err = AnyToType[float64]("3")
	assert.Error(t, err)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    *float64
		wantErr bool
	}{
		{name: "nil", input: nil},
		{name: "empty string", input: "  "},
		{name: "nan string", input: "NaN"},
		{name: "nan float", input: math.NaN()},
		{name: "float", input: 7.2, want: ptr(7.2)},
		{name: "int", input: 120, want: ptr(120.0)},
		{name: "numeric string", input: " 5.00003 ", want: ptr(5.00003)},
		{name: "garbage", input: "n.d.", wantErr: true},
		{name: "infinite string", input: "Inf", wantErr: true},
		{name: "bool", input: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToInt64(t *testing.T) {
	got, err := ToInt64("4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), *got)

	_, err = ToInt64(4.5)
	assert.Error(t, err)
}

func TestToTime(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  time.Time
	}{
		{name: "date", input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: "2024-03-01T10:30:00Z", want: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{name: "us", input: "03/01/2024", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToTime(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(*got))
		})
	}

	_, err := ToTime("yesterday")
	assert.Error(t, err)
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(true))
	assert.True(t, ToBool("true"))
	assert.True(t, ToBool(1))
	assert.False(t, ToBool("no"))
	assert.False(t, ToBool(nil))
}

func ptr[T any](v T) *T {
	return &v
}
