package icp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/results"
)

func ptr(v float64) *float64 { return &v }

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  *Sample
	}{
		{name: "day", label: "Serum_MH_011_Day5_5x", want: &Sample{ExperimentID: "Serum_MH_011", Time: 5, DilutionFactor: 5}},
		{name: "hyphenated id", label: "Serum-MH-025_Time3_10x", want: &Sample{ExperimentID: "Serum-MH-025", Time: 3, DilutionFactor: 10}},
		{name: "decimals without x", label: "HPHT_001-2_day0.5_2.5", want: &Sample{ExperimentID: "HPHT_001-2", Time: 0.5, DilutionFactor: 2.5}},
		{name: "standard", label: "Standard 1", want: nil},
		{name: "blank", label: "Blank", want: nil},
		{name: "no id", label: "_Day5_5x", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.label))
		})
	}
}

func TestProcessLongFormat(t *testing.T) {
	rows := []Measurement{
		{Label: "Serum_MH_011_Day5_5x", ElementLabel: "Fe 238.204", Concentration: ptr(2), Intensity: ptr(100)},
		{Label: "Serum_MH_011_Day5_5x", ElementLabel: "Fe 259.940", Concentration: ptr(3), Intensity: ptr(500)},
		{Label: "Serum_MH_011_Day5_5x", ElementLabel: "Al 394.401", Concentration: ptr(1.5), Intensity: ptr(10)},
		{Label: "Serum_MH_011_Day5_5x", ElementLabel: "Li 670.783", Concentration: nil, Intensity: ptr(10)},
		{Label: "Blank 1", ElementLabel: "Fe 238.204", Concentration: ptr(0.1), Intensity: ptr(1)},
		{Label: "Rinse", ElementLabel: "Fe 238.204", Concentration: ptr(0.1), Intensity: ptr(1), Type: "BLK"},
		{Label: "Standard 2", ElementLabel: "Fe 238.204", Concentration: ptr(10), Intensity: ptr(900)},
		{Label: "HPHT_002_Time1_2x", ElementLabel: "Mg 285.213", Concentration: ptr(4), Intensity: nil},
	}

	payloads, errs := ProcessLongFormat(rows)
	require.Len(t, payloads, 2)
	assert.Equal(t, results.Payload{
		"experiment_id":      "Serum_MH_011",
		"time_post_reaction": 5.0,
		"dilution_factor":    5.0,
		"raw_label":          "Serum_MH_011_Day5_5x",
		"fe":                 15.0,
		"al":                 7.5,
	}, payloads[0])
	assert.Equal(t, 8.0, payloads[1]["mg"])
	assert.Equal(t, "HPHT_002", payloads[1]["experiment_id"])

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Standard 2")
}

func TestProcessLongFormat_OnlyBlanks(t *testing.T) {
	payloads, errs := ProcessLongFormat([]Measurement{{Label: "Blank", ElementLabel: "Fe 1"}})
	assert.Empty(t, payloads)
	assert.Equal(t, []string{"no non-blank samples found in data"}, errs)
}

func TestReadCSV(t *testing.T) {
	t.Run("reads measurements", func(t *testing.T) {
		in := "Label,Type,Element Label,Concentration,Intensity\n" +
			"Serum_MH_011_Day5_5x,Sample,Fe 238.204,2.5,1000\n" +
			",,,,\n" +
			"Serum_MH_011_Day5_5x,Sample,Al 394.401,####,n/a\n"

		rows, err := ReadCSV(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "fe", rows[0].Element())
		assert.Equal(t, 2.5, *rows[0].Concentration)
		assert.Equal(t, "Sample", rows[0].Type)
		assert.Nil(t, rows[1].Concentration)
		assert.Nil(t, rows[1].Intensity)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("Label,Concentration\nA,1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "element label")
		assert.Contains(t, err.Error(), "intensity")
	})
}
