package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathew-h/experiment-tracking-sub000/internal/testutil"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
)

func TestCalculateYields_Ammonium(t *testing.T) {
	cond := &models.Conditions{RockMassG: testutil.Ptr(10.0), WaterVolumeML: testutil.Ptr(100.0)}

	tests := []struct {
		name string
		res  models.ScalarResult
		want *float64
	}{
		{
			name: "default background and water volume",
			res:  models.ScalarResult{GrossAmmoniumConcentrationMM: testutil.Ptr(10.3)},
			// 10 mM * 0.1 L * 18.04 g/mol = 0.01804 g over 10 g of rock
			want: testutil.Ptr(1804.0),
		},
		{
			name: "sampling volume wins",
			res: models.ScalarResult{
				GrossAmmoniumConcentrationMM:      testutil.Ptr(5.0),
				BackgroundAmmoniumConcentrationMM: testutil.Ptr(0.0),
				SamplingVolumeML:                  testutil.Ptr(50.0),
			},
			want: testutil.Ptr(451.0),
		},
		{
			name: "net is never negative",
			res:  models.ScalarResult{GrossAmmoniumConcentrationMM: testutil.Ptr(0.1)},
			want: testutil.Ptr(0.0),
		},
		{
			name: "no concentration",
			res:  models.ScalarResult{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			CalculateYields(&res, cond)
			if tt.want == nil {
				assert.Nil(t, res.GramsPerTonYield)
				return
			}
			require.NotNil(t, res.GramsPerTonYield)
			assert.InDelta(t, *tt.want, *res.GramsPerTonYield, 1e-6)
		})
	}

	res := models.ScalarResult{GrossAmmoniumConcentrationMM: testutil.Ptr(10.3)}
	CalculateYields(&res, nil)
	assert.Nil(t, res.GramsPerTonYield, "no rock mass without conditions")
}

func TestCalculateYields_Hydrogen(t *testing.T) {
	cond := &models.Conditions{RockMassG: testutil.Ptr(2.0)}
	res := models.ScalarResult{
		H2Concentration:        testutil.Ptr(1.0),
		H2ConcentrationUnit:    testutil.Ptr("%"),
		GasSamplingVolumeML:    testutil.Ptr(100.0),
		GasSamplingPressureMPa: testutil.Ptr(0.101325),
	}
	CalculateYields(&res, cond)

	moles := 0.101325 * 9.86923 * 0.1 / (0.082057 * 298.15)
	require.NotNil(t, res.H2Micromoles)
	assert.InDelta(t, moles*0.01*1e6, *res.H2Micromoles, 1e-9)
	require.NotNil(t, res.H2MassUg)
	assert.InDelta(t, moles*0.01*2.01588*1e6, *res.H2MassUg, 1e-9)
	require.NotNil(t, res.H2GramsPerTonYield)
	assert.InDelta(t, *res.H2MassUg/2, *res.H2GramsPerTonYield, 1e-9)

	ppm := res
	ppm.H2Concentration = testutil.Ptr(10000.0)
	ppm.H2ConcentrationUnit = nil
	CalculateYields(&ppm, cond)
	require.NotNil(t, ppm.H2Micromoles)
	assert.InDelta(t, *res.H2Micromoles, *ppm.H2Micromoles, 1e-9, "10000 ppm is 1%")

	invalid := res
	invalid.GasSamplingPressureMPa = testutil.Ptr(0.0)
	CalculateYields(&invalid, cond)
	assert.Nil(t, invalid.H2Micromoles)
	assert.Nil(t, invalid.H2MassUg)
	assert.Nil(t, invalid.H2GramsPerTonYield)
}
