package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantKind      Kind
		wantBase      string
		wantDeriv     int
		hasDeriv      bool
		wantTreatment string
		ambiguous     bool
	}{
		{name: "sequential", input: "HPHT_MH_001-2", wantKind: KindSequential, wantBase: "HPHT_MH_001", wantDeriv: 2, hasDeriv: true},
		{name: "treatment", input: "HPHT_MH_001_Desorption", wantKind: KindTreatment, wantBase: "HPHT_MH_001", wantTreatment: "Desorption"},
		{name: "sequential treatment", input: "HPHT_MH_001-2_Desorption", wantKind: KindSequentialTreatment, wantBase: "HPHT_MH_001", wantDeriv: 2, hasDeriv: true, wantTreatment: "Desorption"},
		{name: "root", input: "HPHT_MH_001", wantKind: KindRoot, wantBase: "HPHT_MH_001"},
		{name: "short sequential", input: "HPHT_001-3", wantKind: KindSequential, wantBase: "HPHT_001", wantDeriv: 3, hasDeriv: true},
		{name: "three segments never treatment", input: "HPHT_001_Desorption", wantKind: KindRoot, wantBase: "HPHT_001_Desorption"},
		{name: "numeric last segment", input: "HPHT_MH_001_002", wantKind: KindRoot, wantBase: "HPHT_MH_001_002"},
		{name: "treatment with number suffix", input: "HPHT_MH_001_Desorption-2", wantKind: KindTreatment, wantBase: "HPHT_MH_001", wantTreatment: "Desorption-2", ambiguous: true},
		{name: "trailing underscore", input: "HPHT_MH_001_", wantKind: KindRoot, wantBase: "HPHT_MH_001_"},
		{name: "hyphen text", input: "SERUM-A", wantKind: KindRoot, wantBase: "SERUM-A"},
		{name: "surrounding whitespace", input: "  HPHT_051-2 ", wantKind: KindSequential, wantBase: "HPHT_051", wantDeriv: 2, hasDeriv: true},
		{name: "empty", input: "   ", wantKind: KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantBase, got.Base)
			assert.Equal(t, tt.hasDeriv, got.HasDerivation)
			assert.Equal(t, tt.wantDeriv, got.Derivation)
			assert.Equal(t, tt.wantTreatment, got.Treatment)
			assert.Equal(t, tt.ambiguous, got.Ambiguous)

			// pure
			assert.Equal(t, got, Parse(tt.input))
		})
	}
}

func TestParsed_Tuple(t *testing.T) {
	base, deriv, treatment := Parse("HPHT_MH_001-2_Desorption").Tuple()
	assert.Equal(t, "HPHT_MH_001", *base)
	assert.Equal(t, 2, *deriv)
	assert.Equal(t, "Desorption", *treatment)

	base, deriv, treatment = Parse("HPHT_MH_001-2").Tuple()
	assert.Equal(t, "HPHT_MH_001", *base)
	assert.Equal(t, 2, *deriv)
	assert.Nil(t, treatment)

	base, deriv, treatment = Parse("").Tuple()
	assert.Nil(t, base)
	assert.Nil(t, deriv)
	assert.Nil(t, treatment)
}

func TestParsed_Predicates(t *testing.T) {
	assert.False(t, Parse("HPHT_001").IsDerivation())
	assert.True(t, Parse("HPHT_001-2").IsDerivation())
	assert.False(t, Parse("HPHT_001-2").IsTreatment())
	assert.True(t, Parse("HPHT_MH_001_Desorption").IsTreatment())
	assert.Equal(t, "HPHT_MH_001-2", Parse("HPHT_MH_001-2_Desorption").SequentialParent())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "HPHT_MH_001-2", want: "hphtmh0012"},
		{input: "hpht-mh 001_2", want: "hphtmh0012"},
		{input: "", want: ""},
		{input: "ÉTUDE_01", want: "Étude01"},
		{input: "HPHT_İ_001", want: "hphtİ001"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}
