package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		fallback string
		want     Profile
	}{
		{
			name: "all parts",
			in:   " Ms Lan | 10 a1 | Nguyen Du High ",
			want: Profile{PreparerName: "Ms Lan", UnitLabel: "10A1", GroupLabel: "Nguyen Du High"},
		},
		{
			name:     "name only",
			in:       "Ms Lan",
			fallback: "lan@example.com",
			want:     Profile{PreparerName: "Ms Lan"},
		},
		{
			name:     "empty uses fallback",
			in:       "",
			fallback: "lan@example.com",
			want:     Profile{PreparerName: "lan@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLegacy(tt.in, tt.fallback))
		})
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	p := Profile{PreparerName: "Mr Binh", UnitLabel: "11B2", GroupLabel: "Chu Van An"}
	assert.Equal(t, "Mr Binh|11B2|Chu Van An", p.Legacy())
	assert.Equal(t, p, ParseLegacy(p.Legacy(), ""))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Profile{PreparerName: "A"}.Validate())
	assert.Error(t, Profile{}.Validate())
	assert.Error(t, Profile{PreparerName: "A", SyncURL: "not a url"}.Validate())
	assert.NoError(t, Profile{PreparerName: "A", SyncURL: "https://hooks.example.com/x"}.Validate())
}

func TestNormalizeUnit(t *testing.T) {
	assert.Equal(t, "10A1", NormalizeUnit(" 10 a1 "))
	assert.Equal(t, "", NormalizeUnit("   "))
}
