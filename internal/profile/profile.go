package profile

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const legacySep = "|"

// Profile describes who prepares attendance for an owner scope.
type Profile struct {
	PreparerName string `json:"preparer_name" validate:"required,max=120"`
	UnitLabel    string `json:"unit_label" validate:"max=40"`
	GroupLabel   string `json:"group_label" validate:"max=160"`
	SyncURL      string `json:"sync_url,omitempty" validate:"omitempty,url"`
}

var validate = validator.New()

// Normalize trims every field and canonicalises the unit label.
func (p Profile) Normalize() Profile {
	return Profile{
		PreparerName: NormalizeText(p.PreparerName),
		UnitLabel:    NormalizeUnit(p.UnitLabel),
		GroupLabel:   NormalizeText(p.GroupLabel),
		SyncURL:      strings.TrimSpace(p.SyncURL),
	}
}

// Validate checks field constraints.
func (p Profile) Validate() error {
	return validate.Struct(p)
}

// ParseLegacy reads the "Name|Unit|Group" display-name encoding. Missing parts
// are left empty; fallback is used as the preparer name when the first part is blank.
func ParseLegacy(displayName, fallback string) Profile {
	parts := strings.Split(displayName, legacySep)
	get := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	p := Profile{
		PreparerName: get(0),
		UnitLabel:    get(1),
		GroupLabel:   get(2),
	}.Normalize()
	if p.PreparerName == "" {
		p.PreparerName = NormalizeText(fallback)
	}
	return p
}

// Legacy encodes the profile in the "Name|Unit|Group" form.
func (p Profile) Legacy() string {
	n := p.Normalize()
	return strings.Join([]string{n.PreparerName, n.UnitLabel, n.GroupLabel}, legacySep)
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeUnit upper-cases a unit label and strips all whitespace: " 10 a1 " -> "10A1".
func NormalizeUnit(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
