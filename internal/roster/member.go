package roster

import (
	"sort"
	"strings"
	"time"

	"rollcall/internal/profile"
)

// Unassigned is the unit label used for members without one.
const Unassigned = "UNASSIGNED"

// Member is a roster entry owned by one group.
type Member struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	GroupLabel     string    `json:"group_label,omitempty"`
	PreparerName   string    `json:"preparer_name,omitempty"`
	ReferenceImage []byte    `json:"-"`
	PhotoURL       string    `json:"photo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ShortID is the abbreviated id printed in reports.
func (m Member) ShortID() string {
	if len(m.ID) <= 6 {
		return m.ID
	}
	return m.ID[:6]
}

// UnitLabel returns the unit or the Unassigned sentinel.
func (m Member) UnitLabel() string {
	if m.Unit == "" {
		return Unassigned
	}
	return m.Unit
}

// Normalize applies the text rules used on every write.
func (m Member) Normalize() Member {
	m.Name = profile.NormalizeText(m.Name)
	m.Unit = profile.NormalizeUnit(m.Unit)
	m.GroupLabel = profile.NormalizeText(m.GroupLabel)
	m.PreparerName = profile.NormalizeText(m.PreparerName)
	return m
}

// SortByGivenName orders members by their last name token, then by full name,
// ignoring case. Given names come last in the naming convention the rosters use.
func SortByGivenName(members []Member) {
	key := func(name string) (string, string) {
		full := strings.ToLower(strings.TrimSpace(name))
		parts := strings.Fields(full)
		if len(parts) == 0 {
			return "", full
		}
		return parts[len(parts)-1], full
	}
	sort.SliceStable(members, func(i, j int) bool {
		gi, fi := key(members[i].Name)
		gj, fj := key(members[j].Name)
		if gi != gj {
			return gi < gj
		}
		return fi < fj
	})
}

// SortByUnitThenName orders members by unit label, then by name.
func SortByUnitThenName(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Unit != members[j].Unit {
			return members[i].Unit < members[j].Unit
		}
		return members[i].Name < members[j].Name
	})
}

// Filter returns the members owned by ownerID, or all of them when ownerID is empty.
func Filter(members []Member, ownerID string) []Member {
	if ownerID == "" {
		return members
	}
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out
}
