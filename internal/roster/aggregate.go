package roster

import (
	"math"
	"sort"
)

// PresenceSet is the set of member ids present in one session. Membership is
// the only presence signal; a missing id means absent.
type PresenceSet map[string]struct{}

// NewPresenceSet builds a set from ids.
func NewPresenceSet(ids ...string) PresenceSet {
	s := make(PresenceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether memberID is present.
func (s PresenceSet) Has(memberID string) bool {
	_, ok := s[memberID]
	return ok
}

// IDs returns the members of the set in sorted order.
func (s PresenceSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Split is a present/absent partition of a roster.
type Split struct {
	Present []Member `json:"present"`
	Absent  []Member `json:"absent"`
}

// Total is the roster size.
func (s Split) Total() int { return len(s.Present) + len(s.Absent) }

// Group aggregates one unit.
type Group struct {
	Unit    string   `json:"unit"`
	Members []Member `json:"members"`
	Present int      `json:"present"`
	Total   int      `json:"total"`
	Percent int      `json:"percent"`
}

// Partition splits members into present and absent, preserving roster order.
func Partition(members []Member, present PresenceSet) Split {
	split := Split{Present: []Member{}, Absent: []Member{}}
	for _, m := range members {
		if present.Has(m.ID) {
			split.Present = append(split.Present, m)
		} else {
			split.Absent = append(split.Absent, m)
		}
	}
	return split
}

// GroupByUnit buckets members by unit label with per-group counts, sorted by label.
func GroupByUnit(members []Member, present PresenceSet) []Group {
	idx := map[string]int{}
	var groups []Group
	for _, m := range members {
		label := m.UnitLabel()
		i, ok := idx[label]
		if !ok {
			i = len(groups)
			idx[label] = i
			groups = append(groups, Group{Unit: label})
		}
		g := &groups[i]
		g.Members = append(g.Members, m)
		g.Total++
		if present.Has(m.ID) {
			g.Present++
		}
	}
	for i := range groups {
		groups[i].Percent = Percent(groups[i].Present, groups[i].Total)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Unit < groups[j].Unit })
	return groups
}

// Percent returns round(n/total*100), or 0 when total is 0.
func Percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
