package report

import (
	"errors"
	"fmt"
	"time"

	"rollcall/internal/session"
)

// ErrEmptyRange means a range or all-time selector matched no sessions.
var ErrEmptyRange = errors.New("no data in range")

// Kind selects which sessions an export covers.
type Kind string

const (
	Single Kind = "single"
	Range  Kind = "range"
	All    Kind = "all"
)

// ParseKind accepts single, range or all; the empty string means single.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", Single:
		return Single, nil
	case Range, All:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown range kind %q", s)
}

// Selector describes the export's session set.
type Selector struct {
	Kind    Kind
	Session session.ID
	Start   time.Time
	End     time.Time
}

// Label is the human-readable description printed in the report header.
func (s Selector) Label() string {
	switch s.Kind {
	case Range:
		return session.FormatDate(s.Start) + " to " + session.FormatDate(s.End)
	case All:
		return "All sessions"
	default:
		return string(s.Session)
	}
}

// ResolveSessions picks the sessions the export covers, in chronological order.
// known is every session id seen in the store; malformed ids are skipped.
func ResolveSessions(sel Selector, known []session.ID) ([]session.ID, error) {
	if sel.Kind == Single || sel.Kind == "" {
		if _, _, err := session.Parse(sel.Session); err != nil {
			return nil, err
		}
		return []session.ID{sel.Session}, nil
	}
	if sel.Kind == Range && sel.End.Before(sel.Start) {
		return nil, fmt.Errorf("%w: end before start", ErrEmptyRange)
	}

	seen := make(map[session.ID]struct{}, len(known))
	var out []session.ID
	for _, id := range known {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !id.Valid() {
			continue
		}
		if sel.Kind == Range {
			ok, _ := session.Within(id, sel.Start, sel.End)
			if !ok {
				continue
			}
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, ErrEmptyRange
	}
	session.Sort(out)
	return out, nil
}
