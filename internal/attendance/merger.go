package attendance

import (
	"context"
	"log/slog"

	"rollcall/internal/faceclient"
	"rollcall/internal/metrics"
	"rollcall/internal/session"
)

// Recognizer turns a scene image into the ids of the references found in it.
type Recognizer interface {
	Identify(ctx context.Context, scene []byte, refs []faceclient.Reference) ([]string, error)
}

// Outcome summarises a merge for display.
type Outcome string

const (
	OutcomeMarked      Outcome = "marked"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeAllPresent  Outcome = "already_present"
	OutcomeWriteFailed Outcome = "write_failed"
)

// MergeResult is what a recognition pass changed.
type MergeResult struct {
	Outcome        Outcome  `json:"outcome"`
	Matched        []string `json:"matched"`
	Names          []string `json:"names"`
	Added          []string `json:"added"`
	AlreadyPresent []string `json:"already_present"`
	Unknown        []string `json:"unknown,omitempty"`
	Failed         int      `json:"failed"`
}

// Merger folds recognition results into presence. It only ever adds; removal
// goes through Reconciler.Toggle.
type Merger struct {
	rec     *Reconciler
	store   Store
	vision  Recognizer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewMerger builds a merger writing through rec.
func NewMerger(rec *Reconciler, store Store, vision Recognizer, m *metrics.Metrics, log *slog.Logger) *Merger {
	return &Merger{rec: rec, store: store, vision: vision, metrics: m, log: log.With("owner", rec.scope.OwnerID)}
}

// Recognize sends the frame and the scope's reference images to the vision
// service and merges what it finds.
func (m *Merger) Recognize(ctx context.Context, id session.ID, frame []byte) (MergeResult, error) {
	if err := m.rec.check(id); err != nil {
		return MergeResult{}, err
	}
	members, err := m.store.References(ctx, m.rec.scope.OwnerID)
	if err != nil {
		return MergeResult{}, err
	}
	refs := make([]faceclient.Reference, 0, len(members))
	for _, mem := range members {
		if len(mem.ReferenceImage) == 0 {
			continue
		}
		refs = append(refs, faceclient.Reference{MemberID: mem.ID, Name: mem.Name, Image: mem.ReferenceImage})
	}
	if len(frame) == 0 || len(refs) == 0 {
		m.log.Warn("recognition skipped", "session", id, "frame_bytes", len(frame), "references", len(refs))
		return m.Merge(ctx, id, nil)
	}

	ids, err := m.vision.Identify(ctx, frame, refs)
	if err != nil {
		m.metrics.Recognition("error")
		m.log.Error("recognition failed", "session", id, "error", err)
		return MergeResult{}, err
	}
	return m.Merge(ctx, id, ids)
}

// Merge marks the matched ids that are not yet present. Ids outside the
// scope's roster are reported as unknown and never written.
func (m *Merger) Merge(ctx context.Context, id session.ID, matched []string) (MergeResult, error) {
	res := MergeResult{
		Matched:        []string{},
		Names:          []string{},
		Added:          []string{},
		AlreadyPresent: []string{},
	}
	if err := m.rec.check(id); err != nil {
		return res, err
	}
	if len(matched) == 0 {
		res.Outcome = OutcomeNoMatch
		m.metrics.Recognition(string(res.Outcome))
		return res, nil
	}

	snap, err := m.rec.source.Latest(ctx)
	if err != nil {
		return res, err
	}
	present := snap.Present(id)

	seen := map[string]struct{}{}
	var toAdd []string
	for _, mid := range matched {
		if _, dup := seen[mid]; dup {
			continue
		}
		seen[mid] = struct{}{}
		mem, ok := snap.Member(mid)
		if !ok || mem.OwnerID != m.rec.scope.OwnerID {
			res.Unknown = append(res.Unknown, mid)
			continue
		}
		res.Matched = append(res.Matched, mid)
		res.Names = append(res.Names, mem.Name)
		if present.Has(mid) {
			res.AlreadyPresent = append(res.AlreadyPresent, mid)
			continue
		}
		toAdd = append(toAdd, mid)
	}

	switch {
	case len(res.Matched) == 0:
		res.Outcome = OutcomeNoMatch
	case len(toAdd) == 0:
		res.Outcome = OutcomeAllPresent
	default:
		batch, err := m.rec.MarkBatch(ctx, id, toAdd)
		res.Added = batch.Added
		res.AlreadyPresent = append(res.AlreadyPresent, batch.AlreadyPresent...)
		res.Unknown = append(res.Unknown, batch.Unknown...)
		res.Failed = batch.Failed
		if err != nil {
			res.Outcome = OutcomeWriteFailed
			m.metrics.Recognition(string(res.Outcome))
			return res, err
		}
		res.Outcome = OutcomeMarked
	}
	m.metrics.Recognition(string(res.Outcome))
	m.log.Info("recognition merged", "session", id, "outcome", res.Outcome, "matched", len(res.Matched), "added", len(res.Added), "unknown", len(res.Unknown))
	return res, nil
}
