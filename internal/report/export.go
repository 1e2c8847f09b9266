package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/metrics"
	"rollcall/internal/profile"
	"rollcall/internal/session"
)

// Loader reads a snapshot for a filter. attendance.Service is one.
type Loader interface {
	Snapshot(ctx context.Context, f attendance.Filter) (*attendance.Snapshot, error)
}

// Request is one export call.
type Request struct {
	Scope    attendance.Scope
	Selector Selector
	Profile  profile.Profile
}

// Artifact is a rendered export.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Result is what an export produced. NoData is set, and Artifact nil, when a
// range matched no sessions.
type Result struct {
	NoData   bool
	Sessions []session.ID
	Matrix   Matrix
	Artifact *Artifact
}

// Exporter resolves, builds and renders absentee reports.
type Exporter struct {
	loader   Loader
	renderer Renderer
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// NewExporter builds an exporter. A nil renderer means HTMLRenderer.
func NewExporter(loader Loader, renderer Renderer, m *metrics.Metrics, log *slog.Logger) *Exporter {
	if renderer == nil {
		renderer = HTMLRenderer{}
	}
	return &Exporter{loader: loader, renderer: renderer, metrics: m, log: log, now: time.Now}
}

// Export builds the report for req.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	sel := req.Selector
	if sel.Kind == "" {
		sel.Kind = Single
	}
	if sel.Kind == Single && sel.Session == "" {
		sel.Session = session.Current(e.now())
	}

	snap, err := e.loader.Snapshot(ctx, req.Scope.Filter())
	if err != nil {
		e.metrics.Export(string(sel.Kind), "error", 0)
		return Result{}, err
	}

	sessions, err := ResolveSessions(sel, snap.Sessions())
	if errors.Is(err, ErrEmptyRange) {
		e.metrics.Export(string(sel.Kind), "no_data", 0)
		e.log.Info("export has no data", "owner", req.Scope.OwnerID, "range", sel.Label())
		return Result{NoData: true}, nil
	}
	if err != nil {
		e.metrics.Export(string(sel.Kind), "error", 0)
		return Result{}, err
	}

	matrix := Build(snap.Roster(req.Scope.OwnerID), snap, sessions)
	doc := document(req, sel, matrix)

	var buf bytes.Buffer
	if err := e.renderer.Render(&buf, doc); err != nil {
		e.metrics.Export(string(sel.Kind), "error", len(sessions))
		return Result{}, fmt.Errorf("render export: %w", err)
	}
	e.metrics.Export(string(sel.Kind), "ok", len(sessions))
	e.log.Info("export rendered", "owner", req.Scope.OwnerID, "range", sel.Label(), "sessions", len(sessions), "rows", len(matrix.Rows))

	return Result{
		Sessions: sessions,
		Matrix:   matrix,
		Artifact: &Artifact{
			Filename:    filename(req, sel),
			ContentType: ContentType,
			Body:        buf.Bytes(),
		},
	}, nil
}

func document(req Request, sel Selector, m Matrix) Document {
	p := req.Profile.Normalize()
	doc := Document{
		Title:      "ABSENTEE LIST",
		ScopeLabel: strings.ToUpper(p.GroupLabel),
		RangeLabel: sel.Label(),
		Preparer:   p.PreparerName,
		Matrix:     m,
	}
	if req.Scope.IsFederated() {
		doc.Title = "ABSENTEE LIST (ALL UNITS)"
		if doc.ScopeLabel == "" {
			doc.ScopeLabel = "ALL GROUPS"
		}
	} else if p.UnitLabel != "" {
		doc.Title = "ABSENTEE LIST - UNIT " + p.UnitLabel
	}
	return doc
}

func filename(req Request, sel Selector) string {
	scope := "all_units"
	if !req.Scope.IsFederated() {
		scope = req.Profile.Normalize().UnitLabel
		if scope == "" {
			scope = "unit"
		}
	}
	return fmt.Sprintf("absentees_%s_%s.xls", scope, strings.ReplaceAll(sel.Label(), " ", "_"))
}
