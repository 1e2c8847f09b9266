package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/queue"
	"rollcall/internal/report"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/sheetsync"
)

const maxImageBytes = 8 << 20

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Service  *attendance.Service
	Exporter *report.Exporter
	Queue    queue.Queue
	// SyncURL is the fallback webhook when a profile names none.
	SyncURL  string
	Log      *slog.Logger
}

// Handler serves the attendance API.
type Handler struct {
	svc      *attendance.Service
	exporter *report.Exporter
	queue    queue.Queue
	syncURL  string
	log      *slog.Logger
	now      func() time.Time
}

// New builds a handler.
func New(d Deps) *Handler {
	return &Handler{
		svc:      d.Service,
		exporter: d.Exporter,
		queue:    d.Queue,
		syncURL:  d.SyncURL,
		log:      d.Log,
		now:      time.Now,
	}
}

// Register mounts the API on an authenticated group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/members", h.listMembers)
	g.POST("/members", h.createMember)
	g.PATCH("/members/:id", h.renameMember)
	g.DELETE("/members/:id", h.deleteMember)

	g.GET("/sessions/current", h.currentSession)
	g.GET("/sessions/:session", h.sessionView)
	g.POST("/sessions/:session/marks", h.markBatch)
	g.POST("/sessions/:session/toggle", h.toggle)
	g.POST("/sessions/:session/scan", h.scan)
	g.POST("/sessions/:session/sync", h.sync)

	g.GET("/reports/export", h.export)
	g.GET("/stream", h.stream)
}

// SessionView is the presence picture of one session.
type SessionView struct {
	Session session.ID      `json:"session"`
	Scope   string          `json:"scope"`
	Present []roster.Member `json:"present"`
	Absent  []roster.Member `json:"absent"`
	Total   int             `json:"total"`
	Count   int             `json:"present_count"`
	Percent int             `json:"percent"`
	Groups  []roster.Group  `json:"groups,omitempty"`
	TakenAt time.Time       `json:"taken_at"`
}

func buildView(snap *attendance.Snapshot, scope attendance.Scope, id session.ID) SessionView {
	members := append([]roster.Member(nil), snap.Roster(scope.OwnerID)...)
	roster.SortByGivenName(members)
	present := snap.Present(id)
	split := roster.Partition(members, present)

	v := SessionView{
		Session: id,
		Scope:   "group",
		Present: split.Present,
		Absent:  split.Absent,
		Total:   split.Total(),
		Count:   len(split.Present),
		Percent: roster.Percent(len(split.Present), split.Total()),
		TakenAt: snap.TakenAt,
	}
	if scope.IsFederated() {
		v.Scope = "federated"
		v.Groups = roster.GroupByUnit(members, present)
	}
	return v
}

func (h *Handler) sessionParam(c *gin.Context) (session.ID, bool) {
	id := session.ID(c.Param("session"))
	if id == "current" || id == "" {
		id = session.Current(h.now())
	}
	if _, _, err := session.Parse(id); err != nil {
		h.writeError(c, err)
		return "", false
	}
	return id, true
}

func (h *Handler) listMembers(c *gin.Context) {
	scope := auth.ScopeFrom(c)
	members, err := h.svc.Store().Members(c.Request.Context(), scope.OwnerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	roster.SortByGivenName(members)
	c.JSON(http.StatusOK, gin.H{"members": members, "total": len(members)})
}

type createMemberRequest struct {
	Name           string `json:"name" form:"name" binding:"required,max=120"`
	Unit           string `json:"unit" form:"unit" binding:"max=40"`
	ReferenceImage string `json:"reference_image" form:"-"`
}

func (h *Handler) createMember(c *gin.Context) {
	var (
		req   createMemberRequest
		image []byte
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if fh, ferr := c.FormFile("image"); ferr == nil {
			image, err = readFile(fh)
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		image, err = decodeImage(req.ReferenceImage)
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	prof := auth.ClaimsFrom(c).ResolvedProfile()
	m, err := h.svc.AddMember(c.Request.Context(), auth.ScopeFrom(c), attendance.NewMember{
		Name:           req.Name,
		Unit:           req.Unit,
		GroupLabel:     prof.GroupLabel,
		PreparerName:   prof.PreparerName,
		ReferenceImage: image,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) renameMember(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,max=120"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.RenameMember(c.Request.Context(), auth.ScopeFrom(c), c.Param("id"), req.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteMember(c *gin.Context) {
	if err := h.svc.RemoveMember(c.Request.Context(), auth.ScopeFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) currentSession(c *gin.Context) {
	id := session.Current(h.now())
	date, period, _ := session.Parse(id)
	c.JSON(http.StatusOK, gin.H{"session": id, "date": date.Format("2006-01-02"), "period": period})
}

func (h *Handler) sessionView(c *gin.Context) {
	id, ok := h.sessionParam(c)
	if !ok {
		return
	}
	scope := auth.ScopeFrom(c)
	snap, err := h.svc.Snapshot(c.Request.Context(), attendance.Filter{OwnerID: scope.OwnerID, SessionID: id})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildView(snap, scope, id))
}

func (h *Handler) markBatch(c *gin.Context) {
	id, ok := h.sessionParam(c)
	if !ok {
		return
	}
	var req struct {
		MemberIDs []string `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.Reconciler(auth.ScopeFrom(c)).MarkBatch(c.Request.Context(), id, req.MemberIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) toggle(c *gin.Context) {
	id, ok := h.sessionParam(c)
	if !ok {
		return
	}
	var req struct {
		MemberID string `json:"member_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	present, err := h.svc.Reconciler(auth.ScopeFrom(c)).Toggle(c.Request.Context(), id, req.MemberID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": id, "member_id": req.MemberID, "present": present})
}

var outcomeMessages = map[attendance.Outcome]string{
	attendance.OutcomeMarked:     "attendance marked",
	attendance.OutcomeNoMatch:    "no faces matched",
	attendance.OutcomeAllPresent: "everyone recognised is already present",
}

func (h *Handler) scan(c *gin.Context) {
	id, ok := h.sessionParam(c)
	if !ok {
		return
	}
	var (
		frame []byte
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("frame")
		if ferr != nil {
			badRequest(c, errors.New("frame file required"))
			return
		}
		frame, err = readFile(fh)
	} else {
		var req struct {
			Frame string `json:"frame" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		frame, err = decodeImage(req.Frame)
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.Merger(auth.ScopeFrom(c)).Recognize(c.Request.Context(), id, frame)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "message": outcomeMessages[res.Outcome]})
}

func (h *Handler) sync(c *gin.Context) {
	id, ok := h.sessionParam(c)
	if !ok {
		return
	}
	prof := auth.ClaimsFrom(c).ResolvedProfile()
	if prof.SyncURL == "" && h.syncURL == "" {
		h.writeError(c, sheetsync.ErrNoEndpoint)
		return
	}
	job := sheetsync.Job{OwnerID: auth.ScopeFrom(c).OwnerID, Session: id, Profile: prof}
	if err := sheetsync.Enqueue(c.Request.Context(), h.queue, job); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session": id, "status": "queued"})
}

func (h *Handler) export(c *gin.Context) {
	kind, err := report.ParseKind(c.Query("range"))
	if err != nil {
		badRequest(c, err)
		return
	}
	sel := report.Selector{Kind: kind, Session: session.ID(c.Query("session"))}
	if kind == report.Range {
		if sel.Start, err = session.ParseDate(c.Query("start")); err != nil {
			badRequest(c, fmt.Errorf("start: %w", err))
			return
		}
		if sel.End, err = session.ParseDate(c.Query("end")); err != nil {
			badRequest(c, fmt.Errorf("end: %w", err))
			return
		}
	}

	res, err := h.exporter.Export(c.Request.Context(), report.Request{
		Scope:    auth.ScopeFrom(c),
		Selector: sel,
		Profile:  auth.ClaimsFrom(c).ResolvedProfile(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.NoData {
		c.JSON(http.StatusNotFound, gin.H{"outcome": "no_data", "error": report.ErrEmptyRange.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Artifact.Filename))
	c.Data(http.StatusOK, res.Artifact.ContentType, res.Artifact.Body)
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxImageBytes))
}

// decodeImage accepts raw base64 or a data URL. Empty input is no image.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data url")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("image is not valid base64: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return data, nil
}
