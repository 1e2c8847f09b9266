package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/session"
)

const keepAlive = 25 * time.Second

// stream pushes the session view as server-sent events every time the
// underlying records change.
func (h *Handler) stream(c *gin.Context) {
	id := session.ID(c.Query("session"))
	if id == "" {
		id = session.Current(h.now())
	}
	if _, _, err := session.Parse(id); err != nil {
		h.writeError(c, err)
		return
	}
	scope := auth.ScopeFrom(c)

	sub, err := h.svc.Subscribe(c.Request.Context(), attendance.Filter{OwnerID: scope.OwnerID, SessionID: id})
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer sub.Close()

	changed := make(chan struct{}, 1)
	view := attendance.Watch(sub, func(*attendance.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-changed:
			snap, err := view.Latest(c.Request.Context())
			if err != nil {
				return false
			}
			c.SSEvent("session", buildView(snap, scope, id))
			return true
		case <-ticker.C:
			if err := sub.Err(); err != nil {
				c.SSEvent("error", gin.H{"error": "storage is unreachable, retrying"})
			} else {
				_, _ = io.WriteString(w, ": ping\n\n")
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
