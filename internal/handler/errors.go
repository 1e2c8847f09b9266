package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/faceclient"
	"rollcall/internal/session"
	"rollcall/internal/sheetsync"
)

type errorKind struct {
	status  int
	kind    string
	message string
}

var errorKinds = []struct {
	target error
	errorKind
}{
	{attendance.ErrPermissionDenied, errorKind{http.StatusForbidden, "permission_denied", "this scope is not allowed to do that"}},
	{attendance.ErrNetwork, errorKind{http.StatusBadGateway, "network", "storage is unreachable, try again"}},
	{faceclient.ErrRecognitionService, errorKind{http.StatusBadGateway, "recognition", "recognition service failed, try again"}},
	{sheetsync.ErrDelivery, errorKind{http.StatusBadGateway, "network", "sync endpoint is unreachable, try again"}},
	{session.ErrMalformedID, errorKind{http.StatusBadRequest, "malformed_session", ""}},
	{attendance.ErrInvalid, errorKind{http.StatusBadRequest, "invalid", ""}},
	{sheetsync.ErrNoEndpoint, errorKind{http.StatusBadRequest, "sync_not_configured", ""}},
	{attendance.ErrNotFound, errorKind{http.StatusNotFound, "not_found", ""}},
	{context.DeadlineExceeded, errorKind{http.StatusGatewayTimeout, "timeout", "request timed out"}},
}

// writeError maps an error kind to a status code. Kinds with a fixed message
// hide the cause from the client; the rest echo it.
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			msg := k.message
			if msg == "" {
				msg = err.Error()
			}
			if k.status >= http.StatusInternalServerError {
				h.log.Warn("request failed", "path", c.FullPath(), "kind", k.kind, "error", err)
			}
			c.AbortWithStatusJSON(k.status, gin.H{"error": msg, "kind": k.kind})
			return
		}
	}
	h.log.Error("request failed", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": "internal"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid"})
}
