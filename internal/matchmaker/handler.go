package matchmaker

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc            *Service
	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

func NewHandler(svc *Service, defaultTimeout, maxTimeout time.Duration) *Handler {
	return &Handler{svc: svc, defaultTimeout: defaultTimeout, maxTimeout: maxTimeout}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/request-match/:userId", h.RequestMatch)
	r.DELETE("/cancel-match/:userId", h.CancelMatch)
}

// POST /request-match/:userId?timeoutMs=30000&replace=true  body: PreferenceRequest
// 200 with the partner on a match, 202 on timeout or cancellation.
func (h *Handler) RequestMatch(c *gin.Context) {
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = c.Param("userId")
	}
	if req.UserID != c.Param("userId") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId in path and body differ"})
		return
	}
	pref, err := NewPreference(req)
	if err != nil {
		writeError(c, err)
		return
	}

	timeout, err := h.timeout(c.Query("timeoutMs"))
	if err != nil {
		writeError(c, err)
		return
	}
	replace, err := strconv.ParseBool(c.DefaultQuery("replace", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "replace must be a boolean"})
		return
	}

	handle, err := h.svc.SubmitAndWait(c.Request.Context(), SubmitRequest{
		Preference: pref,
		Timeout:    timeout,
		Replace:    replace,
	})
	if err != nil {
		if c.Request.Context().Err() != nil {
			// client went away; the request was withdrawn
			return
		}
		writeError(c, err)
		return
	}

	out := handle.Outcome()
	if out.Status == "MATCHED" {
		c.JSON(http.StatusOK, out)
		return
	}
	c.JSON(http.StatusAccepted, out)
}

// DELETE /cancel-match/:userId
func (h *Handler) CancelMatch(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("userId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) timeout(raw string) (time.Duration, error) {
	if raw == "" {
		return h.defaultTimeout, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return 0, ErrInvalidTimeout
	}
	d := time.Duration(ms) * time.Millisecond
	if h.maxTimeout > 0 && d > h.maxTimeout {
		d = h.maxTimeout
	}
	return d, nil
}

// StatusFor maps matchmaking errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidPreference), errors.Is(err, ErrInvalidTimeout):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoPendingRequest):
		return http.StatusNotFound
	case errors.Is(err, ErrExistingPendingRequest):
		return http.StatusConflict
	case errors.Is(err, ErrPoolUnavailable), errors.Is(err, ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(StatusFor(err), gin.H{"error": err.Error()})
}
