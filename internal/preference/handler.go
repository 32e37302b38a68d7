package preference

import (
	"errors"
	"net/http"

	"PeerMatch/internal/matchmaker"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter) {
	r.PUT("/preferences/:userId", h.Put)
	r.GET("/preferences/:userId", h.Get)
	r.DELETE("/preferences/:userId", h.Delete)
}

// PUT /preferences/:userId  body: PreferenceRequest
func (h *Handler) Put(c *gin.Context) {
	var req matchmaker.PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.Upsert(c.Request.Context(), c.Param("userId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("userId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	status := matchmaker.StatusFor(err)
	if errors.Is(err, ErrPreferenceNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
