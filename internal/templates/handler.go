package templates

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/httpio"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/auth"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the template routes behind authenticate.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authenticate gin.HandlerFunc) {
	tpl := rg.Group("/templates", authenticate)
	{
		tpl.GET("", h.List)
		tpl.POST("", h.Create)
		tpl.GET("/:id", h.Get)
		tpl.PUT("/:id", h.Update)
		tpl.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) List(c *gin.Context) {
	owner, err := auth.Owner(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	list, err := h.service.List(c.Request.Context(), owner)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Get(c *gin.Context) {
	owner, id, ok := h.target(c)
	if !ok {
		return
	}
	tpl, err := h.service.Get(c.Request.Context(), owner, id)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *Handler) Create(c *gin.Context) {
	owner, err := auth.Owner(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	var in TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpio.Error(c, h.logger, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	tpl, err := h.service.Create(c.Request.Context(), owner, in)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) Update(c *gin.Context) {
	owner, id, ok := h.target(c)
	if !ok {
		return
	}
	var in TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		httpio.Error(c, h.logger, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	tpl, err := h.service.Update(c.Request.Context(), owner, id, in)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *Handler) Delete(c *gin.Context) {
	owner, id, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), owner, id); err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) target(c *gin.Context) (string, uuid.UUID, bool) {
	owner, err := auth.Owner(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpio.Error(c, h.logger, fmt.Errorf("%w: invalid id", apperr.ErrInvalidInput))
		return "", uuid.Nil, false
	}
	return owner, id, true
}
