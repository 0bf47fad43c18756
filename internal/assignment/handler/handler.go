package handler

import (
	"net/http"
	"strconv"

	"fantopark_backend/internal/assignment/domain"
	"fantopark_backend/internal/assignment/service"
	"fantopark_backend/internal/assignment/transport"
	"fantopark_backend/platform/httpkit"
	"fantopark_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves assignment rule management.
type Handler struct {
	rules  *service.RuleService
	engine *service.Engine
	val    *validator.Validator
}

func New(rules *service.RuleService, engine *service.Engine, val *validator.Validator) *Handler {
	return &Handler{rules: rules, engine: engine, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/test", h.Test)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/activate", h.Activate)
	rg.POST("/:id/deactivate", h.Deactivate)
}

func (h *Handler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))

	result, err := h.rules.List(c.Request.Context(), includeInactive)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.RuleRequest
	if !h.bind(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.rules.Create(c.Request.Context(), req, httpkit.Actor(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.rules.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.RuleRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.rules.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Activate(c *gin.Context)   { h.setActive(c, true) }
func (h *Handler) Deactivate(c *gin.Context) { h.setActive(c, false) }

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.rules.SetActive(c.Request.Context(), id, active)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Test runs a sample record through the active rules as a dry run.
func (h *Handler) Test(c *gin.Context) {
	var req transport.TestRuleRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.engine.Preview(c.Request.Context(), domain.Record(req.Record))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
