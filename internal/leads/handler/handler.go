package handler

import (
	"net/http"

	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/service"
	"fantopark_backend/internal/leads/transport"
	"fantopark_backend/platform/httpkit"
	"fantopark_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves lead intake, lifecycle and client lookup.
type Handler struct {
	intake    *service.Intake
	lifecycle *service.Lifecycle
	clients   *service.Clients
	val       *validator.Validator
}

func New(intake *service.Intake, lifecycle *service.Lifecycle, clients *service.Clients, val *validator.Validator) *Handler {
	return &Handler{intake: intake, lifecycle: lifecycle, clients: clients, val: val}
}

// RegisterRoutes mounts lead routes on leads and the lookup on clients.
// adminOnly guards bulk reassignment.
func (h *Handler) RegisterRoutes(leads, clients *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	leads.POST("", h.Create)
	leads.POST("/import", h.Import)
	leads.POST("/bulk-assign", adminOnly, h.BulkAssign)
	leads.GET("/:id", h.GetByID)
	leads.PUT("/:id/assign", h.Assign)
	leads.PATCH("/:id/status", h.UpdateStatus)
	leads.GET("/:id/status-options", h.StatusOptions)
	leads.GET("/:id/history", h.History)

	clients.GET("/lookup", h.LookupClient)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.LeadIntakeRequest
	if !h.bind(c, &req) {
		return
	}

	lead, outcome, err := h.intake.CreateLead(c.Request.Context(), toIntake(req))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.CreateLeadResponse{Lead: toLeadResponse(lead), Assignment: toAssignmentResponse(outcome)})
}

// Import creates a batch of leads. Row failures are reported per row and do
// not fail the request.
func (h *Handler) Import(c *gin.Context) {
	var req transport.ImportLeadsRequest
	if !h.bind(c, &req) {
		return
	}

	records := make([]domain.Intake, 0, len(req.Leads))
	for _, row := range req.Leads {
		records = append(records, toIntake(row))
	}

	result, err := h.intake.Import(c.Request.Context(), records)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toImportResponse(result))
}

func (h *Handler) BulkAssign(c *gin.Context) {
	var req transport.BulkAssignRequest
	if !h.bind(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.intake.RunBulkAssignment(c.Request.Context(), req.LeadIDs, httpkit.Actor(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toBulkAssignResponse(result))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	lead, err := h.lifecycle.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) Assign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.AssignLeadRequest
	if !h.bind(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := h.lifecycle.Assign(c.Request.Context(), id, req.AssignedTo, httpkit.Actor(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if !h.bind(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.lifecycle.Transition(c.Request.Context(), id, service.TransitionInput{
		Target:       req.Status,
		FollowUpDate: req.FollowUpDate,
		Note:         req.Note,
		Actor:        httpkit.Actor(identity),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toTransitionResponse(result))
}

func (h *Handler) StatusOptions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	opts, err := h.lifecycle.Options(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, opts)
}

func (h *Handler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	changes, err := h.lifecycle.History(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toHistoryResponse(changes))
}

// LookupClient never fails on a malformed phone; it reports not found.
func (h *Handler) LookupClient(c *gin.Context) {
	client, err := h.clients.FindClientByPhone(c.Request.Context(), c.Query("phone"))
	if httpkit.HandleError(c, err) {
		return
	}
	if client == nil {
		httpkit.OK(c, transport.ClientLookupResponse{Found: false})
		return
	}
	resp := toClientResponse(*client)
	httpkit.OK(c, transport.ClientLookupResponse{Found: true, Client: &resp})
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
