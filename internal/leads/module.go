// Package leads provides the leads bounded context module: intake with
// automatic assignment, client lookup and the lead lifecycle.
package leads

import (
	"fantopark_backend/internal/events"
	apphttp "fantopark_backend/internal/http"
	"fantopark_backend/internal/leads/handler"
	"fantopark_backend/internal/leads/ports"
	"fantopark_backend/internal/leads/repository"
	"fantopark_backend/internal/leads/service"
	"fantopark_backend/platform/config"
	"fantopark_backend/platform/httpkit"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"
	"fantopark_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleAdmin guards bulk reassignment.
const RoleAdmin = "admin"

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo      *repository.Repository
	handler   *handler.Handler
	intake    *service.Intake
	lifecycle *service.Lifecycle
	clients   *service.Clients
}

// NewModule creates and wires the leads module. decider may be nil, in which
// case leads without a manual or client owner stay unassigned.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	decider ports.AssignmentDecider,
	cfg config.AssignmentConfig,
	val *validator.Validator,
	m *metrics.Metrics,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)

	intake := service.NewIntake(repo, decider, eventBus, log)
	intake.SetConcurrency(cfg.GetBulkImportConcurrency())
	intake.SetMetrics(m)

	lifecycle := service.NewLifecycle(repo, eventBus, log)
	lifecycle.SetMetrics(m)

	clients := service.NewClients(repo)

	return &Module{
		repo:      repo,
		handler:   handler.New(intake, lifecycle, clients, val),
		intake:    intake,
		lifecycle: lifecycle,
		clients:   clients,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// SetFollowUpScheduler enables queueing of pickup_later re-evaluation.
func (m *Module) SetFollowUpScheduler(s ports.FollowUpScheduler) {
	m.lifecycle.SetFollowUpScheduler(s)
}

// Repository exposes the lead store for workload counting and the scheduler.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) Intake() *service.Intake {
	return m.intake
}

func (m *Module) Lifecycle() *service.Lifecycle {
	return m.lifecycle
}

// RegisterRoutes mounts leads and client lookup routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	clientsGroup := ctx.Protected.Group("/clients")
	m.handler.RegisterRoutes(leadsGroup, clientsGroup, httpkit.RequireRole(RoleAdmin))
}

var _ apphttp.Module = (*Module)(nil)
