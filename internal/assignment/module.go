// Package assignment provides the assignment rules bounded context module.
package assignment

import (
	"fantopark_backend/internal/assignment/handler"
	"fantopark_backend/internal/assignment/repository"
	"fantopark_backend/internal/assignment/service"
	apphttp "fantopark_backend/internal/http"
	"fantopark_backend/platform/config"
	"fantopark_backend/platform/httpkit"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/metrics"
	"fantopark_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RoleAdmin guards rule management.
const RoleAdmin = "admin"

// Module is the assignment bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	engine  *service.Engine
	rules   *service.RuleService
}

// NewModule wires the rule repository, the configured cursor store and the
// engine. redisClient is only used when the redis cursor backend is selected.
func NewModule(
	pool *pgxpool.Pool,
	redisClient redis.UniversalClient,
	cfg config.AssignmentConfig,
	val *validator.Validator,
	m *metrics.Metrics,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	rules := service.NewRuleService(repo, log)

	var cursors service.CursorStore = repo
	if cfg.GetAssignmentCursorBackend() == config.CursorBackendRedis && redisClient != nil {
		redisCursors := repository.NewRedisCursorStore(redisClient, repo, log)
		cursors = redisCursors
		rules.SetCursorResetter(redisCursors)
		log.Info("assignment cursors backed by redis")
	}

	engine := service.NewEngine(repo, cursors, log, m)
	return &Module{
		handler: handler.New(rules, engine, val),
		engine:  engine,
		rules:   rules,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// Engine returns the rule engine for lead intake.
func (m *Module) Engine() *service.Engine {
	return m.engine
}

// Rules returns the rule management service.
func (m *Module) Rules() *service.RuleService {
	return m.rules
}

// RegisterRoutes mounts rule management under the protected group. Every
// route requires the admin role.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rulesGroup := ctx.Protected.Group("/assignment-rules", httpkit.RequireRole(RoleAdmin))
	m.handler.RegisterRoutes(rulesGroup)
}

var _ apphttp.Module = (*Module)(nil)
