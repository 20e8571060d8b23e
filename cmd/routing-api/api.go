// Package main provides the routing flow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/eventbus"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/services"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	flowService := services.NewFlow(a.persistence, a.eventBus, a.registry, a.logger)
	draftService := services.NewDraft(a.persistence, a.eventBus, a.registry, a.logger)

	handlers := web.NewAPIHandlers(flowService, draftService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Routing Flow API")
	})

	flows := app.Group("/flows")
	flows.Get("/:routingId", handlers.GetFlow)
	flows.Put("/:routingId", handlers.SaveFlow)
	flows.Delete("/:routingId", handlers.DeleteFlow)
	flows.Post("/:routingId/batch", handlers.ApplyBatch)
	flows.Get("/:routingId/validate", handlers.ValidateFlow)
	flows.Put("/:routingId/segment-order", handlers.UpdateSegmentOrder)
	flows.Get("/:routingId/change-sets", handlers.ListChangeSets)
	flows.Get("/:routingId/change-sets/:changeSetId", handlers.GetChangeSet)
	flows.Post("/:routingId/drafts", handlers.CreateDraft)
	flows.Post("/:routingId/drafts/:changeSetId/publish", handlers.PublishDraft)
	flows.Post("/:routingId/drafts/:changeSetId/discard", handlers.DiscardDraft)

	app.Get("/segment-types", handlers.GetSegmentTypes)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
