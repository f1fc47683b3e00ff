package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/chatflow/pkg/editor"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/dukex/chatflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	templates   editor.TemplateSource
	editorOpts  []editor.Option
	validate    *validator.Validate
}

// NewAPI wires the HTTP surface. eventBus and templates may be nil.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	templates editor.TemplateSource,
	editorOpts ...editor.Option,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		templates:   templates,
		editorOpts:  editorOpts,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	flowService := services.NewFlow(a.persistence, publisher, a.logger, a.editorOpts...)
	templateService := services.NewTemplates(a.templates, a.logger)

	handlers := web.NewAPIHandlers(flowService, templateService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Chatflow API")
	})

	f := app.Group("/flows")
	f.Get("/", handlers.GetFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Put("/:id", handlers.ReplaceFlow)
	f.Delete("/:id", handlers.DeleteFlow)
	f.Post("/:id/duplicate", handlers.DuplicateFlow)

	f.Post("/:id/nodes", handlers.CreateNode)
	f.Patch("/:id/nodes/:nodeId", handlers.UpdateNode)
	f.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)
	f.Post("/:id/edges", handlers.CreateEdge)
	f.Delete("/:id/edges/:edgeId", handlers.DeleteEdge)
	f.Put("/:id/trigger", handlers.SetTrigger)

	app.Get("/node-types", handlers.GetNodeTypes)
	app.Get("/templates", handlers.GetTemplates)
	app.Post("/templates/variables", handlers.ExtractTemplateVariables)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
