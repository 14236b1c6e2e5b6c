// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/campaign-sender/app/dto"
	"github.com/amirphl/campaign-sender/app/handlers"
	"github.com/amirphl/campaign-sender/app/middleware"
	"github.com/amirphl/campaign-sender/config"
	"github.com/amirphl/campaign-sender/docs"
	"github.com/amirphl/campaign-sender/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app           *fiber.App
	runHandler    handlers.CampaignRunHandlerInterface
	configHandler handlers.SendingConfigHandlerInterface
	cfg           *config.ProductionConfig
	logger        *slog.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	runHandler handlers.CampaignRunHandlerInterface,
	configHandler handlers.SendingConfigHandlerInterface,
	cfg *config.ProductionConfig,
	log *slog.Logger,
) Router {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "router"))

	app := fiber.New(fiber.Config{
		AppName:      "Campaign Sender API",
		ServerHeader: "campaign-sender",
		ErrorHandler: errorHandler(log),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return &FiberRouter{
		app:           app,
		runHandler:    runHandler,
		configHandler: configHandler,
		cfg:           cfg,
		logger:        log,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// API documentation route (development only)
	if env := r.cfg.Deployment.Environment; env == "development" || env == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		r.logger.Info("API documentation enabled", "environment", env)
	}

	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	// Campaign runs
	runs := api.Group("/campaign-runs")
	runs.Post("/", r.runHandler.CreateRun)
	runs.Get("/:uuid", r.runHandler.GetRun)
	runs.Post("/:uuid/start", r.runHandler.StartRun)
	runs.Post("/:uuid/pause", r.runHandler.PauseRun)
	runs.Post("/:uuid/resume", r.runHandler.ResumeRun)
	runs.Post("/:uuid/stop", r.runHandler.StopRun)
	runs.Post("/:uuid/retry-failed", r.runHandler.RetryFailed)
	runs.Post("/:uuid/follow-up", r.runHandler.CreateFollowUpRun)
	runs.Get("/:uuid/stats", r.runHandler.GetStats)
	runs.Get("/:uuid/messages", r.runHandler.ListMessages)
	runs.Post("/:uuid/messages/:message_id/receipt", r.runHandler.MarkReceipt)
	runs.Get("/:uuid/report", r.runHandler.GetReport)
	runs.Get("/:uuid/report/export", r.runHandler.ExportReport)

	// Sending config
	sendingConfig := api.Group("/sending-config")
	sendingConfig.Get("/defaults", r.configHandler.GetDefaults)
	sendingConfig.Post("/validate", r.configHandler.Validate)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New())

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; connect-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	allowCredentials := !slices.Contains(r.cfg.Server.AllowedOrigins, "*")
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Server.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: allowCredentials,
		MaxAge:           utils.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// XLSX exports are already zip-compressed
				return strings.HasSuffix(c.Path(), "/report/export")
			},
		}))
	}

	// The default sending config only changes on deploy
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || c.Path() != "/api/v1/sending-config/defaults"
		},
		Expiration:   30 * time.Minute,
		CacheControl: true,
	}))

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	if r.cfg.Metrics.Enabled && r.cfg.Metrics.CollectHTTPMetrics {
		r.app.Use(middleware.Metrics(r.cfg.Metrics.Path))
	}

	r.app.Use(func(c fiber.Ctx) error {
		c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
		return c.Next()
	})

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				"request_id", requestid.FromContext(c),
				"error", e,
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", "address", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"commit":    r.cfg.Deployment.CommitHash,
			"service":   "campaign-sender",
		},
	})
}

// API documentation endpoint
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       docs.SwaggerInfo.Title,
			"version":     docs.SwaggerInfo.Version,
			"description": docs.SwaggerInfo.Description,
			"endpoints":   GetRouteDocumentation(),
		},
	})
}

// Serve Swagger UI HTML page
func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	htmlContent := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Campaign Sender API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
    <style>
        html { box-sizing: border-box; overflow-y: scroll; }
        *, *:before, *:after { box-sizing: inherit; }
        body { margin: 0; background: #fafafa; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/api/v1/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
                plugins: [SwaggerUIBundle.plugins.DownloadUrl],
                layout: "StandaloneLayout",
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(htmlContent)
}

// Serve Swagger JSON specification
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	swaggerDoc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		r.logger.Error("failed to read swagger doc", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(swaggerDoc)
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escape the handlers. Client errors keep their
// message, everything else is reported as an internal error.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An internal server error occurred"
		errorCode := "INTERNAL_ERROR"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code < fiber.StatusInternalServerError {
				message = fe.Message
				errorCode = "REQUEST_ERROR"
			}
		}

		requestID := requestid.FromContext(c)
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed", "status", code, "request_id", requestID, "path", c.Path(), "error", err.Error())
		}

		return c.Status(code).JSON(dto.APIResponse{
			Success: false,
			Message: message,
			Error: dto.ErrorDetail{
				Code: errorCode,
				Details: fiber.Map{
					"timestamp":  utils.UTCNow().Unix(),
					"request_id": requestID,
				},
			},
		})
	}
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	runPath := "/api/v1/campaign-runs/:uuid"
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/campaign-runs",
			"description": "Create a campaign run",
			"parameters": map[string]any{
				"name":       "string (required) - Campaign name",
				"recipients": "array (required) - Recipients with phone_number, content and optional name",
				"config":     "object (optional) - Sending config; defaults apply when omitted",
				"auto_start": "boolean (optional) - Start the run right after creation",
			},
		},
		{"method": "GET", "path": runPath, "description": "Get a campaign run", "parameters": map[string]any{}},
		{"method": "POST", "path": runPath + "/start", "description": "Start an idle run", "parameters": map[string]any{}},
		{"method": "POST", "path": runPath + "/pause", "description": "Pause a running run", "parameters": map[string]any{}},
		{"method": "POST", "path": runPath + "/resume", "description": "Resume a paused run", "parameters": map[string]any{}},
		{"method": "POST", "path": runPath + "/stop", "description": "Stop a run at its next checkpoint", "parameters": map[string]any{}},
		{
			"method":      "POST",
			"path":        runPath + "/retry-failed",
			"description": "Re-queue failed messages of an active run",
			"parameters": map[string]any{
				"message_ids": "array (optional) - Message UUIDs; all retryable failures when omitted",
			},
		},
		{
			"method":      "POST",
			"path":        runPath + "/messages/:message_id/receipt",
			"description": "Record a delivery or read receipt",
			"parameters": map[string]any{
				"type": "string (required) - delivered|read",
				"at":   "string (optional) - RFC 3339 receipt time; now when omitted",
			},
		},
		{"method": "GET", "path": runPath + "/stats", "description": "Statistics snapshot of a run", "parameters": map[string]any{}},
		{
			"method":      "GET",
			"path":        runPath + "/messages",
			"description": "List a run's messages",
			"parameters": map[string]any{
				"status":    "string (optional) - pending|sending|sent|failed|paused|scheduled",
				"page":      "number (optional) - Page number, default 1",
				"page_size": "number (optional) - Page size, default 20, max 100",
			},
		},
		{"method": "GET", "path": runPath + "/report", "description": "Report of a finished run", "parameters": map[string]any{}},
		{"method": "GET", "path": runPath + "/report/export", "description": "Report of a finished run as XLSX", "parameters": map[string]any{}},
		{
			"method":      "POST",
			"path":        runPath + "/follow-up",
			"description": "Create a run over the retryable failures of a finished run",
			"parameters": map[string]any{
				"name":        "string (optional) - Defaults to the parent name with a follow-up suffix",
				"config":      "object (optional) - Defaults to the parent's sending config",
				"message_ids": "array (optional) - Narrows the retryable failures",
				"auto_start":  "boolean (optional) - Start the run right after creation",
			},
		},
		{"method": "GET", "path": "/api/v1/sending-config/defaults", "description": "Default sending config", "parameters": map[string]any{}},
		{"method": "POST", "path": "/api/v1/sending-config/validate", "description": "Validate a sending config", "parameters": map[string]any{}},
		{"method": "GET", "path": healthPath, "description": "Health check endpoint", "parameters": map[string]any{}},
	}
}
