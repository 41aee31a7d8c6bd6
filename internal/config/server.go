package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"ProjectGaze/internal/api/tracking"
	trackingHandler "ProjectGaze/internal/api/tracking/handler"
	trackingService "ProjectGaze/internal/api/tracking/service"
	"ProjectGaze/internal/middleware"
	"ProjectGaze/pkg/camera"
	"ProjectGaze/pkg/utils"
	"ProjectGaze/pkg/vision"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	trackingCfg tracking.Config
	camera      camera.ICamera
	detection   vision.IEngine

	trackingService trackingService.ITrackingService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.camera == nil {
		return nil, fmt.Errorf("camera source is required")
	}
	if server.detection == nil {
		return nil, fmt.Errorf("detection engine is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithTrackingConfig(cfg tracking.Config) ServerOption {
	return func(s *Server) error {
		s.trackingCfg = cfg
		return nil
	}
}

func WithCamera(cam camera.ICamera) ServerOption {
	return func(s *Server) error {
		s.camera = cam
		return nil
	}
}

func WithDetectionEngine(engine vision.IEngine) ServerOption {
	return func(s *Server) error {
		s.detection = engine
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Tracking domain
	trackingServices := trackingService.New(s.log, s.trackingCfg, s.camera, s.detection, vision.Estimate, s.utils)
	trackingHandlers := trackingHandler.New(s.log, s.validator, s.middleware, trackingServices, s.trackingCfg)

	s.trackingService = trackingServices

	s.setupHealthCheck()
	s.handlers = append(s.handlers, trackingHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown() error {
	return s.engine.Shutdown()
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		classifierLoaded := s.trackingService.ClassifierLoaded()
		cameraAvailable := s.trackingService.CameraAvailable()

		status := "healthy"
		if !classifierLoaded {
			status = "degraded"
		}

		return ctx.JSON(fiber.Map{
			"status":            status,
			"classifier_loaded": classifierLoaded,
			"camera_available":  cameraAvailable,
			"active_sessions":   s.trackingService.ActiveSessions(),
			"timestamp":         tracking.Timestamp(time.Now()),
			"service":           "eye-tracking-backend",
			"version":           tracking.ServiceVersion,
		})
	})

	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":       "Eye tracking server is running",
			"websocket_url": fmt.Sprintf("ws://%s/api/v1/tracking/ws", ctx.Hostname()),
			"health_url":    fmt.Sprintf("http://%s/health", ctx.Hostname()),
		})
	})
}
