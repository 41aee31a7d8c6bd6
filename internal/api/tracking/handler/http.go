package trackingHandler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"ProjectGaze/internal/api/tracking"
	trackingService "ProjectGaze/internal/api/tracking/service"
	"ProjectGaze/internal/middleware"
)

type TrackingHandler struct {
	log             *logrus.Logger
	validator       *validator.Validate
	middleware      middleware.Middleware
	trackingService trackingService.ITrackingService
	cfg             tracking.Config
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ts trackingService.ITrackingService,
	cfg tracking.Config,
) *TrackingHandler {
	return &TrackingHandler{
		log:             log,
		validator:       validator,
		middleware:      middleware,
		trackingService: ts,
		cfg:             cfg,
	}
}

func (h *TrackingHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	track := srv.Group("/tracking")
	track.Use("/ws", wsMiddleware)
	track.Get("/ws", websocket.New(h.handleTrackingSocket))
	track.Get("/info", h.middleware.NewRateLimiter, h.SocketInfo)
	track.Get("/status", h.middleware.NewRateLimiter, h.Status)
}
