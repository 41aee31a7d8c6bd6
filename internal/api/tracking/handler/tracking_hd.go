package trackingHandler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"

	"ProjectGaze/internal/api/tracking"
	trackingService "ProjectGaze/internal/api/tracking/service"
	contextPkg "ProjectGaze/pkg/context"
	"ProjectGaze/pkg/handlerUtil"
	"ProjectGaze/pkg/log"
)

func (h *TrackingHandler) handleTrackingSocket(c *websocket.Conn) {
	session, err := h.trackingService.OnConnect()
	if err != nil {
		if writeErr := c.WriteJSON(tracking.NewErrorMessage(err.Error(), time.Now())); writeErr != nil {
			h.log.Errorf("Error sending rejection message: %v", writeErr)
		}
		return
	}

	h.log.WithFields(log.Fields{"session_id": session.ID}).Info("Tracking WebSocket client connected")

	// Single writer pump keeps outbound delivery FIFO per connection;
	// the detection loop and the read loop both enqueue through the
	// session, never write to the conn directly. Protocol replies take
	// priority over frame results so a congested stream cannot starve a
	// pong or an error message.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			var msg interface{}
			select {
			case msg = <-session.Replies():
			default:
				select {
				case msg = <-session.Replies():
				case msg = <-session.Events():
				case <-session.Done():
					return
				}
			}

			if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				h.log.Errorf("Error setting write deadline: %v", err)
				c.Close()
				return
			}
			if err := c.WriteJSON(msg); err != nil {
				h.log.Errorf("Error writing to client: %v", err)
				c.Close()
				return
			}
		}
	}()

	session.Reply(tracking.NewConnectionMessage(h.cfg.MaxConnections, time.Now()))

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(h.cfg.WSReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Tracking WebSocket error: %v", err)
			} else {
				h.log.Info("Tracking WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		h.dispatch(session, message)
	}

	h.trackingService.OnDisconnect(session)
	<-writeDone
}

// dispatch decodes one inbound envelope and drives the session state
// machine. Malformed and unknown messages are answered with an error
// message; the connection stays open either way.
func (h *TrackingHandler) dispatch(session *trackingService.Session, raw []byte) {
	msg, err := tracking.DecodeInbound(raw)
	if err != nil {
		h.log.WithFields(log.Fields{"session_id": session.ID}).Warn("Invalid JSON received")
		session.Reply(tracking.NewErrorMessage(tracking.ErrInvalidMessage.Error(), time.Now()))
		return
	}

	if err := h.validator.Struct(msg); err != nil {
		session.Reply(tracking.NewErrorMessage(tracking.ErrInvalidMessage.Error(), time.Now()))
		return
	}

	switch msg.Type {
	case tracking.MessageTypeStartTracking:
		session.StartTracking()
	case tracking.MessageTypeStopTracking:
		session.StopTracking()
	case tracking.MessageTypePing:
		session.Ping()
	default:
		h.log.WithFields(log.Fields{
			"session_id":   session.ID,
			"message_type": msg.Type,
		}).Warn("Unknown message type")
		session.Reply(tracking.NewErrorMessage(
			fmt.Sprintf("%s: %s", tracking.ErrUnknownMessageType, msg.Type), time.Now(),
		))
	}
}

func (h *TrackingHandler) SocketInfo(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Serving WebSocket info")

	return ctx.JSON(fiber.Map{
		"websocket_url":        fmt.Sprintf("ws://%s/api/v1/tracking/ws", ctx.Hostname()),
		"websocket_url_secure": fmt.Sprintf("wss://%s/api/v1/tracking/ws", ctx.Hostname()),
		"instructions":         "Connect to the /api/v1/tracking/ws endpoint for WebSocket communication",
		"supported_messages": []fiber.Map{
			{"type": tracking.MessageTypePing, "description": "Health check ping"},
			{"type": tracking.MessageTypeStartTracking, "description": "Start eye tracking"},
			{"type": tracking.MessageTypeStopTracking, "description": "Stop eye tracking"},
		},
	})
}

func (h *TrackingHandler) Status(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing tracking status request")

	if !h.trackingService.ClassifierLoaded() {
		return errHandler.Handle(ctx, requestID, tracking.ErrClassifierNotLoaded, ctx.Path(), "tracking_status")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, fiber.Map{
			"active_sessions":   h.trackingService.ActiveSessions(),
			"camera_available":  h.trackingService.CameraAvailable(),
			"classifier_loaded": true,
			"max_connections":   h.cfg.MaxConnections,
			"timestamp":         tracking.Timestamp(time.Now()),
		})
	}
}
