package trackingService

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"ProjectGaze/internal/api/tracking"
	"ProjectGaze/pkg/camera"
	"ProjectGaze/pkg/utils"
	"ProjectGaze/pkg/vision"
)

type ITrackingService interface {
	// OnConnect registers a new client connection and returns its
	// session, or ErrServerAtCapacity when the connection limit is hit.
	OnConnect() (*Session, error)
	// OnDisconnect tears the session down: cancels any active tracking
	// loop, releases its camera claim and signals Done to the writer.
	OnDisconnect(session *Session)
	ActiveSessions() int
	ClassifierLoaded() bool
	CameraAvailable() bool
}

type trackingService struct {
	log      *logrus.Logger
	cfg      tracking.Config
	camera   camera.ICamera
	engine   vision.IEngine
	estimate vision.EstimatorFunc
	utils    utils.IUtils

	mu       sync.Mutex
	sessions map[string]*Session

	// camMu serializes every touch of the shared capture device: the
	// lazy open, each session's read turn, and the final close.
	camMu          sync.Mutex
	activeTrackers int
}

func New(
	log *logrus.Logger,
	cfg tracking.Config,
	cam camera.ICamera,
	engine vision.IEngine,
	estimate vision.EstimatorFunc,
	utils utils.IUtils,
) ITrackingService {
	if estimate == nil {
		estimate = vision.Estimate
	}
	return &trackingService{
		log:      log,
		cfg:      cfg,
		camera:   cam,
		engine:   engine,
		estimate: estimate,
		utils:    utils,
		sessions: make(map[string]*Session),
	}
}

func (s *trackingService) OnConnect() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.cfg.MaxConnections {
		s.log.Warnf("Connection rejected - server at capacity (%d)", s.cfg.MaxConnections)
		return nil, tracking.ErrServerAtCapacity
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, err
	}

	session := newSession(id, s, s.log)
	s.sessions[id] = session

	s.log.WithFields(logrus.Fields{
		"session_id":    id,
		"total_clients": len(s.sessions),
	}).Info("Client connected")

	return session, nil
}

func (s *trackingService) OnDisconnect(session *Session) {
	if session == nil {
		return
	}

	s.mu.Lock()
	delete(s.sessions, session.ID)
	remaining := len(s.sessions)
	s.mu.Unlock()

	session.close()

	s.log.WithFields(logrus.Fields{
		"session_id":    session.ID,
		"total_clients": remaining,
	}).Info("Client disconnected")
}

func (s *trackingService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *trackingService) ClassifierLoaded() bool {
	return s.engine != nil && s.engine.Loaded()
}

// CameraAvailable reports whether the capture device can serve frames.
// While any session is tracking, the open handle answers for itself;
// otherwise the device is probed and released again.
func (s *trackingService) CameraAvailable() bool {
	s.camMu.Lock()
	defer s.camMu.Unlock()

	if s.camera.Opened() {
		return true
	}
	if err := s.camera.Open(); err != nil {
		return false
	}
	if err := s.camera.Close(); err != nil {
		s.log.Errorf("Error releasing camera after probe: %v", err)
	}
	return true
}

// trackerStarted claims a tracking slot, opening the camera lazily when
// the first session starts tracking.
func (s *trackingService) trackerStarted() error {
	s.camMu.Lock()
	defer s.camMu.Unlock()

	if s.activeTrackers == 0 {
		if err := s.camera.Open(); err != nil {
			s.log.Errorf("Could not open camera on any configured index: %v", err)
			return tracking.ErrCameraUnavailable
		}
		s.log.Infof("Camera initialized successfully on index %d", s.camera.Index())
	}

	s.activeTrackers++
	return nil
}

// trackerStopped releases a tracking slot and closes the camera when the
// last active tracker is gone.
func (s *trackingService) trackerStopped() {
	s.camMu.Lock()
	defer s.camMu.Unlock()

	s.activeTrackers--
	if s.activeTrackers > 0 {
		return
	}

	if err := s.camera.Close(); err != nil {
		s.log.Errorf("Error releasing camera: %v", err)
	}
	s.log.Info("Camera released")
}

// acquireFrame is one exclusive read turn on the shared camera. The
// guard is held only for the read itself, never across pacing delays.
func (s *trackingService) acquireFrame(ctx context.Context) (*camera.Frame, error) {
	s.camMu.Lock()
	defer s.camMu.Unlock()

	frame, err := s.camera.Read(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, tracking.ErrFrameReadFailed
	}
	return frame, nil
}
