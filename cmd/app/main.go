package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ProjectGaze/internal/api/tracking"
	"ProjectGaze/internal/config"
	"ProjectGaze/pkg/camera"
	"ProjectGaze/pkg/log"
	"ProjectGaze/pkg/vision"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	trackingCfg := tracking.NewConfigFromEnv()

	// Unloadable cascade assets are a fatal configuration error; the
	// process refuses to serve tracking at all rather than degrade.
	engine, err := vision.NewEngine(trackingCfg.FaceCascadePath, trackingCfg.EyeCascadePath)
	if err != nil {
		logger.Fatalf("Error initializing cascade classifiers: %v", err)
	}
	logger.Info("Cascade classifiers loaded successfully")

	cameraSource := camera.New(camera.Config{
		Indices:     trackingCfg.CameraIndices,
		ReadTimeout: trackingCfg.FrameReadTimeout,
	})

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithMiddleware(),
		config.WithUtils(),
		config.WithTrackingConfig(trackingCfg),
		config.WithCamera(cameraSource),
		config.WithDetectionEngine(engine),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}
	if err := cameraSource.Close(); err != nil {
		logger.Errorf("Error releasing camera: %v", err)
	}
	if err := engine.Close(); err != nil {
		logger.Errorf("Error releasing cascade classifiers: %v", err)
	}
}
