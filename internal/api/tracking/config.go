package tracking

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const ServiceVersion = "1.0.0"

// Config is read once at process start and treated as immutable for the
// process lifetime.
type Config struct {
	CameraIndices    []int
	FrameInterval    time.Duration
	FrameReadTimeout time.Duration
	WSReadTimeout    time.Duration
	MaxConnections   int
	FaceCascadePath  string
	EyeCascadePath   string
}

func NewConfigFromEnv() Config {
	return Config{
		CameraIndices:    envIndices("CAMERA_INDICES", []int{0, 1, 2}),
		FrameInterval:    envMillis("FRAME_INTERVAL_MS", 100*time.Millisecond),
		FrameReadTimeout: envMillis("FRAME_READ_TIMEOUT_MS", 3*time.Second),
		WSReadTimeout:    envSeconds("WS_READ_TIMEOUT_S", 60*time.Second),
		MaxConnections:   envInt("MAX_CONNECTIONS", 100),
		FaceCascadePath:  envString("FACE_CASCADE_PATH", "./models/haarcascade_frontalface_default.xml"),
		EyeCascadePath:   envString("EYE_CASCADE_PATH", "./models/haarcascade_eye.xml"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	s, err := strconv.Atoi(v)
	if err != nil || s <= 0 {
		return fallback
	}
	return time.Duration(s) * time.Second
}

func envIndices(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var indices []int
	for _, part := range strings.Split(v, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx < 0 {
			continue
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return fallback
	}
	return indices
}
