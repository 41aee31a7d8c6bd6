package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"CAMERA_INDICES", "FRAME_INTERVAL_MS", "FRAME_READ_TIMEOUT_MS",
		"WS_READ_TIMEOUT_S", "MAX_CONNECTIONS", "FACE_CASCADE_PATH", "EYE_CASCADE_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg := NewConfigFromEnv()

	assert.Equal(t, []int{0, 1, 2}, cfg.CameraIndices)
	assert.Equal(t, 100*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 3*time.Second, cfg.FrameReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.WSReadTimeout)
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, "./models/haarcascade_frontalface_default.xml", cfg.FaceCascadePath)
	assert.Equal(t, "./models/haarcascade_eye.xml", cfg.EyeCascadePath)
}

func TestNewConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("CAMERA_INDICES", "2, 0")
	t.Setenv("FRAME_INTERVAL_MS", "50")
	t.Setenv("FRAME_READ_TIMEOUT_MS", "1500")
	t.Setenv("WS_READ_TIMEOUT_S", "30")
	t.Setenv("MAX_CONNECTIONS", "5")
	t.Setenv("FACE_CASCADE_PATH", "/opt/models/face.xml")
	t.Setenv("EYE_CASCADE_PATH", "/opt/models/eye.xml")

	cfg := NewConfigFromEnv()

	assert.Equal(t, []int{2, 0}, cfg.CameraIndices)
	assert.Equal(t, 50*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.FrameReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WSReadTimeout)
	assert.Equal(t, 5, cfg.MaxConnections)
	assert.Equal(t, "/opt/models/face.xml", cfg.FaceCascadePath)
	assert.Equal(t, "/opt/models/eye.xml", cfg.EyeCascadePath)
}

func TestNewConfigFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("CAMERA_INDICES", "foo,-1, ,")
	t.Setenv("FRAME_INTERVAL_MS", "-10")
	t.Setenv("WS_READ_TIMEOUT_S", "zero")
	t.Setenv("MAX_CONNECTIONS", "lots")

	cfg := NewConfigFromEnv()

	assert.Equal(t, []int{0, 1, 2}, cfg.CameraIndices)
	assert.Equal(t, 100*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 60*time.Second, cfg.WSReadTimeout)
	assert.Equal(t, 100, cfg.MaxConnections)
}

func TestEnvIndicesPartialGarbageKeepsValid(t *testing.T) {
	t.Setenv("CAMERA_INDICES", "1,foo,3")

	cfg := NewConfigFromEnv()

	assert.Equal(t, []int{1, 3}, cfg.CameraIndices)
}
