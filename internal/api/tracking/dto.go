package tracking

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"ProjectGaze/internal/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Inbound message types.
const (
	MessageTypeStartTracking = "start_tracking"
	MessageTypeStopTracking  = "stop_tracking"
	MessageTypePing          = "ping"
)

// Outbound message types.
const (
	MessageTypeConnection = "connection"
	MessageTypeEyeData    = "eye_data"
	MessageTypeError      = "error"
	MessageTypePong       = "pong"
)

// InboundMessage is the envelope clients send. The payload carries no
// fields beyond the type tag.
type InboundMessage struct {
	Type string `json:"type" validate:"required"`
}

type ServerInfo struct {
	Version        string `json:"version"`
	MaxConnections int    `json:"max_connections"`
}

type ConnectionMessage struct {
	Type       string     `json:"type"`
	Message    string     `json:"message"`
	Timestamp  string     `json:"timestamp"`
	ServerInfo ServerInfo `json:"server_info"`
}

type EyeDataMessage struct {
	Type         string  `json:"type"`
	Timestamp    string  `json:"timestamp"`
	FaceDetected bool    `json:"face_detected"`
	EyeCount     int     `json:"eye_count"`
	LookingAway  bool    `json:"looking_away"`
	Confidence   float64 `json:"confidence"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type PongMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Timestamp renders the wire timestamp format: ISO-8601 in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func DecodeInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, ErrInvalidMessage
	}
	return msg, nil
}

func NewConnectionMessage(maxConnections int, at time.Time) ConnectionMessage {
	return ConnectionMessage{
		Type:      MessageTypeConnection,
		Message:   "Eye tracking connected",
		Timestamp: Timestamp(at),
		ServerInfo: ServerInfo{
			Version:        ServiceVersion,
			MaxConnections: maxConnections,
		},
	}
}

func NewEyeDataMessage(verdict entity.GazeVerdict, at time.Time) EyeDataMessage {
	return EyeDataMessage{
		Type:         MessageTypeEyeData,
		Timestamp:    Timestamp(at),
		FaceDetected: verdict.FaceDetected,
		EyeCount:     verdict.EyeCount,
		LookingAway:  verdict.LookingAway,
		Confidence:   verdict.Confidence,
	}
}

func NewErrorMessage(message string, at time.Time) ErrorMessage {
	return ErrorMessage{
		Type:      MessageTypeError,
		Message:   message,
		Timestamp: Timestamp(at),
	}
}

func NewPongMessage(at time.Time) PongMessage {
	return PongMessage{
		Type:      MessageTypePong,
		Timestamp: Timestamp(at),
	}
}
