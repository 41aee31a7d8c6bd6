package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"ProjectGaze/internal/api/tracking"
)

type healthReport struct {
	Status           string `json:"status"`
	ClassifierLoaded bool   `json:"classifier_loaded"`
	CameraAvailable  bool   `json:"camera_available"`
	ActiveSessions   int    `json:"active_sessions"`
	Version          string `json:"version"`
}

func main() {
	var (
		host    string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the eye tracking backend's HTTP and WebSocket endpoints",
		Long: "healthcheck fetches /health, then dials the tracking WebSocket " +
			"endpoint and verifies that a ping is answered with a pong. " +
			"Exits non-zero when either check fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkHealthEndpoint(host, timeout); err != nil {
				return fmt.Errorf("health endpoint check failed: %w", err)
			}
			cmd.Println("health endpoint: ok")

			if err := checkWebSocket(host, timeout); err != nil {
				return fmt.Errorf("websocket check failed: %w", err)
			}
			cmd.Println("websocket ping/pong: ok")

			return nil
		},
	}

	root.Flags().StringVar(&host, "host", "localhost:3000", "host:port of the backend")
	root.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-check timeout")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func checkHealthEndpoint(host string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}

	resp, err := client.Get(fmt.Sprintf("http://%s/health", host))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("malformed health response: %w", err)
	}

	if !report.ClassifierLoaded {
		return fmt.Errorf("cascade classifiers are not loaded")
	}
	return nil
}

func checkWebSocket(host string, timeout time.Duration) error {
	endpoint := url.URL{Scheme: "ws", Host: host, Path: "/api/v1/tracking/ws"}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(endpoint.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(map[string]string{"type": tracking.MessageTypePing}); err != nil {
		return err
	}

	// The welcome message arrives before the pong; read until the pong
	// shows up or the deadline fires.
	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}

		var msg struct {
			Type      string `json:"type"`
			Timestamp string `json:"timestamp"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if msg.Type == tracking.MessageTypePong {
			return nil
		}
	}
}
