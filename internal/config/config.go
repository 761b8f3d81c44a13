package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"camrelay/receiver/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	SignalURL     string
	SessionCookie string
	Username      string

	ICEServers []domain.ICEServer

	VideoHeight int
	VideoFPS    int

	AudioSampleRate  int
	AudioChannels    int
	AudioBlockFrames int

	CameraDevice     string
	AudioDeviceMatch string
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	signalURL := os.Getenv("SIGNAL_URL")
	if signalURL == "" {
		return nil, fmt.Errorf("SIGNAL_URL environment variable is required")
	}

	stun := os.Getenv("STUN_URL")
	if stun == "" {
		return nil, fmt.Errorf("STUN_URL environment variable is required")
	}
	servers := []domain.ICEServer{{URL: stun}}

	// TURN is optional: one relay reachable over UDP and TCP.
	if host, port := os.Getenv("PUBLIC_IP"), os.Getenv("TURN_PORT"); host != "" && port != "" {
		user := os.Getenv("TURN_USERNAME")
		pass := os.Getenv("TURN_PASSWORD")
		for _, transport := range []string{"udp", "tcp"} {
			servers = append(servers, domain.ICEServer{
				URL:        fmt.Sprintf("turn:%s:%s?transport=%s", host, port, transport),
				Username:   user,
				Credential: pass,
			})
		}
	}

	cfg := &Config{
		SignalURL:        signalURL,
		SessionCookie:    os.Getenv("SESSION_COOKIE"),
		Username:         envOr("RECEIVER_USERNAME", "receiver"),
		ICEServers:       servers,
		CameraDevice:     os.Getenv("CAMERA_DEVICE"),
		AudioDeviceMatch: envOr("AUDIO_DEVICE_MATCH", "CABLE Input"),
	}

	var err error
	if cfg.VideoHeight, err = intEnv("VIDEO_HEIGHT", 720); err != nil {
		return nil, err
	}
	if cfg.VideoFPS, err = intEnv("VIDEO_FPS", 30); err != nil {
		return nil, err
	}
	if cfg.AudioSampleRate, err = intEnv("AUDIO_SAMPLE_RATE", 48000); err != nil {
		return nil, err
	}
	if cfg.AudioChannels, err = intEnv("AUDIO_CHANNELS", 2); err != nil {
		return nil, err
	}
	if cfg.AudioBlockFrames, err = intEnv("AUDIO_BLOCK_FRAMES", 960); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func intEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return n, nil
}
