package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type TransportKind string

const (
	// TransportLiveKit relays packets through a LiveKit room over its
	// signalling websocket.
	TransportLiveKit TransportKind = "livekit"
	// TransportRealtime drives the Gemini Live API directly.
	TransportRealtime TransportKind = "realtime"
	// TransportNone disables the voice channel; sessions run text-only.
	TransportNone TransportKind = "none"
)

type Config struct {
	Addr string

	Transport TransportKind

	// Session engine tuning.
	ConnectTimeout    time.Duration
	SessionErrorLimit int
	BufferSoftCap     int

	// LiveKit room backend.
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	// Gemini realtime backend.
	GeminiAPIKey            string
	GeminiModel             string
	GeminiSystemInstruction string

	// Postgres persistence. Empty disables recording.
	DatabaseURL string

	// Display feed websocket.
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("TUTOR_ADDR", ":8080"),
		Transport:               TransportKind(envOr("TUTOR_TRANSPORT", string(TransportLiveKit))),
		ConnectTimeout:          envDurationOr("TUTOR_CONNECT_TIMEOUT", 8*time.Second),
		SessionErrorLimit:       envIntOr("TUTOR_SESSION_ERROR_LIMIT", 5),
		BufferSoftCap:           envIntOr("TUTOR_BUFFER_SOFT_CAP", 4096),
		LiveKitURL:              envOr("TUTOR_LIVEKIT_URL", ""),
		LiveKitAPIKey:           envOr("TUTOR_LIVEKIT_API_KEY", ""),
		LiveKitAPISecret:        envOr("TUTOR_LIVEKIT_API_SECRET", ""),
		GeminiAPIKey:            envOr("TUTOR_GEMINI_API_KEY", ""),
		GeminiModel:             envOr("TUTOR_GEMINI_MODEL", ""),
		GeminiSystemInstruction: envOr("TUTOR_GEMINI_SYSTEM_INSTRUCTION", ""),
		DatabaseURL:             envOr("TUTOR_DATABASE_URL", ""),
		WSPingInterval:          envDurationOr("TUTOR_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:          envDurationOr("TUTOR_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:       envDurationOr("TUTOR_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:     envDurationOr("TUTOR_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.Transport {
	case TransportLiveKit, TransportRealtime, TransportNone:
	default:
		return Config{}, fmt.Errorf("TUTOR_TRANSPORT must be one of livekit|realtime|none")
	}

	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.SessionErrorLimit <= 0 {
		return Config{}, fmt.Errorf("TUTOR_SESSION_ERROR_LIMIT must be > 0")
	}
	if cfg.BufferSoftCap <= 0 {
		return Config{}, fmt.Errorf("TUTOR_BUFFER_SOFT_CAP must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("TUTOR_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("TUTOR_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("TUTOR_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.Transport == TransportLiveKit {
		if strings.TrimSpace(cfg.LiveKitURL) == "" {
			return Config{}, fmt.Errorf("TUTOR_LIVEKIT_URL must be set when TUTOR_TRANSPORT=livekit")
		}
		if cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" {
			return Config{}, fmt.Errorf("TUTOR_LIVEKIT_API_KEY and TUTOR_LIVEKIT_API_SECRET must be set when TUTOR_TRANSPORT=livekit")
		}
	}
	if cfg.Transport == TransportRealtime && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("TUTOR_GEMINI_API_KEY must be set when TUTOR_TRANSPORT=realtime")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
