package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultVoiceSegmentSeconds    = 60
	DefaultVoicePaceMillis        = 300
	DefaultDownloadTimeoutSeconds = 10
	DefaultGeweTimeoutSeconds     = 60
	DefaultInboundMaxAgeSeconds   = 300
	DefaultResponderTimeout       = 120
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gewe: GeweConfig{
			TimeoutSeconds: DefaultGeweTimeoutSeconds,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0",
		},
		Media: MediaConfig{
			TempDir:     "tmp",
			FFmpeg:      "ffmpeg",
			FFprobe:     "ffprobe",
			SilkEncoder: "silk_v3_encoder",
			SilkDecoder: "silk_v3_decoder",
		},
		Delivery: DeliveryConfig{
			VoiceSegmentSeconds:    DefaultVoiceSegmentSeconds,
			VoicePaceMillis:        DefaultVoicePaceMillis,
			DownloadTimeoutSeconds: DefaultDownloadTimeoutSeconds,
		},
		Inbound: InboundConfig{
			MaxAgeSeconds: DefaultInboundMaxAgeSeconds,
		},
		Responder: ResponderConfig{
			TimeoutSeconds: DefaultResponderTimeout,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// ListenPort resolves the callback listener port: the explicit server.port,
// else the callback URL's port, else 80.
func (c Config) ListenPort() int {
	if c.Server.Port != 0 {
		return c.Server.Port
	}
	u, err := url.Parse(c.Gewe.CallbackURL)
	if err == nil {
		if p, err := strconv.Atoi(u.Port()); err == nil {
			return p
		}
	}
	return 80
}

// CallbackPath returns the path component of the callback URL, defaulting to "/".
func (c Config) CallbackPath() string {
	u, err := url.Parse(c.Gewe.CallbackURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func (d DeliveryConfig) VoiceSegment() time.Duration {
	return time.Duration(d.VoiceSegmentSeconds) * time.Second
}

func (d DeliveryConfig) VoicePace() time.Duration {
	return time.Duration(d.VoicePaceMillis) * time.Millisecond
}

func (d DeliveryConfig) DownloadTimeout() time.Duration {
	return time.Duration(d.DownloadTimeoutSeconds) * time.Second
}
