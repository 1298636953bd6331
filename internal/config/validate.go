package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Gewe.BaseURL == "" {
		add("gewe.baseUrl", "base URL is required")
	} else if !isHTTPURL(cfg.Gewe.BaseURL) {
		add("gewe.baseUrl", "must be an http(s) URL, got %q", cfg.Gewe.BaseURL)
	}

	if cfg.Gewe.CallbackURL == "" {
		add("gewe.callbackUrl", "callback URL is required to serve media and receive events")
	} else if !isHTTPURL(cfg.Gewe.CallbackURL) {
		add("gewe.callbackUrl", "must be an http(s) URL, got %q", cfg.Gewe.CallbackURL)
	}

	if cfg.Gewe.Proxy.URL != "" {
		if _, err := url.Parse(cfg.Gewe.Proxy.URL); err != nil {
			add("gewe.proxy.url", "invalid proxy URL: %v", err)
		}
	}

	if cfg.Gewe.TimeoutSeconds < 0 {
		add("gewe.timeoutSeconds", "must be positive, got %d", cfg.Gewe.TimeoutSeconds)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}

	if cfg.Media.TempDir == "" {
		add("media.tempDir", "temp directory is required")
	}

	if cfg.Delivery.VoiceSegmentSeconds <= 0 {
		add("delivery.voiceSegmentSeconds", "must be positive, got %d", cfg.Delivery.VoiceSegmentSeconds)
	}
	if cfg.Delivery.VoicePaceMillis < 0 {
		add("delivery.voicePaceMillis", "must not be negative, got %d", cfg.Delivery.VoicePaceMillis)
	}
	if cfg.Delivery.DownloadTimeoutSeconds <= 0 {
		add("delivery.downloadTimeoutSeconds", "must be positive, got %d", cfg.Delivery.DownloadTimeoutSeconds)
	}

	if cfg.Inbound.MaxAgeSeconds <= 0 {
		add("inbound.maxAgeSeconds", "must be positive, got %d", cfg.Inbound.MaxAgeSeconds)
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
