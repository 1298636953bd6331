package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Gewe.BaseURL = "http://127.0.0.1:2531/v2/api"
	cfg.Gewe.CallbackURL = "http://172.17.0.1:9919/v2/api/callback/collect"
	return cfg
}

func issuePaths(issues []ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Path)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"missing base url", func(c *Config) { c.Gewe.BaseURL = "" }, "gewe.baseUrl"},
		{"bad base url", func(c *Config) { c.Gewe.BaseURL = "ftp://x" }, "gewe.baseUrl"},
		{"missing callback", func(c *Config) { c.Gewe.CallbackURL = "" }, "gewe.callbackUrl"},
		{"relative callback", func(c *Config) { c.Gewe.CallbackURL = "/callback" }, "gewe.callbackUrl"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty temp dir", func(c *Config) { c.Media.TempDir = "" }, "media.tempDir"},
		{"zero segment", func(c *Config) { c.Delivery.VoiceSegmentSeconds = 0 }, "delivery.voiceSegmentSeconds"},
		{"negative pace", func(c *Config) { c.Delivery.VoicePaceMillis = -1 }, "delivery.voicePaceMillis"},
		{"zero download timeout", func(c *Config) { c.Delivery.DownloadTimeoutSeconds = 0 }, "delivery.downloadTimeoutSeconds"},
		{"zero inbound age", func(c *Config) { c.Inbound.MaxAgeSeconds = 0 }, "inbound.maxAgeSeconds"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad console style", func(c *Config) { c.Logging.ConsoleStyle = "compact" }, "logging.consoleStyle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Contains(t, issuePaths(Validate(&cfg)), tt.path)
		})
	}
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "server.port", Message: "bad"}
	assert.Equal(t, "server.port: bad", issue.String())
}
