package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and proxy credentials can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gewe.Token = expandEnvVars(cfg.Gewe.Token)
	cfg.Gewe.Proxy.URL = expandEnvVars(cfg.Gewe.Proxy.URL)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Persist sets a single dotted key in the config file, leaving the rest of
// the document untouched. Used to save the token and app id obtained at startup.
func Persist(path, key string, value any) error {
	segments, err := ParseConfigPath(key)
	if err != nil {
		return err
	}
	raw, err := LoadRaw(path)
	if err != nil {
		return err
	}
	SetValueAtPath(raw, segments, value)
	return SaveRaw(path, raw)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gewe.TimeoutSeconds == 0 {
		cfg.Gewe.TimeoutSeconds = d.Gewe.TimeoutSeconds
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Media.TempDir == "" {
		cfg.Media.TempDir = d.Media.TempDir
	}
	if cfg.Media.FFmpeg == "" {
		cfg.Media.FFmpeg = d.Media.FFmpeg
	}
	if cfg.Media.FFprobe == "" {
		cfg.Media.FFprobe = d.Media.FFprobe
	}
	if cfg.Media.SilkEncoder == "" {
		cfg.Media.SilkEncoder = d.Media.SilkEncoder
	}
	if cfg.Media.SilkDecoder == "" {
		cfg.Media.SilkDecoder = d.Media.SilkDecoder
	}
	if cfg.Delivery.VoiceSegmentSeconds == 0 {
		cfg.Delivery.VoiceSegmentSeconds = d.Delivery.VoiceSegmentSeconds
	}
	if cfg.Delivery.VoicePaceMillis == 0 {
		cfg.Delivery.VoicePaceMillis = d.Delivery.VoicePaceMillis
	}
	if cfg.Delivery.DownloadTimeoutSeconds == 0 {
		cfg.Delivery.DownloadTimeoutSeconds = d.Delivery.DownloadTimeoutSeconds
	}
	if cfg.Inbound.MaxAgeSeconds == 0 {
		cfg.Inbound.MaxAgeSeconds = d.Inbound.MaxAgeSeconds
	}
	if cfg.Responder.TimeoutSeconds == 0 {
		cfg.Responder.TimeoutSeconds = d.Responder.TimeoutSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads GEWEBRIDGE_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEWEBRIDGE_GEWE_BASE_URL"); v != "" {
		cfg.Gewe.BaseURL = v
	}
	if v := os.Getenv("GEWEBRIDGE_GEWE_TOKEN"); v != "" {
		cfg.Gewe.Token = v
	}
	if v := os.Getenv("GEWEBRIDGE_GEWE_APP_ID"); v != "" {
		cfg.Gewe.AppID = v
	}
	if v := os.Getenv("GEWEBRIDGE_CALLBACK_URL"); v != "" {
		cfg.Gewe.CallbackURL = v
	}
	if v := os.Getenv("GEWEBRIDGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GEWEBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// CheckRaw reports whether a raw config document still decodes into Config
// after key was edited. Unknown fields and type mismatches are rejected, and
// so are validation issues at or below key. Issues elsewhere in the document
// are left alone so a fresh file can be filled in one key at a time.
func CheckRaw(raw map[string]any, key string) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return &ConfigError{Message: "invalid value for " + key + ": " + err.Error()}
	}
	applyDefaults(&cfg)

	var msgs []string
	for _, issue := range Validate(&cfg) {
		if issue.Path == key || strings.HasPrefix(issue.Path, key+".") || strings.HasPrefix(key, issue.Path+".") {
			msgs = append(msgs, issue.String())
		}
	}
	if len(msgs) > 0 {
		return &ConfigError{Message: strings.Join(msgs, "; ")}
	}
	return nil
}
