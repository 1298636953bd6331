package config

import "path/filepath"

// Config is the root configuration for gewebridge.
type Config struct {
	Gewe      GeweConfig      `yaml:"gewe,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Media     MediaConfig     `yaml:"media,omitempty"`
	Delivery  DeliveryConfig  `yaml:"delivery,omitempty"`
	Inbound   InboundConfig   `yaml:"inbound,omitempty"`
	Responder ResponderConfig `yaml:"responder,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
}

// GeweConfig holds the gateway API endpoint and the credentials issued by it.
type GeweConfig struct {
	BaseURL        string      `yaml:"baseUrl"`               // e.g. http://127.0.0.1:2531/v2/api
	Token          string      `yaml:"token,omitempty"`       // fetched and saved on first start when empty
	AppID          string      `yaml:"appId,omitempty"`       // assigned by the gateway on login
	CallbackURL    string      `yaml:"callbackUrl"`           // where the gateway posts events and fetches media
	DownloadURL    string      `yaml:"downloadUrl,omitempty"` // gateway download service for inbound media
	TimeoutSeconds int         `yaml:"timeoutSeconds,omitempty"`
	Proxy          ProxyConfig `yaml:"proxy,omitempty"`
}

// ProxyConfig is handed to the gateway HTTP client when it is constructed.
type ProxyConfig struct {
	URL     string   `yaml:"url,omitempty"`
	NoProxy []string `yaml:"noProxy,omitempty"`
}

// ServerConfig controls the callback listener. A zero port means "take the
// port from gewe.callbackUrl".
type ServerConfig struct {
	Bind string `yaml:"bind,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// MediaConfig names the temp root and the external transcoding tools.
type MediaConfig struct {
	TempDir     string `yaml:"tempDir,omitempty"`
	FFmpeg      string `yaml:"ffmpeg,omitempty"`
	FFprobe     string `yaml:"ffprobe,omitempty"`
	SilkEncoder string `yaml:"silkEncoder,omitempty"`
	SilkDecoder string `yaml:"silkDecoder,omitempty"`
}

// TempRoot resolves the temp directory. A relative tempDir is taken against
// base so every gewebridge process sharing a config stages files in the same
// place, whatever its working directory.
func (m MediaConfig) TempRoot(base string) string {
	if m.TempDir == "" || filepath.IsAbs(m.TempDir) {
		return m.TempDir
	}
	return filepath.Join(base, m.TempDir)
}

// DeliveryConfig tunes the outbound pipeline.
type DeliveryConfig struct {
	VoiceSegmentSeconds    int   `yaml:"voiceSegmentSeconds,omitempty"`
	VoicePaceMillis        int   `yaml:"voicePaceMillis,omitempty"`
	DownloadTimeoutSeconds int   `yaml:"downloadTimeoutSeconds,omitempty"`
	Journal                *bool `yaml:"journal,omitempty"` // defaults to true
}

// JournalEnabled reports whether deliveries are recorded to SQLite.
func (d DeliveryConfig) JournalEnabled() bool {
	return d.Journal == nil || *d.Journal
}

// InboundConfig filters webhook events before they reach the responder.
type InboundConfig struct {
	MaxAgeSeconds int `yaml:"maxAgeSeconds,omitempty"`
}

// ResponderConfig selects how replies are produced for inbound messages.
// An empty command echoes text back.
type ResponderConfig struct {
	Command        string   `yaml:"command,omitempty"`
	Args           []string `yaml:"args,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig defines shell hooks run on lifecycle events.
type HooksConfig struct {
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty"`
	ReplySending    []HookEntry `yaml:"replySending,omitempty"`
	DeliverySent    []HookEntry `yaml:"deliverySent,omitempty"`
	DeliveryFailed  []HookEntry `yaml:"deliveryFailed,omitempty"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
