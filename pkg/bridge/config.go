// Copyright 2024-2026 Aiku AI

package bridge

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the bridge configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Signal   SignalConfig   `yaml:"signal"`
	Group    GroupConfig    `yaml:"group"`
	Delays   DelayConfig    `yaml:"delays"`

	// MappingsFile is the path of the persisted chat-to-group store.
	MappingsFile string `yaml:"mappings_file"`
	// FFmpegPath is the transcoder binary, looked up on PATH by default.
	FFmpegPath string `yaml:"ffmpeg_path"`
}

type TelegramConfig struct {
	// BotToken falls back to the TELEGRAM_BOT_TOKEN environment variable
	// so the config file can stay secret-free.
	BotToken       string `yaml:"bot_token"`
	EnableChannels bool   `yaml:"enable_channels"`
	// MediaDir is where downloaded Telegram media is staged before upload.
	MediaDir string `yaml:"media_dir"`
}

type SignalConfig struct {
	RPCURL    string `yaml:"rpc_url"`
	EventsURL string `yaml:"events_url"`
	// AttachmentsDir is where signal-cli stores incoming attachments,
	// named by attachment ID.
	AttachmentsDir string `yaml:"attachments_dir"`
	// Forwarding enables the Signal-to-Telegram direction. When false the
	// event listener is not started at all.
	Forwarding        bool `yaml:"forwarding"`
	SendVideoAsNote   bool `yaml:"send_video_as_note"`
	RequestTimeoutSec int  `yaml:"request_timeout_sec"`
	ReconnectDelaySec int  `yaml:"reconnect_delay_sec"`
}

// GroupConfig controls how provisioned Signal groups are created.
type GroupConfig struct {
	// NamePrefix is prepended to group names, e.g. "(Telegram) My Chat".
	NamePrefix string `yaml:"name_prefix"`
	// DefaultMember is the Signal account invited into every new group.
	DefaultMember string `yaml:"default_member"`
	// ExpirationDays sets disappearing-message retention on new groups.
	ExpirationDays int `yaml:"expiration_days"`
}

// DelayConfig paces the delivery pipelines between items.
type DelayConfig struct {
	SignalSendMS   int `yaml:"signal_send_ms"`
	TelegramSendMS int `yaml:"telegram_send_ms"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies environment fallbacks and defaults, then validates
// that everything the engine cannot run without is present.
func (c *Config) PostProcess() error {
	if c.Telegram.BotToken == "" {
		c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Group.DefaultMember == "" {
		c.Group.DefaultMember = os.Getenv("DEFAULT_GROUP_MEMBER")
	}

	if c.Telegram.MediaDir == "" {
		c.Telegram.MediaDir = os.TempDir()
	}
	if c.MappingsFile == "" {
		c.MappingsFile = "mappings.json"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Group.ExpirationDays <= 0 {
		c.Group.ExpirationDays = 31
	}
	if c.Signal.RequestTimeoutSec <= 0 {
		c.Signal.RequestTimeoutSec = 30
	}
	if c.Signal.ReconnectDelaySec <= 0 {
		c.Signal.ReconnectDelaySec = 5
	}
	if c.Delays.SignalSendMS <= 0 {
		c.Delays.SignalSendMS = 1000
	}
	if c.Delays.TelegramSendMS <= 0 {
		c.Delays.TelegramSendMS = 500
	}

	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Signal.RPCURL == "" {
		return fmt.Errorf("signal.rpc_url is required")
	}
	if c.Signal.Forwarding {
		if c.Signal.EventsURL == "" {
			return fmt.Errorf("signal.events_url is required when forwarding is enabled")
		}
		if c.Signal.AttachmentsDir == "" {
			return fmt.Errorf("signal.attachments_dir is required when forwarding is enabled")
		}
	}
	if c.Group.DefaultMember == "" {
		return fmt.Errorf("group.default_member is required")
	}
	return nil
}

// LoadConfig reads and post-processes a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SignalConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *SignalConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySec) * time.Second
}

func (d *DelayConfig) SignalSend() time.Duration {
	return time.Duration(d.SignalSendMS) * time.Millisecond
}

func (d *DelayConfig) TelegramSend() time.Duration {
	return time.Duration(d.TelegramSendMS) * time.Millisecond
}
