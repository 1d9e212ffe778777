package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/enhancecam/enhancecam/internal/logger"
)

// ServerConfig describes how to reach the remote enhancement service
type ServerConfig struct {
	Host             string `json:"host" yaml:"host"`
	Port             int    `json:"port" yaml:"port"`
	Path             string `json:"path" yaml:"path"`
	TLS              bool   `json:"tls" yaml:"tls"`
	ReconnectDelayMs int    `json:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
}

// URL builds the WebSocket URL for the enhancement service.
// The scheme mirrors the configured transport security.
func (s ServerConfig) URL() string {
	scheme := "ws"
	if s.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, s.Host, s.Port, s.Path)
}

// ReconnectDelay returns the fixed reconnect backoff as a duration
func (s ServerConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMs) * time.Millisecond
}

// CaptureConfig holds the per-session capture parameters.
// These are fixed at pipeline start and never mutated during a session.
type CaptureConfig struct {
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	Quality   int    `json:"quality" yaml:"quality"`
	FrameSkip int    `json:"frame_skip" yaml:"frame_skip"`
	RefreshHz int    `json:"refresh_hz" yaml:"refresh_hz"`
	Source    string `json:"source" yaml:"source"`

	// Screen region for the X11 source; zero values mean full screen
	RegionX      int `json:"region_x" yaml:"region_x"`
	RegionY      int `json:"region_y" yaml:"region_y"`
	RegionWidth  int `json:"region_width" yaml:"region_width"`
	RegionHeight int `json:"region_height" yaml:"region_height"`
}

// Config represents the application configuration
type Config struct {
	Server      ServerConfig  `json:"server" yaml:"server"`
	Capture     CaptureConfig `json:"capture" yaml:"capture"`
	ControlPort int           `json:"control_port" yaml:"control_port"`
	LogLevel    string        `json:"log_level" yaml:"log_level"`
}

// Manager handles configuration loading and persistence
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. If configFile is empty the
// default path under the user's config directory is used; a config file is
// created with defaults on first run.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "enhancecam")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("server", m.config.Server.URL()).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration: 640x360 capture at JPEG
// quality 60, no frame skipping, and the well-known enhancement endpoint.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "localhost",
			Port:             8000,
			Path:             "/ws/enhance",
			TLS:              false,
			ReconnectDelayMs: 3000,
		},
		Capture: CaptureConfig{
			Width:     640,
			Height:    360,
			Quality:   60,
			FrameSkip: 0,
			RefreshHz: 30,
			Source:    "x11",
		},
		ControlPort: 8080,
		LogLevel:    "info",
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

func validate(cfg *Config) error {
	if cfg.Capture.Width <= 0 || cfg.Capture.Height <= 0 {
		return fmt.Errorf("invalid capture resolution %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.Quality < 1 || cfg.Capture.Quality > 100 {
		return fmt.Errorf("invalid JPEG quality %d (want 1-100)", cfg.Capture.Quality)
	}
	if cfg.Capture.FrameSkip < 0 {
		return fmt.Errorf("invalid frame skip %d", cfg.Capture.FrameSkip)
	}
	if cfg.Capture.RefreshHz <= 0 {
		return fmt.Errorf("invalid refresh rate %d", cfg.Capture.RefreshHz)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// SetServerHost overrides the enhancement service host
func (m *Manager) SetServerHost(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Server.Host = host
}

// SetControlPort overrides the local control server port
func (m *Manager) SetControlPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.ControlPort = port
}

// SetLogLevel overrides the log level
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
