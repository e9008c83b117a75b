package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Settings represents user preferences stored in ~/.config/drift/drift.toml
type Settings struct {
	Version int            `toml:"version"`
	Server  ServerSettings `toml:"server"`
	UI      UISettings     `toml:"ui"`
	Files   FileSettings   `toml:"files"`
	Debug   bool           `toml:"debug"`
}

// ServerSettings holds connection preferences
type ServerSettings struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Icon     string `toml:"icon"`
}

// UISettings holds UI-related preferences
type UISettings struct {
	Theme          string `toml:"theme"`
	TimestampStyle string `toml:"timestamp_style"` // "short" or "full"
	QuitConfirm    bool   `toml:"quit_confirm"`
}

// FileSettings holds transfer preferences
type FileSettings struct {
	DownloadDir string `toml:"download_dir"`
	Workers     int    `toml:"workers"`
}

// DefaultSettings returns the settings used when no config file exists
func DefaultSettings() *Settings {
	home, _ := os.UserHomeDir()
	return &Settings{
		Version: 1,
		Server: ServerSettings{
			Address: "ws://localhost:8080/ws",
		},
		UI: UISettings{
			Theme:          "dracula",
			TimestampStyle: "short",
			QuitConfirm:    true,
		},
		Files: FileSettings{
			DownloadDir: filepath.Join(home, "Downloads", "drift"),
			Workers:     3,
		},
	}
}

// ConfigManager handles loading and saving the settings file
type ConfigManager struct {
	path string
	mu   sync.Mutex
}

// NewConfigManager creates a manager rooted at ~/.config/drift
func NewConfigManager() (*ConfigManager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	driftDir := filepath.Join(homeDir, ".config", "drift")
	if err := os.MkdirAll(driftDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &ConfigManager{path: filepath.Join(driftDir, "drift.toml")}, nil
}

// ConfigDir returns the directory holding the settings file
func (cm *ConfigManager) ConfigDir() string {
	return filepath.Dir(cm.path)
}

// Load reads the settings file, returning defaults if it does not exist
func (cm *ConfigManager) Load() (*Settings, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := toml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// Save writes the settings atomically via a temp file rename
func (cm *ConfigManager) Save(settings *Settings) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tempFile := cm.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tempFile, cm.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
