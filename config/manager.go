package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// reloadDebounce collapses bursts of writes from editors into one reload
const reloadDebounce = 100 * time.Millisecond

// Manager loads configuration and reloads it when the config file changes
type Manager struct {
	config      *Config
	watchers    []ConfigWatcher
	mu          sync.RWMutex
	configPath  string
	fileWatcher *fsnotify.Watcher
	stopChan    chan struct{}
	stopOnce    sync.Once
	environment string
	logger      zerolog.Logger
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(oldConfig, newConfig *Config) error

// NewManager creates a new configuration manager
func NewManager(environment string) *Manager {
	return &Manager{
		environment: environment,
		watchers:    make([]ConfigWatcher, 0),
		stopChan:    make(chan struct{}),
		logger:      zerolog.Nop(),
	}
}

// SetLogger sets the logger used for reload diagnostics
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger.With().Str("component", "config").Logger()
}

// LoadFromFile loads a YAML file over the defaults and applies environment overrides
func (m *Manager) LoadFromFile(filePath string) error {
	config, err := LoadFile(filePath)
	if err != nil {
		return err
	}
	if err := m.finalize(config); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
	m.configPath = filePath
	return nil
}

// LoadFromEnv loads configuration from environment variables only
func (m *Manager) LoadFromEnv() error {
	config := Load()
	if err := m.finalize(config); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
	return nil
}

// finalize applies the manager environment and validates
func (m *Manager) finalize(config *Config) error {
	if m.environment != "" && os.Getenv("ENVIRONMENT") == "" {
		config.Server.Environment = m.environment
	}
	return config.Validate()
}

// StartWatching starts watching the configuration file for changes
func (m *Manager) StartWatching() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configPath == "" {
		return nil // No file to watch
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic renames by editors are seen
	if err := watcher.Add(filepath.Dir(m.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to add file to watcher %s: %w", m.configPath, err)
	}
	m.fileWatcher = watcher

	go m.watchLoop(watcher, filepath.Clean(m.configPath))

	return nil
}

// StopWatching stops watching the configuration file
func (m *Manager) StopWatching() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.fileWatcher != nil {
			m.fileWatcher.Close()
		}
	})
}

// AddWatcher adds a configuration change watcher
func (m *Manager) AddWatcher(watcher ConfigWatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, watcher)
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return nil
	}
	// Return a copy to prevent external modification
	configCopy := *m.config
	configCopy.Security.CorsAllowedOrigins = append([]string(nil), m.config.Security.CorsAllowedOrigins...)
	return &configCopy
}

// ConfigPath returns the watched file, if any
func (m *Manager) ConfigPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configPath
}

// Reload forces a configuration reload.
// A failed reload keeps the previous configuration.
func (m *Manager) Reload() error {
	oldConfig := m.GetConfig()

	if path := m.ConfigPath(); path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return err
		}
	} else {
		if err := m.LoadFromEnv(); err != nil {
			return err
		}
	}

	newConfig := m.GetConfig()

	// Notify watchers
	return m.notifyWatchers(oldConfig, newConfig)
}

// watchLoop watches for file changes
func (m *Manager) watchLoop(watcher *fsnotify.Watcher, path string) {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce rapid writes
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := m.Reload(); err != nil {
				// Log error but continue watching
				m.logger.Error().Err(err).Str("path", path).Msg("Failed to reload config")
				continue
			}
			m.logger.Info().Str("path", path).Msg("Configuration reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("Config watcher error")
		case <-m.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// notifyWatchers notifies all configuration watchers
func (m *Manager) notifyWatchers(oldConfig, newConfig *Config) error {
	m.mu.RLock()
	watchers := append([]ConfigWatcher(nil), m.watchers...)
	m.mu.RUnlock()

	for _, watcher := range watchers {
		if err := watcher(oldConfig, newConfig); err != nil {
			return fmt.Errorf("config watcher failed: %w", err)
		}
	}
	return nil
}

// ExportToFile writes the current configuration as YAML, omitting secrets
func (m *Manager) ExportToFile(filePath string) error {
	config := m.GetConfig()
	if config == nil {
		return fmt.Errorf("no configuration loaded")
	}
	config.Completion.APIKey = ""
	config.Redis.Password = ""

	// Create directory if it doesn't exist
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}

	return nil
}
