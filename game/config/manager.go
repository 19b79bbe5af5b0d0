package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = service.ErrInvalidConfig
)

// DefaultConfigName is the layout used when no other default is chosen. It
// always resolves, falling back to the built-in contraption.
const DefaultConfigName = "contraption"

// Supported layout file formats, in lookup order
const (
	FormatJSON = "json"
	FormatTOML = "toml"
	FormatText = "txt"
)

var formats = []string{FormatJSON, FormatTOML, FormatText}

// Manager handles layout configuration loading and caching
type Manager struct {
	configDir     string
	defaultName   string
	defaultConfig *engine.LayoutConfig
	pinned        string // default chosen through SetDefault
	configs       map[string]*loadedLayout
	mu            sync.RWMutex
}

// loadedLayout is a cached configuration and the file it was read from
type loadedLayout struct {
	config   *engine.LayoutConfig
	filename string
	format   string
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*loadedLayout),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a configuration by name. The name may carry a file
// extension; without one every supported format is tried in order and the
// first file that decodes and validates wins.
func (m *Manager) LoadConfig(name string) (*engine.LayoutConfig, error) {
	loaded, err := m.load(name)
	if err != nil {
		return nil, err
	}
	return loaded.config, nil
}

func (m *Manager) load(name string) (*loadedLayout, error) {
	id, ext := splitName(name)
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%w: invalid config name %q", ErrInvalidConfig, name)
	}
	key := cacheKey(id, ext)

	m.mu.RLock()
	// Check cache first
	if loaded, exists := m.configs[key]; exists {
		m.mu.RUnlock()
		return loaded, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if loaded, exists := m.configs[key]; exists {
		return loaded, nil
	}

	loaded, err := m.resolve(id, ext)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) && id == DefaultConfigName && ext == "" {
			loaded = &loadedLayout{config: engine.DefaultLayoutConfig(), format: "builtin"}
			m.configs[key] = loaded
			return loaded, nil
		}
		return nil, err
	}

	m.configs[key] = loaded
	return loaded, nil
}

// cacheKey names a cache entry: the bare ID for format-free lookups, the file
// name otherwise
func cacheKey(id, ext string) string {
	if ext == "" {
		return id
	}
	return id + "." + ext
}

// ListConfigs returns information about all available configurations.
// Files that fail validation are skipped.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		id, ext := splitName(entry.Name())
		if ext == "" || seen[id] {
			continue
		}

		// Load through the cache so the lookup order matches LoadConfig
		loaded, err := m.load(id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"file":  entry.Name(),
				"error": err,
			}).Warn("Skipping invalid layout")
			continue
		}
		seen[id] = true

		configs = append(configs, newConfigInfo(loaded.filename, id, loaded.format, loaded.config))
	}

	if !seen[DefaultConfigName] {
		configs = append(configs, newConfigInfo("", DefaultConfigName, "builtin", engine.DefaultLayoutConfig()))
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].ConfigID < configs[j].ConfigID
	})

	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.LayoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// DefaultName returns the config ID of the default configuration
func (m *Manager) DefaultName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	id, _ := splitName(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = id
	m.defaultConfig = config
	m.pinned = name
	return nil
}

// RefreshCache drops all cached configurations and reloads the default. A
// default set through SetDefault is kept while it still loads.
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*loadedLayout)
	pinned := m.pinned
	m.mu.Unlock()

	if pinned != "" {
		config, err := m.LoadConfig(pinned)
		if err == nil {
			m.mu.Lock()
			m.defaultConfig = config
			m.mu.Unlock()
			return nil
		}
		logrus.WithFields(logrus.Fields{
			"config": pinned,
			"error":  err,
		}).Warn("Default layout no longer loads, choosing another")

		m.mu.Lock()
		m.pinned = ""
		m.mu.Unlock()
	}

	return m.loadDefaultConfig()
}

// SaveConfig validates a configuration and writes it as JSON
func (m *Manager) SaveConfig(name string, config *engine.LayoutConfig) error {
	if _, err := engine.ValidateLayoutConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	id, _ := splitName(name)
	if id == "" || filepath.Base(id) != id {
		return fmt.Errorf("%w: invalid config name %q", ErrInvalidConfig, name)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, id+"."+FormatJSON)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	loaded := &loadedLayout{config: config, filename: id + "." + FormatJSON, format: FormatJSON}

	m.mu.Lock()
	m.configs[cacheKey(id, FormatJSON)] = loaded
	// A bare lookup tries JSON first, so it now resolves to this file
	m.configs[id] = loaded
	m.mu.Unlock()

	return nil
}

// loadDefaultConfig picks the default layout: contraption if present, else
// the first valid layout on disk, else the built-in contraption
func (m *Manager) loadDefaultConfig() error {
	name := DefaultConfigName
	config, err := m.LoadConfig(name)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			config = engine.DefaultLayoutConfig()
		} else {
			name = configs[0].ConfigID
			if config, err = m.LoadConfig(name); err != nil {
				name, config = DefaultConfigName, engine.DefaultLayoutConfig()
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = name
	m.defaultConfig = config
	return nil
}

// resolve reads the first candidate file for a config ID that decodes and
// validates. A broken file does not hide a later format; if every existing
// candidate is broken the first error is returned. Callers hold m.mu.
func (m *Manager) resolve(id, ext string) (*loadedLayout, error) {
	candidates := formats
	if ext != "" {
		candidates = []string{ext}
	}

	var firstErr error
	for _, format := range candidates {
		path := filepath.Join(m.configDir, id+"."+format)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}

		config, err := readLayoutFile(path, format)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"file":  filepath.Base(path),
				"error": err,
			}).Debug("Layout candidate rejected")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return &loadedLayout{config: config, filename: filepath.Base(path), format: format}, nil
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrConfigNotFound
}

// readLayoutFile decodes and validates a layout file
func readLayoutFile(path, format string) (*engine.LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := DecodeLayout(data, format, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, err
	}

	if _, err := engine.ValidateLayoutConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return config, nil
}

// DecodeLayout parses layout file contents in the given format. Raw text
// grids take their name from stem.
func DecodeLayout(data []byte, format, stem string) (*engine.LayoutConfig, error) {
	var config engine.LayoutConfig

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case FormatText:
		config = engine.LayoutConfig{
			Name:        stem,
			Description: "Raw puzzle grid",
			Layout:      engine.ParseLayoutText(string(data)),
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}

	return &config, nil
}

// FormatOf returns the layout format for a file name, or "" if unsupported
func FormatOf(filename string) string {
	_, ext := splitName(filename)
	return ext
}

// splitName separates a supported extension from a config name
func splitName(name string) (id, ext string) {
	e := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, format := range formats {
		if strings.EqualFold(e, format) {
			return strings.TrimSuffix(name, filepath.Ext(name)), format
		}
	}
	return name, ""
}

func newConfigInfo(filename, id, format string, config *engine.LayoutConfig) *service.ConfigInfo {
	info := &service.ConfigInfo{
		Filename:    filename,
		ConfigID:    id,
		Name:        config.Name,
		Description: config.Description,
		Format:      format,
	}
	if len(config.Layout) > 0 {
		info.Height = len(config.Layout)
		info.Width = len([]rune(config.Layout[0]))
	}
	return info
}
