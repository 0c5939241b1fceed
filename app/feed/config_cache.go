package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultSourceName names the source built from flags when no YAML source exists.
const DefaultSourceName = "articles"

// Defaults fill in settings a source file leaves out.
type Defaults struct {
	URL             string
	PageSize        int
	RefreshInterval int
	Timeout         int
}

type ConfigCache struct {
	feedsDir string
	defaults Defaults
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string, defaults Defaults) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		defaults: defaults,
		cache:    make(map[string]*Config),
	}
}

// Run loads every *.yml source in the feeds directory. When there is none,
// a single DefaultSourceName source is registered from the defaults.
func (cc *ConfigCache) Run() error {
	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		feedName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", feedName, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	if len(files) == 0 {
		if err := cc.registerDefault(); err != nil {
			return err
		}
		slog.Info("No feed sources found, using default", "feeds_dir", cc.feedsDir, "url", cc.defaults.URL)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := cc.getConfigFilePath(feedName)
	feedConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	feedConfig.Name = feedName

	if err := cc.validateConfig(feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.Name] = feedConfig

	return feedConfig, nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return feedConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

// GetEnabledConfigs returns enabled sources ordered by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		if v.Settings.Enabled {
			enabled = append(enabled, v)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name < enabled[j].Name })
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) registerDefault() error {
	feedConfig := &Config{
		Name: DefaultSourceName,
		URL:  cc.defaults.URL,
		Settings: ConfigSettings{
			Enabled:         true,
			PageSize:        cc.defaults.PageSize,
			RefreshInterval: cc.defaults.RefreshInterval,
			Timeout:         cc.defaults.Timeout,
		},
	}
	cc.applyDefaults(feedConfig)

	if err := cc.validateConfig(feedConfig); err != nil {
		return fmt.Errorf("invalid default feed source: %w", err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.Name] = feedConfig
	return nil
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cc.applyDefaults(&feedConfig)

	return &feedConfig, nil
}

func (cc *ConfigCache) applyDefaults(feedConfig *Config) {
	if feedConfig.Settings.PageSize == 0 {
		feedConfig.Settings.PageSize = cc.defaults.PageSize
	}
	if feedConfig.Settings.PageSize == 0 {
		feedConfig.Settings.PageSize = 10
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = cc.defaults.Timeout
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = 30
	}
}

func (cc *ConfigCache) validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	requiredFeedFields := map[string]string{
		"feed name": feedConfig.Name,
		"feed URL":  feedConfig.URL,
	}

	for fieldName, fieldValue := range requiredFeedFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	u, err := url.Parse(feedConfig.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed URL %q must be an absolute http(s) URL", feedConfig.URL)
	}

	nonNegativeFields := map[string]int{
		"refresh interval": feedConfig.Settings.RefreshInterval,
		"page size":        feedConfig.Settings.PageSize,
		"timeout":          feedConfig.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(feedName string) string {
	return filepath.Join(cc.feedsDir, feedName+".yml")
}
