// Package config loads todoku.toml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ProjectFile is the per-directory config file name.
const ProjectFile = "todoku.toml"

// Environment overrides.
const (
	EnvURL     = "TODOKU_URL"
	EnvAnonKey = "TODOKU_ANON_KEY"
	EnvConfig  = "TODOKU_CONFIG"
)

// DefaultTimeout bounds each gateway request when none is configured.
const DefaultTimeout = 15 * time.Second

// Config represents the todoku.toml configuration file.
type Config struct {
	Gateway   Gateway   `toml:"gateway"`
	UI        UI        `toml:"ui"`
	Log       Log       `toml:"log"`
	DevServer DevServer `toml:"devserver"`
}

// Gateway locates the hosted data service.
type Gateway struct {
	URL     string   `toml:"url"`
	AnonKey string   `toml:"anon-key"`
	Timeout Duration `toml:"timeout"`
}

// UI contains rendering options.
type UI struct {
	// Theme is one of classic, neon, mono.
	Theme string `toml:"theme"`
	// Group lists pending and done todos separately.
	Group bool `toml:"group"`
}

// Log configures the client log file.
type Log struct {
	// File is the log path; "-" disables logging. Defaults to
	// todoku.log in the state directory.
	File string `toml:"file"`
}

// DevServer configures `todoku devserver`.
type DevServer struct {
	Addr      string `toml:"addr"`
	Driver    string `toml:"driver"`
	DSN       string `toml:"dsn"`
	JWTSecret string `toml:"jwt-secret"`
	AnonKey   string `toml:"anon-key"`
}

// Duration decodes TOML strings like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads the global config file, then the project file in dir, then the
// environment. Missing files are not an error.
func Load(dir string) (*Config, error) {
	globalPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}

	globalCfg, _, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg, projectMeta, err := loadConfigFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, err
	}

	merged := mergeConfigs(globalCfg, projectCfg, projectMeta)
	applyEnv(merged)
	applyDefaults(merged)
	return merged, nil
}

func globalConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "todoku", "config.toml"), nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: unknown key %s", path, undecoded[0])
	}

	return &cfg, meta, nil
}

// mergeConfigs lets every key the project file defines win over the global
// value.
func mergeConfigs(globalCfg, projectCfg *Config, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}

	str := func(key []string, project, global string) string {
		return mergeString(projectMeta.IsDefined(key...), project, global)
	}

	merged := Config{}
	merged.Gateway.URL = str([]string{"gateway", "url"}, projectCfg.Gateway.URL, globalCfg.Gateway.URL)
	merged.Gateway.AnonKey = str([]string{"gateway", "anon-key"}, projectCfg.Gateway.AnonKey, globalCfg.Gateway.AnonKey)
	merged.Gateway.Timeout = globalCfg.Gateway.Timeout
	if projectMeta.IsDefined("gateway", "timeout") {
		merged.Gateway.Timeout = projectCfg.Gateway.Timeout
	}

	merged.UI.Theme = str([]string{"ui", "theme"}, projectCfg.UI.Theme, globalCfg.UI.Theme)
	merged.UI.Group = globalCfg.UI.Group
	if projectMeta.IsDefined("ui", "group") {
		merged.UI.Group = projectCfg.UI.Group
	}

	merged.Log.File = str([]string{"log", "file"}, projectCfg.Log.File, globalCfg.Log.File)

	merged.DevServer.Addr = str([]string{"devserver", "addr"}, projectCfg.DevServer.Addr, globalCfg.DevServer.Addr)
	merged.DevServer.Driver = str([]string{"devserver", "driver"}, projectCfg.DevServer.Driver, globalCfg.DevServer.Driver)
	merged.DevServer.DSN = str([]string{"devserver", "dsn"}, projectCfg.DevServer.DSN, globalCfg.DevServer.DSN)
	merged.DevServer.JWTSecret = str([]string{"devserver", "jwt-secret"}, projectCfg.DevServer.JWTSecret, globalCfg.DevServer.JWTSecret)
	merged.DevServer.AnonKey = str([]string{"devserver", "anon-key"}, projectCfg.DevServer.AnonKey, globalCfg.DevServer.AnonKey)

	return &merged
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	value := globalValue
	if projectDefined {
		value = projectValue
	}
	return strings.TrimSpace(value)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		cfg.Gateway.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAnonKey)); v != "" {
		cfg.Gateway.AnonKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Timeout.Duration <= 0 {
		cfg.Gateway.Timeout.Duration = DefaultTimeout
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = "classic"
	}
	if cfg.DevServer.Addr == "" {
		cfg.DevServer.Addr = "127.0.0.1:54321"
	}
	if cfg.DevServer.Driver == "" {
		cfg.DevServer.Driver = "memory"
	}
}
