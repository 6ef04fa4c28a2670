// Package config builds the single runtime configuration for relayops.
//
// The configuration is assembled once at startup: compiled defaults, then an
// optional YAML file, then environment overrides. Components receive the
// resulting struct by reference and never consult the environment themselves.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized at startup.
const (
	EnvWorkdir        = "RELAYX_DIR"
	EnvDBContainer    = "RELAYX_DB_CONTAINER"
	EnvCacheContainer = "RELAYX_CACHE_CONTAINER"
)

type Config struct {
	Stack    StackConfig    `yaml:"stack"`
	Backup   BackupConfig   `yaml:"backup"`
	Restore  RestoreConfig  `yaml:"restore"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Journal  JournalConfig  `yaml:"journal"`
}

// StackConfig describes the compose stack relayops operates on.
type StackConfig struct {
	DefaultDir     string   `yaml:"default_dir"`
	ComposeFile    string   `yaml:"compose_file"`
	EnvFile        string   `yaml:"env_file"`
	ProxyFile      string   `yaml:"proxy_file"`
	Project        string   `yaml:"project"`
	DBContainer    string   `yaml:"db_container"`
	CacheContainer string   `yaml:"cache_container"`
	DBService      string   `yaml:"db_service"`
	DBName         string   `yaml:"db_name"`
	Volumes        []string `yaml:"volumes"`
	HelperImage    string   `yaml:"helper_image"`
}

// BackupConfig controls where bundles are staged and packed.
type BackupConfig struct {
	// Dir is relative to the resolved working directory.
	Dir      string `yaml:"dir"`
	FullName string `yaml:"full_name"`
	DataName string `yaml:"data_name"`
}

type RestoreConfig struct {
	ReadyAttempts     int `yaml:"ready_attempts"`
	ReadyDelaySeconds int `yaml:"ready_delay_seconds"`
}

type ScheduleConfig struct {
	Path    string `yaml:"path"`
	FullLog string `yaml:"full_log"`
	DataLog string `yaml:"data_log"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

// SiteFiles returns the three files that must exist in the working directory
// before any backup or restore proceeds.
func (s *StackConfig) SiteFiles() []string {
	return []string{s.ComposeFile, s.EnvFile, s.ProxyFile}
}

// VolumeName maps a logical volume name to the compose-managed volume name.
func (s *StackConfig) VolumeName(logical string) string {
	return s.Project + "_" + logical
}

// ReadyDelay returns the inter-attempt delay of the database readiness probe.
func (r *RestoreConfig) ReadyDelay() time.Duration {
	return time.Duration(r.ReadyDelaySeconds) * time.Second
}

// Load reads an optional YAML config file, fills defaults, and applies
// environment overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	setDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Stack.DefaultDir == "" {
		cfg.Stack.DefaultDir = "/opt/relayx"
	}
	if cfg.Stack.ComposeFile == "" {
		cfg.Stack.ComposeFile = "compose.yaml"
	}
	if cfg.Stack.EnvFile == "" {
		cfg.Stack.EnvFile = ".env"
	}
	if cfg.Stack.ProxyFile == "" {
		cfg.Stack.ProxyFile = "Caddyfile"
	}
	if cfg.Stack.Project == "" {
		cfg.Stack.Project = "relayx"
	}
	if cfg.Stack.DBContainer == "" {
		cfg.Stack.DBContainer = "relayx-mysql"
	}
	if cfg.Stack.CacheContainer == "" {
		cfg.Stack.CacheContainer = "relayx-redis"
	}
	if cfg.Stack.DBService == "" {
		cfg.Stack.DBService = "mysql"
	}
	if cfg.Stack.DBName == "" {
		// Single fixed logical database. The dump and import paths target
		// exactly this name; multiple databases are out of scope.
		cfg.Stack.DBName = "relayx"
	}
	if len(cfg.Stack.Volumes) == 0 {
		cfg.Stack.Volumes = []string{"mysql", "redis", "caddy_data", "caddy_config"}
	}
	if cfg.Stack.HelperImage == "" {
		cfg.Stack.HelperImage = "alpine:3.20"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "backups"
	}
	if cfg.Backup.FullName == "" {
		cfg.Backup.FullName = "relayx_full_latest"
	}
	if cfg.Backup.DataName == "" {
		cfg.Backup.DataName = "relayx_data_latest"
	}
	if cfg.Restore.ReadyAttempts == 0 {
		cfg.Restore.ReadyAttempts = 30
	}
	if cfg.Restore.ReadyDelaySeconds == 0 {
		cfg.Restore.ReadyDelaySeconds = 2
	}
	if cfg.Schedule.Path == "" {
		cfg.Schedule.Path = "/etc/cron.d/relayx-backup"
	}
	if cfg.Schedule.FullLog == "" {
		cfg.Schedule.FullLog = "/var/log/relayx-backup-full.log"
	}
	if cfg.Schedule.DataLog == "" {
		cfg.Schedule.DataLog = "/var/log/relayx-backup-data.log"
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = "/var/lib/relayops/journal.db"
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBContainer); v != "" {
		cfg.Stack.DBContainer = v
	}
	if v := os.Getenv(EnvCacheContainer); v != "" {
		cfg.Stack.CacheContainer = v
	}
}
