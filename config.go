package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"sshbot/internal/monitor"
	"sshbot/internal/remote"
)

// Config is loaded from the environment, optionally seeded from a .env file.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`
	AdminUserID int64  `envconfig:"ADMIN_USER_ID" required:"true"`

	SSH SSHConfig `envconfig:"SSH"`

	CPUThreshold        float64 `envconfig:"CPU_THRESHOLD" default:"90"`
	RAMThreshold        float64 `envconfig:"RAM_THRESHOLD" default:"90"`
	DiskThreshold       float64 `envconfig:"DISK_THRESHOLD" default:"95"`
	AlertRecoveryNotify bool    `envconfig:"ALERT_RECOVERY_NOTIFY" default:"true"`

	DashboardInterval    time.Duration `envconfig:"DASHBOARD_INTERVAL" default:"10s"`
	AlertInterval        time.Duration `envconfig:"ALERT_INTERVAL" default:"10m"`
	AvailabilityInterval time.Duration `envconfig:"AVAILABILITY_INTERVAL" default:"2m"`

	LogFile      string `envconfig:"LOG_FILE" default:"bot.log"`
	LogMaxSizeMB int    `envconfig:"LOG_MAX_SIZE_MB" default:"5"`
	LogBackups   int    `envconfig:"LOG_BACKUPS" default:"5"`
	LogTempDir   string `envconfig:"LOG_TEMP_DIR"`
}

// SSHConfig fields are read as SSH_HOST, SSH_PORT and so on. Keys come from
// split_words so envconfig never falls back to the bare HOST, PORT or USER.
type SSHConfig struct {
	Host           string        `split_words:"true" required:"true"`
	Port           int           `split_words:"true" default:"22"`
	User           string        `split_words:"true" required:"true"`
	KeyPath        string        `split_words:"true" required:"true"`
	KnownHosts     string        `split_words:"true"`
	ConnectTimeout time.Duration `split_words:"true" default:"10s"`
	CommandTimeout time.Duration `split_words:"true" default:"30s"`
}

// loadConfig reads envPath (if it exists) and then the process environment.
// Variables already set in the environment win over the file.
func loadConfig(envPath string) (*Config, error) {
	if err := loadDotEnv(envPath); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.LogTempDir == "" {
		cfg.LogTempDir = os.TempDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.AdminUserID <= 0 {
		errs = append(errs, errors.New("ADMIN_USER_ID must be a positive user id"))
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("SSH_PORT %d out of range", c.SSH.Port))
	}
	for name, v := range map[string]float64{
		"CPU_THRESHOLD":  c.CPUThreshold,
		"RAM_THRESHOLD":  c.RAMThreshold,
		"DISK_THRESHOLD": c.DiskThreshold,
	} {
		if v <= 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be in (0,100], got %v", name, v))
		}
	}
	for name, d := range map[string]time.Duration{
		"DASHBOARD_INTERVAL":    c.DashboardInterval,
		"ALERT_INTERVAL":        c.AlertInterval,
		"AVAILABILITY_INTERVAL": c.AvailabilityInterval,
		"SSH_CONNECT_TIMEOUT":   c.SSH.ConnectTimeout,
		"SSH_COMMAND_TIMEOUT":   c.SSH.CommandTimeout,
	} {
		if d < time.Second {
			errs = append(errs, fmt.Errorf("%s must be at least 1s, got %s", name, d))
		}
	}
	if c.LogMaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("LOG_MAX_SIZE_MB must be at least 1, got %d", c.LogMaxSizeMB))
	}
	if c.LogBackups < 0 {
		errs = append(errs, fmt.Errorf("LOG_BACKUPS must not be negative, got %d", c.LogBackups))
	}
	return errors.Join(errs...)
}

func (c *Config) Remote() remote.Config {
	return remote.Config{
		Host:           c.SSH.Host,
		Port:           c.SSH.Port,
		User:           c.SSH.User,
		KeyPath:        c.SSH.KeyPath,
		KnownHostsPath: c.SSH.KnownHosts,
		ConnectTimeout: c.SSH.ConnectTimeout,
		CommandTimeout: c.SSH.CommandTimeout,
	}
}

func (c *Config) Thresholds() monitor.Thresholds {
	return monitor.Thresholds{CPU: c.CPUThreshold, RAM: c.RAMThreshold, Disk: c.DiskThreshold}
}
