package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig describes one polled mailbox. The password is never
// stored in the config file; it is resolved at invocation time from
// the environment or the system keyring, keyed by OwnerID.
type MailboxConfig struct {
	// OwnerID is the mailbox-owner identifier used for credential
	// lookup (IMAP_USER_<OWNER> / IMAP_PASS_<OWNER>) and dedup keys.
	OwnerID string `mapstructure:"owner_id" yaml:"owner_id"`

	// Username overrides the env-resolved login name when set.
	Username string `mapstructure:"username" yaml:"username"`

	// Folders lists the folders polled each cycle. Defaults to INBOX.
	Folders []string `mapstructure:"folders" yaml:"folders"`

	// Enabled controls whether this mailbox is polled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// IMAPConfig holds the shared IMAP server endpoint.
type IMAPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// SMTPConfig holds the shared outbound SMTP endpoint. FallbackPort is
// tried with STARTTLS when the implicit-TLS port fails.
type SMTPConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         string `mapstructure:"port" yaml:"port"`
	FallbackPort string `mapstructure:"fallback_port" yaml:"fallback_port"`
}

// BoardConfig points at the external task board that receives
// auto-created work items.
type BoardConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP  IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	SMTP  SMTPConfig  `mapstructure:"smtp" yaml:"smtp"`
	Board BoardConfig `mapstructure:"board" yaml:"board"`

	Mailboxes []MailboxConfig `mapstructure:"mailboxes" yaml:"mailboxes"`

	// FolderAliases maps a logical folder name to the ordered list of
	// physical candidates tried against the server.
	FolderAliases map[string][]string `mapstructure:"folder_aliases" yaml:"folder_aliases"`

	// PollIntervalSec is the pause between polling cycles.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// InboxWindowDays and ArchiveWindowDays bound the search recency
	// window per folder kind.
	InboxWindowDays   int `mapstructure:"inbox_window_days" yaml:"inbox_window_days"`
	ArchiveWindowDays int `mapstructure:"archive_window_days" yaml:"archive_window_days"`

	// FetchLimit caps how many recent messages one fetch returns.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// DBPath is the SQLite file holding processed markers.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/mailboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailboard", "config.yaml")
}

// DefaultDBPath returns the default SQLite database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailboard.db")
	}
	return filepath.Join(home, ".config", "mailboard", "mailboard.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP:              IMAPConfig{Port: "993"},
		SMTP:              SMTPConfig{Port: "465", FallbackPort: "587"},
		FolderAliases:     map[string][]string{},
		PollIntervalSec:   300,
		InboxWindowDays:   2,
		ArchiveWindowDays: 30,
		FetchLimit:        20,
		DBPath:            DefaultDBPath(),
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns defaults. Endpoint
// values left empty in the file fall back to the IMAP_HOST, IMAP_PORT,
// SMTP_HOST and SMTP_PORT environment variables.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("imap.port", "993")
	v.SetDefault("smtp.port", "465")
	v.SetDefault("smtp.fallback_port", "587")
	v.SetDefault("poll_interval_sec", 300)
	v.SetDefault("inbox_window_days", 2)
	v.SetDefault("archive_window_days", 30)
	v.SetDefault("fetch_limit", 20)
	v.SetDefault("db_path", DefaultDBPath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return applyEnvEndpoints(defaultAppConfig()), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return applyEnvEndpoints(defaultAppConfig()), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Mailboxes {
		if len(cfg.Mailboxes[i].Folders) == 0 {
			cfg.Mailboxes[i].Folders = []string{"INBOX"}
		}
		// Viper unmarshals missing bools as false; treat unset as true.
		key := fmt.Sprintf("mailboxes.%d.enabled", i)
		if !cfg.Mailboxes[i].Enabled && !v.IsSet(key) {
			cfg.Mailboxes[i].Enabled = true
		}
	}

	return applyEnvEndpoints(cfg), nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)
	v.Set("board", cfg.Board)
	v.Set("mailboxes", cfg.Mailboxes)
	v.Set("folder_aliases", cfg.FolderAliases)
	v.Set("poll_interval_sec", cfg.PollIntervalSec)
	v.Set("inbox_window_days", cfg.InboxWindowDays)
	v.Set("archive_window_days", cfg.ArchiveWindowDays)
	v.Set("fetch_limit", cfg.FetchLimit)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// applyEnvEndpoints fills empty server endpoints from the environment,
// matching the original deployment's IMAP_HOST/SMTP_HOST convention.
func applyEnvEndpoints(cfg *AppConfig) *AppConfig {
	if cfg.IMAP.Host == "" {
		cfg.IMAP.Host = os.Getenv("IMAP_HOST")
	}
	if p := os.Getenv("IMAP_PORT"); p != "" && cfg.IMAP.Port == "993" {
		cfg.IMAP.Port = p
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = os.Getenv("SMTP_HOST")
		if cfg.SMTP.Host == "" {
			cfg.SMTP.Host = cfg.IMAP.Host
		}
	}
	if p := os.Getenv("SMTP_PORT"); p != "" && cfg.SMTP.Port == "465" {
		cfg.SMTP.Port = p
	}
	return cfg
}
