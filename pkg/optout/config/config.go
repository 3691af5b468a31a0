package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrConfig marks every configuration problem: missing file, bad syntax,
// unknown profile or incomplete profile fields.
var ErrConfig = errors.New("invalid configuration")

const (
	DefaultRelayHost     = "smtp.gmail.com"
	DefaultRelayPort     = 587
	DefaultDirectoryPath = "data/data-brokers.csv"
	DefaultDirectoryURL  = "https://raw.githubusercontent.com/optery/optery-data-brokers-directory/refs/heads/master/data/data-brokers.csv"
	DefaultSendDelay     = "2s"
	DefaultHistoryPath   = "data/history.db"
	DefaultProfile       = "personal"
)

type Config struct {
	Profiles  map[string]Profile `json:"profiles" yaml:"profiles"`
	Relay     Relay              `json:"relay,omitempty" yaml:"relay,omitempty"`
	Directory Directory          `json:"directory,omitempty" yaml:"directory,omitempty"`
	Settings  Settings           `json:"settings,omitempty" yaml:"settings,omitempty"`
}

type Profile struct {
	Name string `json:"-" yaml:"-"`

	SenderAddress           string  `json:"sender_address,omitempty" yaml:"sender_address,omitempty"`
	SenderName              string  `json:"sender_name,omitempty" yaml:"sender_name,omitempty"`
	SenderCredential        string  `json:"sender_credential,omitempty" yaml:"sender_credential,omitempty"`
	SenderCredentialEnv     string  `json:"sender_credential_env,omitempty" yaml:"sender_credential_env,omitempty"`
	SenderCredentialFile    string  `json:"sender_credential_file,omitempty" yaml:"sender_credential_file,omitempty"`
	SenderCredentialKeyring bool    `json:"sender_credential_keyring,omitempty" yaml:"sender_credential_keyring,omitempty"`
	Details                 Details `json:"user_details" yaml:"user_details"`

	// Gmail-specific keys accepted from older config files.
	GmailUser        string `json:"gmail_user,omitempty" yaml:"gmail_user,omitempty"`
	GmailAppPassword string `json:"gmail_app_password,omitempty" yaml:"gmail_app_password,omitempty"`
}

// Details identify the person the requests are made for.
type Details struct {
	FullName string `json:"full_name" yaml:"full_name"`
	Address  string `json:"address" yaml:"address"`
	Email    string `json:"email" yaml:"email"`
	Phone    string `json:"phone" yaml:"phone"`
}

type Relay struct {
	Host               string `json:"host,omitempty" yaml:"host,omitempty"`
	Port               int    `json:"port,omitempty" yaml:"port,omitempty"`
	SSL                bool   `json:"ssl,omitempty" yaml:"ssl,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	LocalName          string `json:"local_name,omitempty" yaml:"local_name,omitempty"`
}

type Directory struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

type Settings struct {
	SendDelay       string `json:"send_delay,omitempty" yaml:"send_delay,omitempty"`
	HistoryPath     string `json:"history_path,omitempty" yaml:"history_path,omitempty"`
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`
	OutputFormat    string `json:"output_format,omitempty" yaml:"output_format,omitempty"`
}

func DefaultConfig() Config {
	cfg := Config{Profiles: map[string]Profile{}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Relay.Host == "" {
		c.Relay.Host = DefaultRelayHost
	}
	if c.Relay.Port == 0 {
		c.Relay.Port = DefaultRelayPort
	}
	if c.Directory.Path == "" {
		c.Directory.Path = DefaultDirectoryPath
	}
	if c.Directory.URL == "" {
		c.Directory.URL = DefaultDirectoryURL
	}
	if c.Settings.SendDelay == "" {
		c.Settings.SendDelay = DefaultSendDelay
	}
	if c.Settings.HistoryPath == "" {
		c.Settings.HistoryPath = DefaultHistoryPath
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = "table"
	}
}

// Load reads a JSON or YAML config file, chosen by extension.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: config path is required", ErrConfig)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &cfg)
	default:
		err = json.Unmarshal(content, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrConfig, path, err)
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("%w: %s defines no profiles", ErrConfig, path)
	}
	for name, p := range cfg.Profiles {
		p.Name = name
		cfg.Profiles[name] = p
	}
	cfg.applyDefaults()
	if _, err := cfg.SendDelay(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as indented JSON, or YAML for .yaml/.yml paths.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var (
		content []byte
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		content, err = yaml.Marshal(cfg)
	default:
		content, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	return os.WriteFile(path, content, 0o600)
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) Profile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: profile %q not found (available: %s)", ErrConfig, name, strings.Join(c.ProfileNames(), ", "))
	}
	p.Name = name
	return &p, nil
}

// SendDelay is the pause between consecutive sends.
func (c *Config) SendDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.Settings.SendDelay)
	if err != nil {
		return 0, fmt.Errorf("%w: settings.send_delay: %w", ErrConfig, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: settings.send_delay must not be negative", ErrConfig)
	}
	return d, nil
}

// Sender is the envelope and login address.
func (p *Profile) Sender() string {
	if p.SenderAddress != "" {
		return p.SenderAddress
	}
	return p.GmailUser
}

// Validate checks every field the opt-out letter and the relay login need.
func (p *Profile) Validate() error {
	sender := strings.TrimSpace(p.Sender())
	if sender == "" {
		return fmt.Errorf("%w: profile %s: sender_address is required", ErrConfig, p.Name)
	}
	if !strings.Contains(sender, "@") {
		return fmt.Errorf("%w: profile %s: sender_address %q is not an email address", ErrConfig, p.Name, sender)
	}
	required := []struct {
		key, value string
	}{
		{"full_name", p.Details.FullName},
		{"address", p.Details.Address},
		{"email", p.Details.Email},
		{"phone", p.Details.Phone},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, "user_details."+r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: profile %s: missing %s", ErrConfig, p.Name, strings.Join(missing, ", "))
	}
	return nil
}
