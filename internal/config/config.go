package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
)

// Config represents the complete vaultsyncd configuration
type Config struct {
	Repo  RepoConfig  `yaml:"repo"`
	Vault VaultConfig `yaml:"vault"`
	Sync  SyncConfig  `yaml:"sync"`
	Auth  AuthConfig  `yaml:"auth"`
	Watch WatchConfig `yaml:"watch"`
	Serve ServeConfig `yaml:"serve"`
}

// RepoConfig identifies the GitHub repository and branch to sync against
type RepoConfig struct {
	Owner     string `yaml:"owner"`
	Name      string `yaml:"name"`
	Branch    string `yaml:"branch"`
	Subfolder string `yaml:"subfolder"`
}

// VaultConfig configures local filesystem paths
type VaultConfig struct {
	Dir      string `yaml:"dir"`
	StateDir string `yaml:"state_dir"`
}

// SyncConfig configures sync behavior
type SyncConfig struct {
	Direction     string   `yaml:"direction"`
	Ignore        []string `yaml:"ignore"`
	SyncConfigDir bool     `yaml:"sync_obsidian_config"`
	CommitMessage string   `yaml:"commit_message"`
	PullWorkers   int      `yaml:"pull_workers"`
	PushRetries   int      `yaml:"push_retries"`
}

// AuthConfig configures GitHub API authentication. When TokenFile is empty
// the GITHUB_TOKEN environment variable is used instead.
type AuthConfig struct {
	TokenFile string `yaml:"token_file"`
}

// WatchConfig configures the filesystem watch mode
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Interval time.Duration `yaml:"interval"`
}

// ServeConfig configures the webhook server
type ServeConfig struct {
	Enabled                 bool          `yaml:"enabled"`
	ListenAddr              string        `yaml:"listen_addr"`
	GitHubWebhookSecretFile string        `yaml:"github_webhook_secret_file"`
	AllowedEventTypes       []string      `yaml:"allowed_event_types"`
	AllowedRefs             []string      `yaml:"allowed_refs"`
	Debounce                time.Duration `yaml:"debounce"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Repo.Owner = os.ExpandEnv(c.Repo.Owner)
	c.Repo.Name = os.ExpandEnv(c.Repo.Name)
	c.Repo.Branch = os.ExpandEnv(c.Repo.Branch)
	c.Repo.Subfolder = os.ExpandEnv(c.Repo.Subfolder)
	c.Vault.Dir = os.ExpandEnv(c.Vault.Dir)
	c.Vault.StateDir = os.ExpandEnv(c.Vault.StateDir)
	c.Auth.TokenFile = os.ExpandEnv(c.Auth.TokenFile)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.GitHubWebhookSecretFile = os.ExpandEnv(c.Serve.GitHubWebhookSecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Repo.Branch == "" {
		c.Repo.Branch = "main"
	}
	if c.Vault.StateDir == "" && c.Vault.Dir != "" {
		c.Vault.StateDir = filepath.Join(c.Vault.Dir, pathutil.StateDirName)
	}
	if c.Sync.Direction == "" {
		c.Sync.Direction = "sync"
	}
	if c.Sync.CommitMessage == "" {
		c.Sync.CommitMessage = "vault sync: {{files}} files ({{date}})"
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 2 * time.Second
	}
	if c.Serve.Debounce == 0 {
		c.Serve.Debounce = 5 * time.Second
	}
	if len(c.Serve.AllowedEventTypes) == 0 {
		c.Serve.AllowedEventTypes = []string{"push"}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Repo.Owner == "" {
		return fmt.Errorf("repo.owner is required")
	}
	if c.Repo.Name == "" {
		return fmt.Errorf("repo.name is required")
	}

	if c.Vault.Dir == "" {
		return fmt.Errorf("vault.dir is required")
	}
	if !filepath.IsAbs(c.Vault.Dir) {
		return fmt.Errorf("vault.dir must be an absolute path: %s", c.Vault.Dir)
	}
	if !filepath.IsAbs(c.Vault.StateDir) {
		return fmt.Errorf("vault.state_dir must be an absolute path: %s", c.Vault.StateDir)
	}

	switch c.Sync.Direction {
	case "pull", "push", "sync":
		// valid
	default:
		return fmt.Errorf("invalid sync.direction: %s (must be pull, push, or sync)", c.Sync.Direction)
	}

	if c.Sync.PullWorkers < 0 {
		return fmt.Errorf("sync.pull_workers must not be negative")
	}
	if c.Sync.PushRetries < 0 {
		return fmt.Errorf("sync.push_retries must not be negative")
	}

	if c.Serve.Enabled {
		if c.Serve.ListenAddr == "" {
			return fmt.Errorf("serve.listen_addr is required when serve is enabled")
		}
		if c.Serve.GitHubWebhookSecretFile == "" {
			return fmt.Errorf("serve.github_webhook_secret_file is required when serve is enabled")
		}
	}

	return nil
}

// BaselinePath returns the path to the persisted baseline file
func (c *Config) BaselinePath() string {
	return filepath.Join(c.Vault.StateDir, "baseline.json")
}

// LockPath returns the path to the sync lock file
func (c *Config) LockPath() string {
	return filepath.Join(c.Vault.StateDir, "sync.lock")
}

// Token resolves the GitHub API token: the configured token file first,
// falling back to the GITHUB_TOKEN environment variable.
func (c *Config) Token() (string, error) {
	if c.Auth.TokenFile != "" {
		data, err := os.ReadFile(c.Auth.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("token file %s is empty", c.Auth.TokenFile)
		}
		return token, nil
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no GitHub token: set auth.token_file or GITHUB_TOKEN")
}

// WebhookSecret reads the webhook secret file for serve mode.
func (c *Config) WebhookSecret() (string, error) {
	data, err := os.ReadFile(c.Serve.GitHubWebhookSecretFile)
	if err != nil {
		return "", fmt.Errorf("failed to read webhook secret file: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("webhook secret file %s is empty", c.Serve.GitHubWebhookSecretFile)
	}
	return secret, nil
}
