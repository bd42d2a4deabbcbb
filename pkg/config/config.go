// Package config handles loading and validation of user configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/security"
	"gopkg.in/yaml.v3"
)

// Supported platform names.
const (
	PlatformBitbucket = "bitbucket"
	PlatformGitHub    = "github"
	PlatformGitLab    = "gitlab"
)

var (
	errConfigNotFound     = errors.New("config file not found")
	errUnknownPlatform    = errors.New("unknown platform")
	errHostRuleNoToken    = errors.New("host rule has no token")
	errHostRuleNoPlatform = errors.New("host rule has no platform")
	errAuthorIncomplete   = errors.New("git_author needs both name and email")
	errSSHKeyNotFound     = errors.New("ssh key not found")
)

// Exported errors for callers that need to branch on configuration failures.
var (
	ErrConfigNotFound  = errConfigNotFound
	ErrUnknownPlatform = errUnknownPlatform
)

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Config is the scm-adapter configuration file.
type Config struct {
	Platform              string     `yaml:"platform"`
	Endpoint              string     `yaml:"endpoint"`
	WorkDir               string     `yaml:"work_dir"`
	LogLevel              string     `yaml:"log_level"`
	SSHKey                string     `yaml:"ssh_key"`
	InsecureIgnoreHostKey bool       `yaml:"insecure_ignore_host_key"`
	GitAuthor             GitAuthor  `yaml:"git_author"`
	HostRules             []HostRule `yaml:"host_rules"`
}

// GitAuthor is the identity used for commits created by the adapter.
type GitAuthor struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// HostRule maps a platform and endpoint to a token.
type HostRule struct {
	Platform string `yaml:"platform"`
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Platform: PlatformBitbucket,
		LogLevel: "info",
		WorkDir:  filepath.Join(os.TempDir(), "scm-adapter"),
		GitAuthor: GitAuthor{
			Name:  "scm-adapter",
			Email: "scm-adapter@localhost",
		},
	}
}

// DefaultPath returns ~/.config/scm-adapter/config.yml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "scm-adapter", "config.yml"), nil
}

// Load reads the configuration at path, or at [DefaultPath] when path is
// empty. A .env file next to the config and one in the working directory
// are loaded first so ${VAR} references can resolve to them. Variables
// already present in the environment are not overridden.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	// #nosec G304 - Reading the user's own config file is intentional
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errConfigNotFound, path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands ${VAR} references in data, decodes it on top of
// [DefaultConfig] and validates the result.
func Parse(data []byte) (*Config, error) {
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) normalize() {
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	c.Endpoint = strings.TrimSuffix(strings.TrimSpace(c.Endpoint), "/")
	c.GitAuthor.Name = strings.TrimSpace(c.GitAuthor.Name)
	c.GitAuthor.Email = strings.TrimSpace(c.GitAuthor.Email)
	for i := range c.HostRules {
		c.HostRules[i].Platform = strings.ToLower(strings.TrimSpace(c.HostRules[i].Platform))
		c.HostRules[i].Token = strings.TrimSpace(c.HostRules[i].Token)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !IsKnownPlatform(c.Platform) {
		return fmt.Errorf("%w: %q", errUnknownPlatform, c.Platform)
	}

	if (c.GitAuthor.Name == "") != (c.GitAuthor.Email == "") {
		return errAuthorIncomplete
	}

	for i, r := range c.HostRules {
		if r.Platform == "" {
			return fmt.Errorf("host_rules[%d]: %w", i, errHostRuleNoPlatform)
		}
		if !IsKnownPlatform(r.Platform) {
			return fmt.Errorf("host_rules[%d]: %w: %q", i, errUnknownPlatform, r.Platform)
		}
		if r.Token == "" {
			return fmt.Errorf("host_rules[%d]: %w", i, errHostRuleNoToken)
		}
	}

	if c.SSHKey != "" {
		if _, err := os.Stat(c.SSHKey); err != nil {
			return fmt.Errorf("%w: %s", errSSHKeyNotFound, security.MaskSSHKeyPath(c.SSHKey))
		}
	}
	return nil
}

// HostRuleStore builds a credential store from the configured host rules.
func (c *Config) HostRuleStore() *hostrules.Store {
	store := hostrules.New()
	for _, r := range c.HostRules {
		_ = store.Add(hostrules.Rule{
			Platform: r.Platform,
			Endpoint: r.Endpoint,
			Username: r.Username,
			Token:    security.NewSecureToken(r.Token),
		})
	}
	return store
}

// IsKnownPlatform reports whether name is a supported platform.
func IsKnownPlatform(name string) bool {
	switch name {
	case PlatformBitbucket, PlatformGitHub, PlatformGitLab:
		return true
	}
	return false
}
