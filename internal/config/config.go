// Package config loads vaultctl's configuration: default vault path,
// default security policy, audit log path and log level, via a YAML file
// read through github.com/spf13/viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/tjdeveng/keeptower/internal/policy"
)

// Config is the root configuration object.
type Config struct {
	VaultPath string `mapstructure:"vault_path"`
	AuditPath string `mapstructure:"audit_path"`
	LogLevel  string `mapstructure:"log_level"`

	Policy PolicyConfig `mapstructure:"policy"`
}

// PolicyConfig mirrors policy.SecurityPolicy's configurable fields for YAML
// round-tripping; Validate converts it via ToSecurityPolicy.
type PolicyConfig struct {
	MinPasswordLength uint32 `mapstructure:"min_password_length"`
	KDFIterations     uint32 `mapstructure:"kdf_iterations"`
	RequireToken      bool   `mapstructure:"require_token"`
}

// ValidationResult reports configuration problems without aborting the load.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Defaults returns the configuration used when no file is present or a
// loaded file fails validation.
func Defaults() *Config {
	pol := policy.NewDefault()
	return &Config{
		VaultPath: defaultVaultPath(),
		AuditPath: "",
		LogLevel:  "info",
		Policy: PolicyConfig{
			MinPasswordLength: pol.MinPasswordLength,
			KDFIterations:     pol.KDFIterations,
			RequireToken:      pol.RequireToken,
		},
	}
}

func defaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vault.kt"
	}
	return filepath.Join(home, ".keeptower", "vault.kt")
}

// Path returns the OS-appropriate config file path, honoring the
// KEEPTOWER_CONFIG override used in tests.
func Path() (string, error) {
	if p := os.Getenv("KEEPTOWER_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("cannot determine config directory: %w", err)
		}
		dir = filepath.Join(home, ".keeptower")
	} else {
		dir = filepath.Join(dir, "keeptower")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return filepath.Join(dir, "config.yml"), nil
}

// Load reads configuration from the default path.
func Load() (*Config, *ValidationResult) {
	path, err := Path()
	if err != nil {
		return Defaults(), &ValidationResult{Valid: true, Warnings: []string{
			fmt.Sprintf("cannot determine config path: %v", err),
		}}
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, *ValidationResult) {
	defaults := Defaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaults, &ValidationResult{Valid: true}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("vault_path", defaults.VaultPath)
	v.SetDefault("audit_path", defaults.AuditPath)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("policy.min_password_length", defaults.Policy.MinPasswordLength)
	v.SetDefault("policy.kdf_iterations", defaults.Policy.KDFIterations)
	v.SetDefault("policy.require_token", defaults.Policy.RequireToken)

	if err := v.ReadInConfig(); err != nil {
		return defaults, &ValidationResult{Valid: false, Errors: []string{
			fmt.Sprintf("failed to parse config: %v", err),
		}}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return defaults, &ValidationResult{Valid: false, Errors: []string{
			fmt.Sprintf("failed to unmarshal config: %v", err),
		}}
	}

	result := cfg.Validate()
	if !result.Valid {
		return defaults, result
	}
	return &cfg, result
}

// Validate checks field ranges; it does not mutate c.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	if c.Policy.MinPasswordLength > 0 && c.Policy.MinPasswordLength < policy.DefaultMinPasswordLength {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"policy.min_password_length %d is below the recommended minimum of %d",
			c.Policy.MinPasswordLength, policy.DefaultMinPasswordLength))
	}
	if c.Policy.KDFIterations > 0 && c.Policy.KDFIterations < policy.MinIterationsFloor {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"policy.kdf_iterations must be >= %d (got %d)",
			policy.MinIterationsFloor, c.Policy.KDFIterations))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized log_level %q, using info", c.LogLevel))
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}
	return result
}

// ToSecurityPolicy converts the loaded policy config into a
// policy.SecurityPolicy, filling in package defaults for zero fields.
func (c *Config) ToSecurityPolicy() policy.SecurityPolicy {
	pol := policy.NewDefault()
	if c.Policy.MinPasswordLength > 0 {
		pol.MinPasswordLength = c.Policy.MinPasswordLength
	}
	if c.Policy.KDFIterations > 0 {
		pol.KDFIterations = c.Policy.KDFIterations
	}
	pol.RequireToken = c.Policy.RequireToken
	return pol
}
