package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for YAML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	Engine EngineConfig      `yaml:"engine"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RootConfig is a single vault directory. Lazy roots are not scanned or
// watched; their files enter the graph only when a link resolves to them.
type RootConfig struct {
	Path string `yaml:"path"`
	Lazy bool   `yaml:"lazy"`
}

// Validate validates a vault root.
func (c *RootConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// VaultConfig holds the Markdown vault directories and scan limits.
type VaultConfig struct {
	Roots    []RootConfig `yaml:"roots"`
	MaxFiles int          `yaml:"max_files"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if len(c.Roots) == 0 {
		return fmt.Errorf("vault: at least one root is required")
	}
	eager := 0
	for i := range c.Roots {
		if err := c.Roots[i].Validate(); err != nil {
			return fmt.Errorf("vault: root %d: %w", i, err)
		}
		if !c.Roots[i].Lazy {
			eager++
		}
	}
	if eager == 0 {
		return fmt.Errorf("vault: at least one non-lazy root is required")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxFiles, validation.Min(0)),
	)
}

// EagerPaths returns the roots that are scanned on startup and watched.
func (c *VaultConfig) EagerPaths() []string {
	var out []string
	for _, r := range c.Roots {
		if !r.Lazy {
			out = append(out, r.Path)
		}
	}
	return out
}

// LazyPaths returns the roots searched only during link resolution.
func (c *VaultConfig) LazyPaths() []string {
	var out []string
	for _, r := range c.Roots {
		if r.Lazy {
			out = append(out, r.Path)
		}
	}
	return out
}

// AllPaths returns every configured root path.
func (c *VaultConfig) AllPaths() []string {
	out := make([]string, 0, len(c.Roots))
	for _, r := range c.Roots {
		out = append(out, r.Path)
	}
	return out
}

// EngineConfig holds synchronization engine tuning.
//
// EchoWindow bounds how long a recorded own-write can suppress a matching
// watcher event. ResolveRetry, when positive, re-runs the lazy-root resolve
// pass on that interval so link targets created later are still picked up.
type EngineConfig struct {
	EchoWindow   Duration `yaml:"echo_window"`
	ResolveRetry Duration `yaml:"resolve_retry"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.EchoWindow < 0 {
		return fmt.Errorf("engine: echo_window must not be negative")
	}
	if c.ResolveRetry < 0 {
		return fmt.Errorf("engine: resolve_retry must not be negative")
	}
	return nil
}

// SQLiteConfig holds SQLite archive configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Roots:    []RootConfig{{Path: "./vault"}},
			MaxFiles: 10000,
		},
		Engine: EngineConfig{
			EchoWindow: Duration(2 * time.Second),
		},
		SQLite: SQLiteConfig{
			Path: "./laguz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
