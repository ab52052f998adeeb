package internal

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/viewstate"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Host  HostConfig        `yaml:"host"`
	Cache CacheConfig       `yaml:"cache"`
	Prefs PrefsConfig       `yaml:"prefs"`
	Watch WatchConfig       `yaml:"watch"`
	UI    UIConfig          `yaml:"ui"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Host.Validate(); err != nil {
		return fmt.Errorf("host: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Prefs.Validate(); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	if err := c.UI.Validate(); err != nil {
		return fmt.Errorf("ui: %w", err)
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

// HostConfig points at the desktop application's automation API.
type HostConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Timeout bounds each host request; zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the host configuration.
func (c *HostConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// CacheConfig bounds the request cache.
type CacheConfig struct {
	Size     int           `yaml:"size"`
	FreshFor time.Duration `yaml:"fresh_for"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Size, validation.Required, validation.Min(1)),
		validation.Field(&c.FreshFor, validation.Min(time.Duration(0))),
	)
}

// PrefsConfig holds the preference database location. An empty path keeps
// preferences in memory.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the prefs configuration.
func (c *PrefsConfig) Validate() error {
	return nil
}

// WatchConfig enables the collection watcher when CollectionPath is set.
type WatchConfig struct {
	CollectionPath string `yaml:"collection_path"`
}

// UIConfig holds browse and console defaults.
type UIConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	QueryRowLimit   int `yaml:"query_row_limit"`
}

// Validate validates the UI configuration.
func (c *UIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultPageSize, validation.Required, validation.By(func(any) error {
			if !slices.Contains(viewstate.PageSizes, c.DefaultPageSize) {
				return fmt.Errorf("must be one of %v", viewstate.PageSizes)
			}
			return nil
		})),
		validation.Field(&c.QueryRowLimit, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for a
//     browser on the same machine.
//   - "token": Token must be non-empty and is accepted as a Bearer header,
//     a ?token= parameter or the cookie set from it.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
				Port: 8780,
			},
		},
		Host: HostConfig{
			BaseURL: hostapi.DefaultBaseURL,
		},
		Cache: CacheConfig{
			Size:     256,
			FreshFor: 30 * time.Second,
		},
		Prefs: PrefsConfig{
			Path: "./flashdesk.db",
		},
		UI: UIConfig{
			DefaultPageSize: 25,
			QueryRowLimit:   200,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
