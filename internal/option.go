package internal

import (
	"io"

	"github.com/starford/flashdesk/internal/hostapi"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	host      hostapi.Host
	logOutput io.Writer
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithHost replaces the host API client built from the config.
func WithHost(h hostapi.Host) Option {
	return func(a *application) {
		a.host = h
	}
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
