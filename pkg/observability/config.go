// Package observability wires slog, OpenTelemetry traces and metrics, and
// the health endpoints shared by the perfsummary CLI, MCP and HTTP modes.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// AppMode is how the binary was launched. It is stamped on every log
// record and on the OTel resource.
type AppMode string

// Modes.
const (
	ModeCLI   AppMode = "cli"
	ModeMCP   AppMode = "mcp"
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName     = "perfsummary"
	defaultShutdownTimeout = 5 * time.Second
)

// Config is built by pkg/config from the logging and telemetry sections.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is a gRPC collector address. Empty installs no-op
	// providers and nothing is exported.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool
	// SampleRatio of zero keeps every root span.
	SampleRatio float64

	LogLevel slog.Level
	LogJSON  bool
	// LogWriter defaults to os.Stderr so stdout stays free for reports and
	// the MCP stdio transport.
	LogWriter io.Writer

	// ShutdownTimeout bounds the final flush. Zero means five seconds.
	ShutdownTimeout time.Duration
}

// DefaultConfig is what the CLI runs with before a config file is read.
func DefaultConfig() Config {
	return Config{
		ServiceName:     defaultServiceName,
		Mode:            ModeCLI,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}
