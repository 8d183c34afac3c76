package config

import (
	"time"

	"github.com/nkkko/textai/internal/api"
	chiapi "github.com/nkkko/textai/internal/api/chi"
	"github.com/nkkko/textai/internal/bridge"
	"github.com/nkkko/textai/internal/content"
	"github.com/nkkko/textai/internal/host"
	"github.com/nkkko/textai/internal/logging"
	"github.com/nkkko/textai/internal/processor"
	"github.com/nkkko/textai/internal/router"
	"github.com/nkkko/textai/internal/telemetry"
)

// ToBridgeConfig converts to bridge endpoint config
func (c *Config) ToBridgeConfig() bridge.Config {
	return bridge.Config{
		Workers:        c.Bridge.Workers,
		RequestTimeout: time.Duration(c.Bridge.RequestTimeoutMs) * time.Millisecond,
		InboundBuffer:  c.Bridge.InboundBuffer,
	}
}

// DialTimeout returns how long the content process waits for the host
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Bridge.DialTimeout) * time.Second
}

// ToRouterConfig converts to router config
func (c *Config) ToRouterConfig() router.Config {
	return router.Config{
		MaxBufferSize: c.Router.MaxBufferSize,
	}
}

// ToHostConfig converts to host dispatcher config
func (c *Config) ToHostConfig() host.Config {
	mode, err := c.fileMode()
	if err != nil {
		mode = host.DefaultConfig().FileMode
	}
	return host.Config{
		DefaultSaveName: c.Host.DefaultSaveName,
		RecentSize:      c.Host.RecentSize,
		FileMode:        mode,
	}
}

// ToContentConfig converts to content adapter config
func (c *Config) ToContentConfig() content.Config {
	return content.Config{
		DownloadDir: c.Content.DownloadDir,
	}
}

// ToProcessorConfig converts to stub processor config
func (c *Config) ToProcessorConfig() processor.Config {
	return processor.Config{
		Delay:       time.Duration(c.Processor.DelayMs) * time.Millisecond,
		Jitter:      time.Duration(c.Processor.JitterMs) * time.Millisecond,
		FailureRate: c.Processor.FailureRate,
		Seed:        c.Processor.Seed,
	}
}

// ToAPIConfig converts to the fiber API config
func (c *Config) ToAPIConfig() api.Config {
	return api.Config{
		Addr:            c.Server.Addr,
		ReadTimeout:     time.Duration(c.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(c.Server.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(c.Server.IdleTimeout) * time.Second,
		CORSOrigins:     c.Server.CORSOrigins,
		MetricsEnabled:  c.Metrics.Enabled,
		MetricsEndpoint: c.Metrics.Endpoint,
	}
}

// ToChiAPIConfig converts to the chi API config
func (c *Config) ToChiAPIConfig() chiapi.Config {
	return chiapi.Config{
		Addr:            c.Server.Addr,
		ReadTimeout:     time.Duration(c.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(c.Server.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(c.Server.IdleTimeout) * time.Second,
		CORSOrigins:     c.Server.CORSOrigins,
		MetricsEnabled:  c.Metrics.Enabled,
		MetricsEndpoint: c.Metrics.Endpoint,
	}
}

// ToLoggingConfig converts to logging config for the named process
func (c *Config) ToLoggingConfig(process string) logging.Config {
	var level logging.LogLevel
	switch c.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "info":
		level = logging.LevelInfo
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	default:
		level = logging.LevelInfo
	}

	var format logging.LogFormat
	switch c.Logging.Format {
	case "json":
		format = logging.FormatJSON
	default:
		format = logging.FormatConsole
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.IncludeCaller = c.Logging.IncludeCaller
	cfg.IncludeStacktrace = c.Logging.IncludeStack
	cfg.Process = process
	if c.Logging.GlobalFields != nil {
		cfg.GlobalFields = c.Logging.GlobalFields
	}
	return cfg
}

// ToTelemetryConfig converts to telemetry config. The process name is
// appended to the service name so host and content spans stay apart.
func (c *Config) ToTelemetryConfig(process string) telemetry.Config {
	name := c.Telemetry.ServiceName
	if process != "" {
		name = name + "-" + process
	}
	return telemetry.Config{
		Enabled:       c.Telemetry.Enabled,
		ServiceName:   name,
		Endpoint:      c.Telemetry.Endpoint,
		SamplingRatio: c.Telemetry.SamplingRatio,
		Timeout:       5 * time.Second,
		Attributes:    c.Telemetry.Attributes,
	}
}
