package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Router    RouterConfig    `yaml:"router"`
	Host      HostConfig      `yaml:"host"`
	Content   ContentConfig   `yaml:"content"`
	Processor ProcessorConfig `yaml:"processor"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains the host control surface settings
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	Framework    string   `yaml:"framework"` // chi or fiber
	ReadTimeout  int      `yaml:"read_timeout"`
	WriteTimeout int      `yaml:"write_timeout"`
	IdleTimeout  int      `yaml:"idle_timeout"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

// BridgeConfig contains settings for the host/content link
type BridgeConfig struct {
	HostURL          string `yaml:"host_url"`
	Workers          int    `yaml:"workers"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	InboundBuffer    int    `yaml:"inbound_buffer"`
	DialTimeout      int    `yaml:"dial_timeout"`
}

// RouterConfig contains content-side event router settings
type RouterConfig struct {
	MaxBufferSize int `yaml:"max_buffer_size"`
}

// HostConfig contains host process settings
type HostConfig struct {
	DefaultSaveName string `yaml:"default_save_name"`
	RecentSize      int    `yaml:"recent_size"`
	FileMode        string `yaml:"file_mode"`
}

// ContentConfig contains content process settings
type ContentConfig struct {
	DownloadDir string `yaml:"download_dir"`
}

// ProcessorConfig contains settings for the stub text processor
type ProcessorConfig struct {
	DelayMs     int     `yaml:"delay_ms"`
	JitterMs    int     `yaml:"jitter_ms"`
	FailureRate float64 `yaml:"failure_rate"`
	Seed        int64   `yaml:"seed"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level         string            `yaml:"level"`
	Format        string            `yaml:"format"`
	IncludeCaller bool              `yaml:"include_caller"`
	IncludeStack  bool              `yaml:"include_stacktrace"`
	GlobalFields  map[string]string `yaml:"global_fields"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	Enabled       bool              `yaml:"enabled"`
	ServiceName   string            `yaml:"service_name"`
	Endpoint      string            `yaml:"endpoint"`
	SamplingRatio float64           `yaml:"sampling_ratio"`
	Attributes    map[string]string `yaml:"attributes"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8787",
			Framework:    "chi",
			ReadTimeout:  5,
			WriteTimeout: 10,
			IdleTimeout:  120,
			CORSOrigins:  []string{"http://localhost", "http://127.0.0.1"},
		},
		Bridge: BridgeConfig{
			HostURL:          "http://127.0.0.1:8787",
			Workers:          1,
			RequestTimeoutMs: 0,
			InboundBuffer:    64,
			DialTimeout:      5,
		},
		Router: RouterConfig{
			MaxBufferSize: 100,
		},
		Host: HostConfig{
			DefaultSaveName: "document.txt",
			RecentSize:      10,
			FileMode:        "0644",
		},
		Content: ContentConfig{
			DownloadDir: "",
		},
		Processor: ProcessorConfig{
			DelayMs:     2000,
			JitterMs:    2000,
			FailureRate: 0,
			Seed:        0,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "console",
			IncludeCaller: false,
			IncludeStack:  true,
			GlobalFields:  map[string]string{},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			ServiceName:   "textai",
			Endpoint:      "localhost:4317",
			SamplingRatio: 1.0,
			Attributes:    map[string]string{},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// LoadConfigFromFile loads configuration from a YAML file
func LoadConfigFromFile(filePath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", filePath).Msg("Configuration file not found, using defaults")
			return config, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Flags win over environment variables, which win over the file.
func LoadConfig(configFile string, serverAddr string, logLevel string) (*Config, error) {
	var config *Config
	var err error

	if configFile != "" {
		config, err = LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		config = DefaultConfig()
	}

	applyEnvOverrides(config)

	if serverAddr != "" {
		config.Server.Addr = serverAddr
	}

	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	if config.Content.DownloadDir != "" {
		dir, err := expandPath(config.Content.DownloadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve download directory: %w", err)
		}
		config.Content.DownloadDir = dir
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would otherwise fail late, at startup
func (c *Config) Validate() error {
	switch c.Server.Framework {
	case "chi", "fiber":
	default:
		return fmt.Errorf("unknown server framework %q (want chi or fiber)", c.Server.Framework)
	}
	if c.Processor.FailureRate < 0 || c.Processor.FailureRate > 1 {
		return fmt.Errorf("processor failure_rate %v out of range [0, 1]", c.Processor.FailureRate)
	}
	if _, err := c.fileMode(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(config *Config) {
	// Server config overrides
	if addr := os.Getenv("TEXTAI_SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if framework := os.Getenv("TEXTAI_SERVER_FRAMEWORK"); framework != "" {
		config.Server.Framework = framework
	}

	// Bridge config overrides
	if url := os.Getenv("TEXTAI_HOST_URL"); url != "" {
		config.Bridge.HostURL = url
	}
	if timeoutStr := os.Getenv("TEXTAI_BRIDGE_REQUEST_TIMEOUT_MS"); timeoutStr != "" {
		if val, err := strconv.Atoi(timeoutStr); err == nil {
			config.Bridge.RequestTimeoutMs = val
		}
	}

	// Content config overrides
	if dir := os.Getenv("TEXTAI_CONTENT_DOWNLOAD_DIR"); dir != "" {
		config.Content.DownloadDir = dir
	}

	// Processor config overrides
	if delayStr := os.Getenv("TEXTAI_PROCESSOR_DELAY_MS"); delayStr != "" {
		if val, err := strconv.Atoi(delayStr); err == nil {
			config.Processor.DelayMs = val
		}
	}
	if jitterStr := os.Getenv("TEXTAI_PROCESSOR_JITTER_MS"); jitterStr != "" {
		if val, err := strconv.Atoi(jitterStr); err == nil {
			config.Processor.JitterMs = val
		}
	}
	if rateStr := os.Getenv("TEXTAI_PROCESSOR_FAILURE_RATE"); rateStr != "" {
		if val, err := strconv.ParseFloat(rateStr, 64); err == nil {
			config.Processor.FailureRate = val
		}
	}

	// Logging config overrides
	if level := os.Getenv("TEXTAI_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("TEXTAI_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Telemetry config overrides
	if endpoint := os.Getenv("TEXTAI_TELEMETRY_ENDPOINT"); endpoint != "" {
		config.Telemetry.Endpoint = endpoint
		config.Telemetry.Enabled = true
	}
}

// expandPath resolves a leading ~ and makes the path absolute
func expandPath(path string) (string, error) {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func (c *Config) fileMode() (os.FileMode, error) {
	if c.Host.FileMode == "" {
		return 0o644, nil
	}
	mode, err := strconv.ParseUint(c.Host.FileMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid host file_mode %q: %w", c.Host.FileMode, err)
	}
	return os.FileMode(mode), nil
}
