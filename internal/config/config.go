// Package config defines environment-specific settings for the printbridge service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Build variables, injected at compile time
var (
	BuildEnvironment = "local"
	BuildDate        = "unknown"
	BuildTime        = "unknown"
	// ServiceName is used for logging and as part of the log file path.
	ServiceName = "PrintBridge"
	// TokenHashB64 is a base64-encoded bcrypt hash of the client token.
	// If empty, print and job-control messages are accepted without a token.
	TokenHashB64 = ""
	// ServerPort is the default port for the service, can be overridden by environment config.
	ServerPort = "8766"
	// AllowedOrigins is a comma-separated list of allowed origins injected via ldflags.
	// Example: "https://pos.example.com,http://localhost:*"
	AllowedOrigins = ""
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "PRINTBRIDGE"

// ConfigFileEnv names the variable holding an optional config file path.
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// CUPS holds the scheduler connection used on non-Windows builds.
type CUPS struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool
}

// Environment holds environment-specific settings
type Environment struct {
	// Identity
	Name        string
	ServiceName string

	// Network
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxMessageBytes bounds a single WebSocket message.
	MaxMessageBytes int64

	// Worker pool
	Workers       int
	QueueCapacity int

	// Logging
	Verbose   bool
	LogFormat string // "console" or "json"
	LogDir    string // empty means the platform default

	// Printing
	TempDir string
	CUPS    CUPS

	// Security
	AllowedOrigins []string
	JobsPerMinute  int
}

// LogPath returns the full log file path for this environment.
// Uses the convention: <baseDir>/<ServiceName>/<ServiceName>.log
func (e Environment) LogPath(baseDir string) string {
	if e.LogDir != "" {
		baseDir = e.LogDir
	}
	return filepath.Join(baseDir, e.ServiceName, e.ServiceName+".log")
}

// environments defines available deployment configurations
var environments = map[string]Environment{
	"remote": {
		Name:            "REMOTE",
		ServiceName:     ServiceName,
		ListenAddr:      "0.0.0.0:" + ServerPort,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxMessageBytes: 32 << 20,
		Workers:         4,
		QueueCapacity:   50,
		Verbose:         false,
		LogFormat:       "json",
		CUPS:            CUPS{Host: "localhost", Port: 631},
		// Restrict to localhost and file (Electron) by default
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*", "file://*"},
		JobsPerMinute:  30,
	},
	"local": {
		Name:            "LOCAL",
		ServiceName:     ServiceName,
		ListenAddr:      "localhost:" + ServerPort,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxMessageBytes: 32 << 20,
		Workers:         2,
		QueueCapacity:   50,
		Verbose:         true,
		LogFormat:       "console",
		CUPS:            CUPS{Host: "localhost", Port: 631},
		// Allow all in local dev mode, overridable
		AllowedOrigins: []string{"*"},
		JobsPerMinute:  120,
	},
}

// GetEnvironment returns config for the specified environment.
func GetEnvironment(env string) Environment {
	cfg, ok := environments[env]
	if !ok {
		cfg = environments["local"]
	}

	// Override allowed origins from ldflags if provided
	if AllowedOrigins != "" {
		cfg.AllowedOrigins = splitList(AllowedOrigins)
	}

	return cfg
}

// Load resolves the environment named env and overlays, from lowest to
// highest priority, the file named by PRINTBRIDGE_CONFIG and PRINTBRIDGE_*
// environment variables.
func Load(env string) (Environment, error) {
	base := GetEnvironment(env)

	v := viper.New()
	setDefaults(v, base)

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Environment{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Environment{
		Name:            base.Name,
		ServiceName:     v.GetString("service_name"),
		ListenAddr:      v.GetString("listen_addr"),
		ReadTimeout:     v.GetDuration("http.read_timeout"),
		WriteTimeout:    v.GetDuration("http.write_timeout"),
		IdleTimeout:     v.GetDuration("http.idle_timeout"),
		MaxMessageBytes: v.GetInt64("http.max_message_bytes"),
		Workers:         v.GetInt("workers"),
		QueueCapacity:   v.GetInt("queue_capacity"),
		Verbose:         v.GetBool("log.verbose"),
		LogFormat:       strings.ToLower(v.GetString("log.format")),
		LogDir:          v.GetString("log.dir"),
		TempDir:         v.GetString("temp_dir"),
		CUPS: CUPS{
			Host:     v.GetString("cups.host"),
			Port:     v.GetInt("cups.port"),
			User:     v.GetString("cups.user"),
			Password: v.GetString("cups.password"),
			TLS:      v.GetBool("cups.tls"),
		},
		AllowedOrigins: stringList(v.Get("allowed_origins")),
		JobsPerMinute:  v.GetInt("jobs_per_minute"),
	}

	if err := cfg.Validate(); err != nil {
		return Environment{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, base Environment) {
	v.SetDefault("service_name", base.ServiceName)
	v.SetDefault("listen_addr", base.ListenAddr)
	v.SetDefault("http.read_timeout", base.ReadTimeout)
	v.SetDefault("http.write_timeout", base.WriteTimeout)
	v.SetDefault("http.idle_timeout", base.IdleTimeout)
	v.SetDefault("http.max_message_bytes", base.MaxMessageBytes)
	v.SetDefault("workers", base.Workers)
	v.SetDefault("queue_capacity", base.QueueCapacity)
	v.SetDefault("log.verbose", base.Verbose)
	v.SetDefault("log.format", base.LogFormat)
	v.SetDefault("log.dir", base.LogDir)
	v.SetDefault("temp_dir", base.TempDir)
	v.SetDefault("cups.host", base.CUPS.Host)
	v.SetDefault("cups.port", base.CUPS.Port)
	v.SetDefault("cups.user", base.CUPS.User)
	v.SetDefault("cups.password", base.CUPS.Password)
	v.SetDefault("cups.tls", base.CUPS.TLS)
	v.SetDefault("allowed_origins", base.AllowedOrigins)
	v.SetDefault("jobs_per_minute", base.JobsPerMinute)
}

// Validate rejects settings the service cannot start with.
func (e Environment) Validate() error {
	var errs []error
	if e.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if e.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if e.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", e.Workers))
	}
	if e.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("queue capacity must be positive, got %d", e.QueueCapacity))
	}
	if e.JobsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("jobs per minute must be positive, got %d", e.JobsPerMinute))
	}
	if e.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max message bytes must be positive, got %d", e.MaxMessageBytes))
	}
	if e.LogFormat != "console" && e.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", e.LogFormat))
	}
	if e.CUPS.Port <= 0 || e.CUPS.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid CUPS port %d", e.CUPS.Port))
	}
	return errors.Join(errs...)
}

// stringList accepts a list or a comma-separated string.
func stringList(raw any) []string {
	switch v := raw.(type) {
	case string:
		return splitList(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
