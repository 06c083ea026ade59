package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/fiftyone-dev/appsync/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "appsync.json"

	// EnvFileName is the optional dotenv file loaded before env overrides.
	EnvFileName = ".env"

	// DefaultServerURL is the default session server address.
	DefaultServerURL = "http://localhost:5151"

	// DefaultGraphQLPath is the default query/mutation endpoint path.
	DefaultGraphQLPath = "/graphql"

	// DefaultEventsPath is the default event stream endpoint path.
	DefaultEventsPath = "/events"

	// DefaultPendingInterval coalesces pending notifications to one per frame.
	DefaultPendingInterval = "16ms"

	// DefaultQueryTTL is how long a fetched query response stays in the store.
	DefaultQueryTTL = "5m"

	// DefaultQueryMaxEntries bounds the query response store.
	DefaultQueryMaxEntries = 32

	// DefaultReconnectDelay is the wait between connection attempts.
	DefaultReconnectDelay = "2s"

	// DefaultNamespace is the default metrics namespace and tracer name.
	DefaultNamespace = "appsync"
)

// Config represents the complete appsync.json configuration.
type Config struct {
	// Name is the client name reported to the server.
	Name string `json:"name,omitempty" env:"APPSYNC_NAME"`

	// Server contains the session server endpoints.
	Server ServerConfig `json:"server,omitempty"`

	// Router contains navigation and query store settings.
	Router RouterConfig `json:"router,omitempty"`

	// Session contains event connection settings.
	Session SessionConfig `json:"session,omitempty"`

	// Telemetry contains metrics and tracing settings.
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains the session server endpoints.
type ServerConfig struct {
	// URL is the base URL of the session server.
	URL string `json:"url,omitempty" env:"APPSYNC_SERVER_URL"`

	// GraphQLPath is the path of the query/mutation endpoint.
	GraphQLPath string `json:"graphqlPath,omitempty" env:"APPSYNC_GRAPHQL_PATH"`

	// EventsPath is the path of the event stream endpoint.
	EventsPath string `json:"eventsPath,omitempty" env:"APPSYNC_EVENTS_PATH"`
}

// RouterConfig contains navigation settings.
type RouterConfig struct {
	// PendingInterval is the coalescing window for pending notifications.
	PendingInterval string `json:"pendingInterval,omitempty" env:"APPSYNC_PENDING_INTERVAL"`

	// QueryTTL is how long fetched query responses stay in the store.
	QueryTTL string `json:"queryTTL,omitempty" env:"APPSYNC_QUERY_TTL"`

	// QueryMaxEntries bounds the query response store (LRU).
	QueryMaxEntries int `json:"queryMaxEntries,omitempty" env:"APPSYNC_QUERY_MAX_ENTRIES"`
}

// SessionConfig contains event connection settings.
type SessionConfig struct {
	// ReconnectDelay is the wait between connection attempts (e.g., "2s").
	ReconnectDelay string `json:"reconnectDelay,omitempty" env:"APPSYNC_RECONNECT_DELAY"`
}

// TelemetryConfig contains metrics and tracing settings.
type TelemetryConfig struct {
	// MetricsNamespace prefixes all Prometheus metric names.
	MetricsNamespace string `json:"metricsNamespace,omitempty" env:"APPSYNC_METRICS_NAMESPACE"`

	// TracerName is the OpenTelemetry tracer name.
	TracerName string `json:"tracerName,omitempty" env:"APPSYNC_TRACER_NAME"`

	// MetricsAddr, when set, serves /metrics on this address.
	MetricsAddr string `json:"metricsAddr,omitempty" env:"APPSYNC_METRICS_ADDR"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Name: "appsync",
		Server: ServerConfig{
			URL:         DefaultServerURL,
			GraphQLPath: DefaultGraphQLPath,
			EventsPath:  DefaultEventsPath,
		},
		Router: RouterConfig{
			PendingInterval: DefaultPendingInterval,
			QueryTTL:        DefaultQueryTTL,
			QueryMaxEntries: DefaultQueryMaxEntries,
		},
		Session: SessionConfig{
			ReconnectDelay: DefaultReconnectDelay,
		},
		Telemetry: TelemetryConfig{
			MetricsNamespace: DefaultNamespace,
			TracerName:       DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for appsync.json in the directory and applies env overrides.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigMissing).
				WithSubject(path).
				WithSuggestion("Create appsync.json or run without --config to use defaults")
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse appsync.json: " + err.Error()).
			WithSuggestion("Check that appsync.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.ApplyEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads appsync.json from dir when present and falls back to
// defaults (plus env overrides) otherwise.
func LoadOrDefault(dir string) (*Config, error) {
	if Exists(dir) {
		return Load(dir)
	}
	cfg := New()
	if err := cfg.ApplyEnv(dir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads dir/.env (if present) into the process environment and
// overrides config fields from APPSYNC_* variables.
func (c *Config) ApplyEnv(dir string) error {
	envPath := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return errors.New(errors.CodeConfigParse).WithSubject(envPath).Wrap(err)
		}
	}
	if err := env.Parse(c); err != nil {
		return errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse APPSYNC_* environment variables").
			Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigParse).Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigParse).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.GraphQLPath == "" {
		c.Server.GraphQLPath = DefaultGraphQLPath
	}
	if c.Server.EventsPath == "" {
		c.Server.EventsPath = DefaultEventsPath
	}
	if c.Router.PendingInterval == "" {
		c.Router.PendingInterval = DefaultPendingInterval
	}
	if c.Router.QueryTTL == "" {
		c.Router.QueryTTL = DefaultQueryTTL
	}
	if c.Router.QueryMaxEntries == 0 {
		c.Router.QueryMaxEntries = DefaultQueryMaxEntries
	}
	if c.Session.ReconnectDelay == "" {
		c.Session.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Telemetry.MetricsNamespace == "" {
		c.Telemetry.MetricsNamespace = DefaultNamespace
	}
	if c.Telemetry.TracerName == "" {
		c.Telemetry.TracerName = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.CodeConfigInvalid).
			WithSubject("server.url").
			WithDetail("Server URL must be an absolute http(s) URL")
	}
	for name, p := range map[string]string{
		"server.graphqlPath": c.Server.GraphQLPath,
		"server.eventsPath":  c.Server.EventsPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New(errors.CodeConfigInvalid).
				WithSubject(name).
				WithDetail("Endpoint paths must start with /")
		}
	}
	for name, d := range map[string]string{
		"router.pendingInterval": c.Router.PendingInterval,
		"router.queryTTL":        c.Router.QueryTTL,
		"session.reconnectDelay": c.Session.ReconnectDelay,
	} {
		if v, err := time.ParseDuration(d); err != nil || v < 0 {
			return errors.New(errors.CodeConfigInvalid).
				WithSubject(name).
				WithDetail("Durations must be non-negative Go durations such as 16ms or 2s")
		}
	}
	if c.Router.QueryMaxEntries < 0 {
		return errors.New(errors.CodeConfigInvalid).
			WithSubject("router.queryMaxEntries").
			WithDetail("queryMaxEntries must not be negative")
	}
	return nil
}

// GraphQLURL returns the absolute query/mutation endpoint.
func (c *Config) GraphQLURL() string {
	return strings.TrimSuffix(c.Server.URL, "/") + c.Server.GraphQLPath
}

// EventsURL returns the absolute event stream endpoint using the ws(s) scheme.
func (c *Config) EventsURL() string {
	base := strings.TrimSuffix(c.Server.URL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + c.Server.EventsPath
}

// PendingInterval returns the parsed pending coalescing window.
func (c *Config) PendingInterval() time.Duration {
	return parseDuration(c.Router.PendingInterval, DefaultPendingInterval)
}

// QueryTTL returns the parsed query store TTL.
func (c *Config) QueryTTL() time.Duration {
	return parseDuration(c.Router.QueryTTL, DefaultQueryTTL)
}

// ReconnectDelay returns the parsed reconnect delay.
func (c *Config) ReconnectDelay() time.Duration {
	return parseDuration(c.Session.ReconnectDelay, DefaultReconnectDelay)
}

func parseDuration(s, fallback string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}
