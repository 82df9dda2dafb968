package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "linkspider"

	// DefaultConcurrency is the number of fetches allowed in flight.
	DefaultConcurrency = 10

	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "linkspider/1.0 (+https://github.com/nao1215/linkspider)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is how long --tor waits for the embedded
	// daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultKafkaTopic receives one message per fetch.
	DefaultKafkaTopic = "linkspider.fetches"

	// DefaultRedisKey is the list that fetch records are pushed onto.
	DefaultRedisKey = "linkspider:fetches"

	// DefaultNeo4jDatabase is the database written by the graph sink.
	DefaultNeo4jDatabase = "neo4j"
)

// KafkaConfig configures the Kafka sink. The sink is enabled when
// Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// Enabled reports whether the sink should be created.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RedisConfig configures the Redis sink. The sink is enabled when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Key      string `yaml:"key,omitempty"`
}

// Enabled reports whether the sink should be created.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Neo4jConfig configures the link graph sink. The sink is enabled when URI is set.
type Neo4jConfig struct {
	URI      string `yaml:"uri,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// Enabled reports whether the sink should be created.
func (n Neo4jConfig) Enabled() bool {
	return n.URI != ""
}

// Config holds every option of a crawl. It is built from defaults, then
// the configuration file, then explicitly set CLI flags, and passed down
// explicitly rather than kept in global state.
type Config struct {
	// Seeds are the URLs the crawl starts from.
	Seeds []string

	// Concurrency is the maximum number of fetches in flight.
	Concurrency int

	// Timeout bounds each request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize caps how many bytes of each response are read.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// Headers are added to every request.
	Headers map[string]string

	// Cookie is sent with every request when set.
	Cookie string

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded daemon's bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the logger to JSON output.
	LogJSON bool

	// ConfigFilePath is an explicit configuration file. When empty,
	// .linkspider is searched in the current and home directories.
	ConfigFilePath string

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; neither means plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// Record stores the crawl in the SQLite history database.
	Record bool

	// DBDir is where the history database lives.
	DBDir string

	// MetricsAddr serves Prometheus metrics on this address when set.
	MetricsAddr string

	Kafka KafkaConfig
	Redis RedisConfig
	Neo4j Neo4jConfig
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Concurrency:       DefaultConcurrency,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Headers:           make(map[string]string),
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		Kafka:             KafkaConfig{Topic: DefaultKafkaTopic},
		Redis:             RedisConfig{Key: DefaultRedisKey},
		Neo4j:             Neo4jConfig{Database: DefaultNeo4jDatabase},
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/linkspider on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/linkspider on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}
	return nil
}
