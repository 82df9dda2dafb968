package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for.
const DefaultConfigFile = ".linkspider"

// SinksFile is the sinks section of the configuration file.
type SinksFile struct {
	Kafka KafkaConfig `yaml:"kafka,omitempty"`
	Redis RedisConfig `yaml:"redis,omitempty"`
	Neo4j Neo4jConfig `yaml:"neo4j,omitempty"`
}

// File is the structure of the .linkspider configuration file.
// Zero values mean "not set".
type File struct {
	Seeds       []string          `yaml:"seeds,omitempty"`
	Concurrency int               `yaml:"concurrency,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
	UserAgent   string            `yaml:"userAgent,omitempty"`
	MaxBodySize int64             `yaml:"maxBodySize,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Cookie      string            `yaml:"cookie,omitempty"`
	Proxy       string            `yaml:"proxy,omitempty"`
	Sinks       SinksFile         `yaml:"sinks,omitempty"`
}

// LoadConfigFile reads a configuration file. It returns ErrConfigNotFound
// when path does not exist.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ApplyTo copies every value set in the file onto cfg. Sink sections
// replace only the fields they set, so defaults such as the Kafka topic
// survive a file that only lists brokers.
func (f *File) ApplyTo(cfg *Config) {
	if len(f.Seeds) > 0 {
		cfg.Seeds = append([]string(nil), f.Seeds...)
	}
	if f.Concurrency != 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.MaxBodySize != 0 {
		cfg.MaxBodySize = f.MaxBodySize
	}
	if len(f.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			cfg.Headers[k] = v
		}
	}
	if f.Cookie != "" {
		cfg.Cookie = f.Cookie
	}
	if f.Proxy != "" {
		cfg.ProxyAddress = f.Proxy
	}

	k := f.Sinks.Kafka
	if len(k.Brokers) > 0 {
		cfg.Kafka.Brokers = append([]string(nil), k.Brokers...)
	}
	if k.Topic != "" {
		cfg.Kafka.Topic = k.Topic
	}

	r := f.Sinks.Redis
	if r.Addr != "" {
		cfg.Redis.Addr = r.Addr
	}
	if r.Password != "" {
		cfg.Redis.Password = r.Password
	}
	if r.DB != 0 {
		cfg.Redis.DB = r.DB
	}
	if r.Key != "" {
		cfg.Redis.Key = r.Key
	}

	n := f.Sinks.Neo4j
	if n.URI != "" {
		cfg.Neo4j.URI = n.URI
	}
	if n.Username != "" {
		cfg.Neo4j.Username = n.Username
	}
	if n.Password != "" {
		cfg.Neo4j.Password = n.Password
	}
	if n.Database != "" {
		cfg.Neo4j.Database = n.Database
	}
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
// An explicit configPath is used as is; otherwise .linkspider is looked up
// in the current directory and then in the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
