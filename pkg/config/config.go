package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Timezone    string `yaml:"timezone"` // zone of civil timestamps and of the archive partitions
	Logging     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or console
		Output string `yaml:"output"` // stdout, stderr, or file path
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Archive struct {
		BaseURL    string        `yaml:"base_url"`
		Source     string        `yaml:"source"` // archiver source label sent as "cs" on search/query
		SearchPath string        `yaml:"search_path"`
		QueryPath  string        `yaml:"query_path"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"archive"`
	Fetch struct {
		Workers  int           `yaml:"workers"`  // concurrent signal fetches
		Timeout  time.Duration `yaml:"timeout"`  // per-signal budget, 0 means none
		Interval string        `yaml:"interval"` // default sampling interval
	} `yaml:"fetch"`
	HDB struct {
		Enabled          bool              `yaml:"enabled"`
		Hosts            []string          `yaml:"hosts"`
		Port             int               `yaml:"port"`
		Database         string            `yaml:"database"`
		User             string            `yaml:"user"`
		Password         string            `yaml:"password"`
		AddressMap       map[string]string `yaml:"address_map"` // published host -> routable host
		ConfTTL          time.Duration     `yaml:"conf_ttl"`    // att_conf lookup cache
		DialTimeout      time.Duration     `yaml:"dial_timeout"`
		ReadTimeout      time.Duration     `yaml:"read_timeout"`
		MaxExecutionTime time.Duration     `yaml:"max_execution_time"`
	} `yaml:"hdb"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		LogTopic     string   `yaml:"log_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		CacheTTL struct {
			Search time.Duration `yaml:"search"`
			Query  time.Duration `yaml:"query"`
		} `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Jobs struct {
		Queue      string        `yaml:"queue"` // key prefix
		Workers    int           `yaml:"workers"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		StatusTTL  time.Duration `yaml:"status_ttl"`
	} `yaml:"jobs"`
	Scheduler struct {
		Enabled bool           `yaml:"enabled"`
		Jobs    []SchedulerJob `yaml:"jobs"`
	} `yaml:"scheduler"`
	Recorder struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"` // sqlite file
	} `yaml:"recorder"`
	Export struct {
		OutputRoot string `yaml:"output_root"` // default root for file exports
	} `yaml:"export"`
}

// SchedulerJob describes one recurring export.
type SchedulerJob struct {
	Name       string        `yaml:"name"`
	Spec       string        `yaml:"spec"` // cron expression, seconds precision
	Patterns   []string      `yaml:"patterns"`
	Window     time.Duration `yaml:"window"` // how far back each run reaches
	Interval   string        `yaml:"interval"`
	Backend    string        `yaml:"backend"`
	Target     string        `yaml:"target"` // files or kafka
	OutputRoot string        `yaml:"output_root"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("ARCHIVE_URL"); v != "" {
		c.Archive.BaseURL = v
	}
	if v := os.Getenv("ARCHIVE_SOURCE"); v != "" {
		c.Archive.Source = v
	}
	if v := os.Getenv("HDB_HOSTS"); v != "" {
		c.HDB.Hosts = strings.Split(v, ",")
	}
	if v := os.Getenv("HDB_PASSWORD"); v != "" {
		c.HDB.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive.base_url is required")
	}
	if c.Archive.Source == "" {
		return fmt.Errorf("archive.source is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone '%s' is invalid: %w", c.Timezone, err)
		}
	}
	if c.HDB.Enabled {
		if len(c.HDB.Hosts) == 0 {
			return fmt.Errorf("hdb.hosts cannot be empty when hdb is enabled")
		}
		if c.HDB.Database == "" {
			return fmt.Errorf("hdb.database is required when hdb is enabled")
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Scheduler.Enabled {
		if len(c.Scheduler.Jobs) == 0 {
			return fmt.Errorf("scheduler.jobs cannot be empty when scheduler is enabled")
		}
		for i, j := range c.Scheduler.Jobs {
			if j.Spec == "" {
				return fmt.Errorf("scheduler.jobs[%d].spec is required", i)
			}
			if len(j.Patterns) == 0 {
				return fmt.Errorf("scheduler.jobs[%d].patterns cannot be empty", i)
			}
		}
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		return fmt.Errorf("recorder.path is required when recorder is enabled")
	}
	return nil
}

// Location resolves the configured timezone. Validate has already
// checked it, so fallback to the host zone only happens for the
// zero config.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
