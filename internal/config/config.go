// Package config loads and validates the service configuration.
//
// Configuration is layered: defaults in code, then base.yaml, then the
// environment file (e.g. production.yaml), then local.yaml in development,
// then environment variables. See Loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// Config is the complete service configuration.
type Config struct {
	Environment    Environment    `yaml:"environment" json:"environment" validate:"required,oneof=development staging production test"`
	Neo4j          Neo4j          `yaml:"neo4j" json:"neo4j"`
	Server         Server         `yaml:"server" json:"server"`
	Graph          Graph          `yaml:"graph" json:"graph"`
	Logging        Logging        `yaml:"logging" json:"logging"`
	Metrics        Metrics        `yaml:"metrics" json:"metrics"`
	Tracing        Tracing        `yaml:"tracing" json:"tracing"`
	CircuitBreaker CircuitBreaker `yaml:"circuit_breaker" json:"circuit_breaker"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-" json:"-"`
}

// Neo4j holds the store connection settings. The password never leaves this
// package except to open the driver.
type Neo4j struct {
	URI                   string        `yaml:"uri" json:"uri" validate:"required"`
	Username              string        `yaml:"username" json:"username" validate:"required"`
	Password              string        `yaml:"password" json:"-"`
	Database              string        `yaml:"database" json:"database"`
	MaxConnectionPoolSize int           `yaml:"max_connection_pool_size" json:"max_connection_pool_size" validate:"gte=0,lte=1000"`
	ConnectionTimeout     time.Duration `yaml:"connection_timeout" json:"connection_timeout" validate:"gte=0"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Address         string        `yaml:"address" json:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`
	MaxRequestSize  int64         `yaml:"max_request_size" json:"max_request_size" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`
}

// Graph holds the schema-on-write settings.
type Graph struct {
	ActiveProperty    string        `yaml:"active_property" json:"active_property" validate:"required"`
	DateProperty      string        `yaml:"date_property" json:"date_property" validate:"required"`
	LineageType       string        `yaml:"lineage_type" json:"lineage_type" validate:"required"`
	BackfillBatchSize int           `yaml:"backfill_batch_size" json:"backfill_batch_size" validate:"gt=0,lte=100000"`
	RefreshInterval   time.Duration `yaml:"refresh_interval" json:"refresh_interval" validate:"gte=1s"`
	// ImportRoot confines folder imports; empty disables them.
	ImportRoot string `yaml:"import_root" json:"import_root"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
	// SlowStatement marks statements logged at warn level.
	SlowStatement time.Duration `yaml:"slow_statement" json:"slow_statement" validate:"gte=0"`
}

// Metrics configures the Prometheus collector.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"required_if=Enabled true"`
	Path      string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" validate:"required_if=Enabled true"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
}

// CircuitBreaker configures the store circuit breaker.
type CircuitBreaker struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests"`
	Interval         time.Duration `yaml:"interval" json:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	FailureThreshold float64       `yaml:"failure_threshold" json:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" json:"min_requests"`
}

var validate = validator.New()

// Validate checks struct constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Environment == Production {
		if c.Neo4j.Password == "" {
			return errors.New("neo4j.password is required in production")
		}
		if c.Logging.Level == "debug" {
			return errors.New("debug logging is not allowed in production")
		}
	}
	if c.Graph.ActiveProperty == c.Graph.DateProperty {
		return errors.New("graph.active_property and graph.date_property must differ")
	}
	return nil
}

// IsDevelopment reports whether hot reload and verbose logging apply.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// applyEnvironmentDefaults adjusts settings the environment implies unless a
// file or variable already chose them.
func (c *Config) applyEnvironmentDefaults() {
	switch c.Environment {
	case Development, Test:
		if c.Logging.Format == "" {
			c.Logging.Format = "console"
		}
		if c.Logging.Level == "" {
			c.Logging.Level = "debug"
		}
	case Production:
		c.CircuitBreaker.Enabled = true
		c.Metrics.Enabled = true
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// getEnvironment reads ENVIRONMENT, defaulting to development.
func getEnvironment() Environment {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	switch Environment(env) {
	case Development, Staging, Production, Test:
		return Environment(env)
	default:
		return Development
	}
}
