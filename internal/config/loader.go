package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from layered sources.
type Loader struct {
	basePath    string
	environment Environment
	sources     []string
	fileLoaders []FileLoader
	// lookupEnv is os.LookupEnv outside tests.
	lookupEnv func(string) (string, bool)
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a loader reading files from basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	return &Loader{
		basePath:    basePath,
		environment: env,
		fileLoaders: []FileLoader{&YAMLLoader{}, &JSONLoader{}},
		lookupEnv:   os.LookupEnv,
	}
}

// BasePath is the directory files are read from.
func (l *Loader) BasePath() string {
	return l.basePath
}

// Load applies, lowest priority first:
//  1. defaults
//  2. base.yaml
//  3. <environment>.yaml
//  4. local.yaml (development only)
//  5. environment variables
func (l *Loader) Load() (*Config, error) {
	l.sources = []string{"defaults"}
	cfg := l.defaultConfig()

	if err := l.loadFile("base", cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load local config: %w", err)
		}
	}

	if err := l.loadEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	l.sources = append(l.sources, "environment")

	// a file may not move the process to another environment
	cfg.Environment = l.environment
	cfg.LoadedFrom = l.sources
	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(name string, cfg *Config) error {
	for _, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, name+"."+loader.Extension())
		file, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		err = loader.Load(file, cfg)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return os.ErrNotExist
}

// loadEnvironmentVariables overlays NEO4J_*, SERVER_*, GRAPH_* and friends.
func (l *Loader) loadEnvironmentVariables(cfg *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("NEO4J_URI", &cfg.Neo4j.URI)
	str("NEO4J_USERNAME", &cfg.Neo4j.Username)
	str("NEO4J_PASSWORD", &cfg.Neo4j.Password)
	str("NEO4J_DATABASE", &cfg.Neo4j.Database)
	num("NEO4J_MAX_POOL_SIZE", &cfg.Neo4j.MaxConnectionPoolSize)

	str("SERVER_ADDRESS", &cfg.Server.Address)

	str("GRAPH_ACTIVE_PROPERTY", &cfg.Graph.ActiveProperty)
	str("GRAPH_LINEAGE_TYPE", &cfg.Graph.LineageType)
	num("GRAPH_BACKFILL_BATCH_SIZE", &cfg.Graph.BackfillBatchSize)
	dur("GRAPH_REFRESH_INTERVAL", &cfg.Graph.RefreshInterval)
	str("GRAPH_IMPORT_ROOT", &cfg.Graph.ImportRoot)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	flag("ENABLE_METRICS", &cfg.Metrics.Enabled)
	flag("ENABLE_TRACING", &cfg.Tracing.Enabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	flag("ENABLE_CIRCUIT_BREAKER", &cfg.CircuitBreaker.Enabled)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment variables: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (l *Loader) defaultConfig() *Config {
	return &Config{
		Environment: l.environment,
		Neo4j: Neo4j{
			URI:                   "neo4j://localhost:7687",
			Username:              "neo4j",
			MaxConnectionPoolSize: 50,
			ConnectionTimeout:     10 * time.Second,
		},
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			MaxRequestSize:  10 * 1024 * 1024,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Graph: Graph{
			ActiveProperty:    "relevance",
			DateProperty:      "date",
			LineageType:       "SUPERSEDED_BY",
			BackfillBatchSize: 500,
			RefreshInterval:   30 * time.Second,
		},
		Logging: Logging{
			SlowStatement: 500 * time.Millisecond,
		},
		Metrics: Metrics{
			Namespace: "typegraph",
			Path:      "/metrics",
		},
		Tracing: Tracing{
			ServiceName: "typegraph-backend",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			Insecure:    true,
		},
		CircuitBreaker: CircuitBreaker{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
	}
}

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	err := yaml.NewDecoder(reader).Decode(target)
	if err == io.EOF {
		return nil
	}
	return err
}

func (y *YAMLLoader) Extension() string {
	return "yaml"
}

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string {
	return "json"
}

// Load reads configuration from CONFIG_DIR (default "config") for the
// environment named by ENVIRONMENT.
func Load() (*Config, *Loader, error) {
	dir := os.Getenv("CONFIG_DIR")
	loader := NewLoader(dir, getEnvironment())
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
