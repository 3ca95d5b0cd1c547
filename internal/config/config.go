// Package config loads the xtract YAML configuration.
//
// Values of the form ${NAME} are replaced by the NAME environment variable
// before parsing, so secrets can stay out of the file:
//
//	api:
//	  server: catalog.internal
//	  port: 8080
//	credentials:
//	  username: ${XTRACT_USER}
//	  password: ${XTRACT_PASSWORD}
//	settings:
//	  tokenfile: ~/.xtract/token
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"xtract/internal/logging"
)

// Config is the root configuration document.
type Config struct {
	API         API            `yaml:"api"`
	Credentials Credentials    `yaml:"credentials"`
	Settings    Settings       `yaml:"settings"`
	Logging     logging.Config `yaml:"logging"`
	Metrics     Metrics        `yaml:"metrics"`
	Engine      Engine         `yaml:"engine"`
	Profile     Profile        `yaml:"profile"`
	Rules       Rules          `yaml:"rules"`
	S3          S3             `yaml:"s3"`
}

// API locates the remote catalog service.
type API struct {
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`
	// Scheme defaults to http.
	Scheme  string        `yaml:"scheme"`
	Timeout time.Duration `yaml:"timeout"`
}

// BaseURL renders scheme://server:port.
func (a API) BaseURL() string {
	scheme := a.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if a.Port == 0 {
		return fmt.Sprintf("%s://%s", scheme, a.Server)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, a.Server, a.Port)
}

type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Settings struct {
	TokenFile string `yaml:"tokenfile"`
}

// Metrics selects the metrics backend: "", "none", "datadog" or "pushgateway".
type Metrics struct {
	Backend        string        `yaml:"backend"`
	Job            string        `yaml:"job"`
	PushgatewayURL string        `yaml:"pushgateway_url"`
	Tags           []string      `yaml:"tags,omitempty"`
	FlushEvery     time.Duration `yaml:"flush_every"`
}

// Engine selects the SQL engine used to evaluate rules.
type Engine struct {
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
}

type Profile struct {
	// Workers > 1 profiles columns concurrently.
	Workers int `yaml:"workers"`
}

type Rules struct {
	// LegacyConcat evaluates rules with the historical string concatenation
	// instead of the typed predicate builder.
	LegacyConcat bool `yaml:"legacy_concat"`
}

// S3 configures s3:// inputs. Empty fields fall back to the AWS default
// credential chain.
type S3 struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Default returns a configuration that runs fully locally.
func Default() Config {
	return Config{
		API:      API{Server: "localhost", Port: 8080, Timeout: 30 * time.Second},
		Settings: Settings{TokenFile: ".xtract_token"},
		Logging:  logging.Config{Level: "info", Encoding: "console"},
		Metrics:  Metrics{Job: "xtract", PushgatewayURL: "http://localhost:9091", FlushEvery: time.Minute},
		Engine:   Engine{Kind: "sqlite", DSN: ":memory:"},
		Profile:  Profile{Workers: 1},
	}
}

// Load reads path on top of Default. A missing file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse substitutes environment variables in data and decodes it into cfg.
// Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	content := substituteEnvVars(string(data))
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// An unterminated ${ is left as is.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start
		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// Validate reports configuration problems that would fail later at runtime.
func (c Config) Validate() []string {
	var issues []string
	switch c.Metrics.Backend {
	case "", "none", "datadog":
	case "pushgateway":
		if c.Metrics.PushgatewayURL == "" {
			issues = append(issues, "metrics.pushgateway_url is required for the pushgateway backend")
		}
	default:
		issues = append(issues, fmt.Sprintf("metrics.backend %q is not one of none, datadog, pushgateway", c.Metrics.Backend))
	}
	if c.Engine.Kind == "" {
		issues = append(issues, "engine.kind is required")
	}
	if c.Profile.Workers < 0 {
		issues = append(issues, "profile.workers must not be negative")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		issues = append(issues, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	return issues
}
