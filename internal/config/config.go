package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidationError is the fatal configuration error raised at load time,
// before any node processing starts.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v %s", e.Field, e.Value, e.Reason)
}

// GraphConfig holds the core engine settings.
type GraphConfig struct {
	ConnectionThreshold   float64 `yaml:"connection_threshold" validate:"gte=0,lte=1"`
	MaxConnectionsPerNode int     `yaml:"max_connections_per_node" validate:"gte=1"`
	EvidenceWeight        float64 `yaml:"evidence_weight" validate:"gte=0,lte=1"`
	ClinicalWeight        float64 `yaml:"clinical_weight" validate:"gte=0,lte=1"`
}

// ScreenerConfig controls the OpenAlex literature search.
type ScreenerConfig struct {
	BaseURL    string  `yaml:"base_url" validate:"required,url"`
	Mailto     string  `yaml:"mailto"`
	PerPage    int     `yaml:"per_page" validate:"gte=1,lte=200"`
	MaxPapers  int     `yaml:"max_papers" validate:"gte=1"`
	MinQuality float64 `yaml:"min_quality" validate:"gte=0,lte=1"`
}

type VaultConfig struct {
	Dir string `yaml:"dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Graph    GraphConfig    `yaml:"graph"`
	Screener ScreenerConfig `yaml:"screener"`
	Vault    VaultConfig    `yaml:"vault"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			ConnectionThreshold:   0.15,
			MaxConnectionsPerNode: 20,
			EvidenceWeight:        0.4,
			ClinicalWeight:        0.3,
		},
		Screener: ScreenerConfig{
			BaseURL:    "https://api.openalex.org/works",
			PerPage:    25,
			MaxPapers:  50,
			MinQuality: 0.5,
		},
		Vault:    VaultConfig{Dir: "vault"},
		Database: DatabaseConfig{Path: "kinegraph.db"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the YAML config at path over the defaults, applies environment
// overrides and validates the result. A missing config file is not an error;
// an out-of-range value is.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config over the defaults
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// keep defaults
		default:
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if db := os.Getenv("KINEGRAPH_DB"); db != "" {
		cfg.Database.Path = db
	}
	if dir := os.Getenv("KINEGRAPH_VAULT_DIR"); dir != "" {
		cfg.Vault.Dir = dir
	}
	if mailto := os.Getenv("KINEGRAPH_MAILTO"); mailto != "" {
		cfg.Screener.Mailto = mailto
	}
	if level := os.Getenv("KINEGRAPH_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every weight and threshold against its allowed range.
func (c *Config) Validate() error {
	v := validator.New()
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:  fe.Namespace(),
			Value:  fe.Value(),
			Reason: fmt.Sprintf("violates %s=%s", fe.Tag(), fe.Param()),
		}
	}
	return err
}
