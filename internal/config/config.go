package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Estimation EstimationConfig `yaml:"estimation" envconfig:"ESTIMATION"`
	Draws      DrawsConfig      `yaml:"draws" envconfig:"DRAWS"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// EstimationConfig contains the solver settings shared by the estimation
// commands. The zero iteration budget is legal and makes a solve fail fast.
type EstimationConfig struct {
	MaxIterations  int     `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"min=0"`
	Tolerance      float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gt=0"`
	Damping        float64 `yaml:"damping" envconfig:"DAMPING" validate:"gt=0"`
	MinShare       float64 `yaml:"min_share" envconfig:"MIN_SHARE" validate:"gt=0,lt=1"`
	MaxConcurrency int     `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1"`
}

// DrawsConfig contains the Monte Carlo integration settings
type DrawsConfig struct {
	Count int    `yaml:"count" envconfig:"COUNT" validate:"min=1"`
	Seed  uint64 `yaml:"seed" envconfig:"SEED"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/blp.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: "reports",
			LogsDir:    "logs",
		},
		Estimation: EstimationConfig{
			MaxIterations:  1000,
			Tolerance:      1e-9,
			Damping:        1.0,
			MinShare:       1e-16,
			MaxConcurrency: 4,
		},
		Draws: DrawsConfig{
			Count: 500,
			Seed:  42,
		},
	}
}

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, in ascending order of precedence.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer; a non-empty path must exist.
func LoadFile(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		if err := loadFromFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables override both defaults and file values.
	if err := envconfig.Process("BLP", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg. Keys absent
// from the file keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// EnsureDirectories creates the configured data, reports, and logs
// directories if they do not already exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReportsDir, c.Paths.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv("BLP_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use defaults and env vars only
}
