package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Where raw records live and where derived datasets go
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Exported files
	Output OutputConfig `yaml:"output" mapstructure:"output"`

	// Engine parallelism
	Derive DeriveConfig `yaml:"derive" mapstructure:"derive"`

	// Bot registry and project manifest
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`

	Log LogConfig `yaml:"log" mapstructure:"log"`
}

type StorageConfig struct {
	Type           string `yaml:"type" mapstructure:"type"` // "sqlite", "bolt"
	LocalPath      string `yaml:"local_path" mapstructure:"local_path"`
	PostgresDSN    string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`       // optional dataset warehouse
	PostgresDriver string `yaml:"postgres_driver" mapstructure:"postgres_driver"` // "pgx", "postgres"
}

type OutputConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
	Format    string `yaml:"format" mapstructure:"format"` // "csv", "jsonl", "both"
}

type DeriveConfig struct {
	Workers        int `yaml:"workers" mapstructure:"workers"`                 // pulls in flight per project
	ProjectWorkers int `yaml:"project_workers" mapstructure:"project_workers"` // projects in flight
}

type RegistryConfig struct {
	BotsFile     string `yaml:"bots_file" mapstructure:"bots_file"`
	ProjectsFile string `yaml:"projects_file" mapstructure:"projects_file"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

const (
	StorageSQLite = "sqlite"
	StorageBolt   = "bolt"

	DriverPgx      = "pgx"
	DriverPostgres = "postgres"

	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatBoth  = "both"
)

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:           StorageSQLite,
			LocalPath:      filepath.Join(homeDir, ".prtimeline", "raw.db"),
			PostgresDriver: DriverPgx,
		},
		Output: OutputConfig{
			Directory: "data",
			Format:    FormatCSV,
		},
		Derive: DeriveConfig{
			Workers:        runtime.GOMAXPROCS(0),
			ProjectWorkers: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// .env files first, so they can feed the overrides below
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix("PRTIMELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".prtimeline")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".prtimeline"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file, defaults apply
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Output.Directory = expandPath(cfg.Output.Directory)

	return cfg, nil
}

// setDefaults registers every leaf key so file values merge with defaults and
// PRTIMELINE_<SECTION>_<KEY> variables are picked up
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.local_path", cfg.Storage.LocalPath)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)
	v.SetDefault("storage.postgres_driver", cfg.Storage.PostgresDriver)
	v.SetDefault("output.directory", cfg.Output.Directory)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("derive.workers", cfg.Derive.Workers)
	v.SetDefault("derive.project_workers", cfg.Derive.ProjectWorkers)
	v.SetDefault("registry.bots_file", cfg.Registry.BotsFile)
	v.SetDefault("registry.projects_file", cfg.Registry.ProjectsFile)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.json", cfg.Log.JSON)
}

// loadEnvFiles loads .env files in order of precedence. godotenv never overrides
// a variable that is already set, so earlier files win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
	if file := findEnvFile(); file != "" {
		_ = godotenv.Load(file)
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".prtimeline", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	cfg.Storage.Type = GetString("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.LocalPath = GetString("LOCAL_DB_PATH", cfg.Storage.LocalPath)
	cfg.Storage.PostgresDSN = GetString("POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.PostgresDriver = GetString("POSTGRES_DRIVER", cfg.Storage.PostgresDriver)

	cfg.Output.Directory = GetString("OUTPUT_DIR", cfg.Output.Directory)
	cfg.Output.Format = GetString("OUTPUT_FORMAT", cfg.Output.Format)

	cfg.Derive.Workers = GetInt("DERIVE_WORKERS", cfg.Derive.Workers)
	cfg.Derive.ProjectWorkers = GetInt("PROJECT_WORKERS", cfg.Derive.ProjectWorkers)

	cfg.Registry.BotsFile = GetString("BOTS_FILE", cfg.Registry.BotsFile)
	cfg.Registry.ProjectsFile = GetString("PROJECTS_FILE", cfg.Registry.ProjectsFile)

	cfg.Log.Level = GetString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = GetString("LOG_FILE", cfg.Log.File)
	cfg.Log.JSON = GetBool("LOG_JSON", cfg.Log.JSON)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("storage", c.Storage)
	v.Set("output", c.Output)
	v.Set("derive", c.Derive)
	v.Set("registry", c.Registry)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
