package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/prtimeline/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextImport - import only needs the raw store
	ValidationContextImport ValidationContext = "import"
	// ValidationContextDerive - derive needs the raw store, outputs and registries
	ValidationContextDerive ValidationContext = "derive"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextImport:
		c.validateStorage(result)
		c.validateLog(result)
	case ValidationContextDerive:
		c.validateStorage(result)
		c.validatePostgres(result)
		c.validateOutput(result)
		c.validateDerive(result)
		c.validateRegistry(result)
		c.validateLog(result)
	case ValidationContextAll:
		c.validateStorage(result)
		c.validatePostgres(result)
		c.validateOutput(result)
		c.validateDerive(result)
		c.validateRegistry(result)
		c.validateLog(result)
	}

	return result
}

// ValidateOrError returns a config error when validation fails
func (c *Config) ValidateOrError(ctx ValidationContext) error {
	result := c.Validate(ctx)
	if result.HasErrors() {
		return errors.ConfigError(result.Error()).WithContext("context", string(ctx))
	}
	return nil
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case StorageSQLite, StorageBolt:
	default:
		result.AddError("STORAGE_TYPE must be %q or %q, got %q", StorageSQLite, StorageBolt, c.Storage.Type)
	}
	if c.Storage.LocalPath == "" {
		result.AddError("LOCAL_DB_PATH is required but not set")
	}
}

func (c *Config) validatePostgres(result *ValidationResult) {
	switch c.Storage.PostgresDriver {
	case DriverPgx, DriverPostgres:
	default:
		result.AddError("POSTGRES_DRIVER must be %q or %q, got %q", DriverPgx, DriverPostgres, c.Storage.PostgresDriver)
	}

	dsn := c.Storage.PostgresDSN
	if dsn == "" {
		return
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
	}
	if strings.Contains(dsn, "sslmode=disable") {
		result.AddWarning("PostgreSQL DSN has sslmode=disable")
	}
}

func (c *Config) validateOutput(result *ValidationResult) {
	switch c.Output.Format {
	case FormatCSV, FormatJSONL, FormatBoth:
	default:
		result.AddError("OUTPUT_FORMAT must be one of csv, jsonl, both; got %q", c.Output.Format)
	}
	if c.Output.Directory == "" {
		result.AddError("OUTPUT_DIR is required but not set")
	}
}

func (c *Config) validateDerive(result *ValidationResult) {
	if c.Derive.Workers < 1 {
		result.AddError("DERIVE_WORKERS must be at least 1, got %d", c.Derive.Workers)
	}
	if c.Derive.ProjectWorkers < 1 {
		result.AddError("PROJECT_WORKERS must be at least 1, got %d", c.Derive.ProjectWorkers)
	}
}

func (c *Config) validateRegistry(result *ValidationResult) {
	if c.Registry.BotsFile == "" {
		result.AddWarning("BOTS_FILE is not set, only login suffixes and owners identify bots")
	} else if _, err := os.Stat(c.Registry.BotsFile); err != nil {
		result.AddError("BOTS_FILE %s is not readable: %v", c.Registry.BotsFile, err)
	}

	if c.Registry.ProjectsFile != "" {
		if _, err := os.Stat(c.Registry.ProjectsFile); err != nil {
			result.AddError("PROJECTS_FILE %s is not readable: %v", c.Registry.ProjectsFile, err)
		}
	}
}

func (c *Config) validateLog(result *ValidationResult) {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result.AddError("LOG_LEVEL %q is invalid: %v", c.Log.Level, err)
	}
}
