package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/frontpage/internal/document"
	"github.com/conneroisu/frontpage/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder
	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)
	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// Validate checks every section and collects all problems.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{}
	validateServer(&config.Server, result)
	validateSite(&config.Site, result)
	validateBackends(config, result)
	validateLog(&config.Log, result)
	return result
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := Validate(config)
	if result.HasErrors() {
		first := result.Errors[0]
		return &first
	}
	return nil
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system pick a port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common ports: 8080, 3000, 8000")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ ") {
		result.addError("server.host", config.Host, "host contains invalid characters",
			"Use 'localhost' for local development",
			"Use '0.0.0.0' to bind to all interfaces")
	}

	switch config.Environment {
	case "development", "production", "testing":
	default:
		result.addWarning("server.environment", config.Environment, "unknown environment type")
	}
}

func validateSite(config *SiteConfig, result *ValidationResult) {
	if err := validatePath(config.PublicDir); err != nil {
		result.addError("site.public_dir", config.PublicDir, err.Error())
	}
	if err := validatePath(config.TempDir); err != nil {
		result.addError("site.temp_dir", config.TempDir, err.Error())
	} else if filepath.IsAbs(config.TempDir) {
		result.addError("site.temp_dir", config.TempDir, "temp_dir must be relative to public_dir")
	}
	if config.SetupFile == "" {
		result.addError("site.setup_file", config.SetupFile, "setup file is required")
	}
	if _, err := document.ParseLocale(config.Locale); err != nil {
		result.addError("site.locale", config.Locale, err.Error(), "Use a BCP 47 tag such as en-US or de-DE")
	}
}

func validateBackends(config *Config, result *ValidationResult) {
	needsRedis := false
	for _, b := range []struct{ field, backend string }{
		{"cache.backend", config.Cache.Backend},
		{"lock.backend", config.Lock.Backend},
	} {
		switch b.backend {
		case BackendMemory:
		case BackendRedis:
			needsRedis = true
		default:
			result.addError(b.field, b.backend, fmt.Sprintf("unknown backend %q", b.backend),
				"Available backends: memory, redis")
		}
	}
	if needsRedis && config.Cache.Redis.Addr == "" {
		result.addError("cache.redis.addr", "", "redis address is required for the redis backend",
			"Set cache.redis.addr or FRONTPAGE_CACHE_REDIS_ADDR")
	}
	if config.Cache.Redis.DB < 0 {
		result.addError("cache.redis.db", config.Cache.Redis.DB, "redis database must not be negative")
	}
}

func validateLog(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "unknown log format", "Use text or json")
	}
}

// validatePath validates a directory path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	for _, seg := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if seg == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}
	if strings.ContainsAny(cleanPath, ";&|$`<>\"'\x00") {
		return fmt.Errorf("path contains dangerous characters: %s", path)
	}
	return nil
}
