package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	storageLayouts = []string{"dynamic", "posts"}
	logLevels      = []string{"debug", "info", "warn", "error"}
	logFormats     = []string{"text", "json"}
)

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	return c.validate(loadOptions{})
}

func (c *Config) validate(o loadOptions) error {
	var errs []error
	if c.Database.URL == "" && !o.withoutDatabase {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	for _, check := range []func() []string{
		c.Database.validate,
		c.Server.validate,
		c.Upload.validate,
		c.Query.validate,
		c.Storage.validate,
		c.Rate.validate,
		c.Logging.validate,
	} {
		for _, msg := range check() {
			errs = append(errs, errors.New(msg))
		}
	}
	return errors.Join(errs...)
}

func (d DatabaseConfig) validate() []string {
	var errs []string
	if d.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if d.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if d.MaxConns < d.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns))
	}
	return errs
}

func (s ServerConfig) validate() []string {
	var errs []string
	if s.Port <= 0 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if p := s.APIPrefix; p != "" && (!strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/")) {
		errs = append(errs, fmt.Sprintf("SERVER_API_PREFIX (%q) must start with / and not end with /", p))
	}
	return errs
}

func (u UploadConfig) validate() []string {
	var errs []string
	if u.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if u.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if u.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if u.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	return errs
}

func (q QueryConfig) validate() []string {
	var errs []string
	if q.DefaultPageSize <= 0 {
		errs = append(errs, "QUERY_DEFAULT_PAGE_SIZE must be positive")
	}
	if q.MaxPageSize < q.DefaultPageSize {
		errs = append(errs, fmt.Sprintf("QUERY_MAX_PAGE_SIZE (%d) must be >= QUERY_DEFAULT_PAGE_SIZE (%d)",
			q.MaxPageSize, q.DefaultPageSize))
	}
	return errs
}

func (s StorageConfig) validate() []string {
	var errs []string
	if !oneOf(s.Layout, storageLayouts) {
		errs = append(errs, fmt.Sprintf("STORAGE_LAYOUT (%q) must be one of: %s", s.Layout, strings.Join(storageLayouts, ", ")))
	}
	if s.ColumnsCacheTTL < 0 {
		errs = append(errs, "STORAGE_COLUMNS_CACHE_TTL must be non-negative")
	}
	return errs
}

func (r RateLimitConfig) validate() []string {
	if r.Enabled && r.RequestsPerMinute <= 0 {
		return []string{"RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled"}
	}
	return nil
}

func (l LoggingConfig) validate() []string {
	var errs []string
	if !oneOf(l.Level, logLevels) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: %s", l.Level, strings.Join(logLevels, ", ")))
	}
	if !oneOf(l.Format, logFormats) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: %s", l.Format, strings.Join(logFormats, ", ")))
	}
	return errs
}

func oneOf(v string, allowed []string) bool {
	return slices.Contains(allowed, strings.ToLower(v))
}
