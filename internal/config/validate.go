package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/ivanceras/diwata-sub000/internal/naming"
	"github.com/ivanceras/diwata-sub000/internal/schemafilter"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Schema.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)

	return result
}

var validSSLModes = map[string]bool{
	"":            true,
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	dsnSet := strings.TrimSpace(d.ConnectionString) != ""

	if !validSSLModes[d.TLS.Mode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.tls.mode",
			Message: fmt.Sprintf("invalid sslmode %q", d.TLS.Mode),
			Hint:    "valid values are: disable, allow, prefer, require, verify-ca, verify-full",
		})
	}
	if (d.TLS.Mode == "verify-ca" || d.TLS.Mode == "verify-full") && d.TLS.RootCert == "" && !dsnSet {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.tls.root_cert",
			Message: "no root certificate configured for " + d.TLS.Mode,
			Hint:    "the system certificate pool will be used",
		})
	}
	if (d.TLS.CertFile == "") != (d.TLS.KeyFile == "") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.tls.cert_file",
			Message: "cert_file and key_file must be set together",
		})
	}

	if !dsnSet && (d.Port < 1 || d.Port > 65535) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port),
		})
	}

	// Connection pool validation
	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}

	// Connection retry validation
	if d.ConnectionTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_timeout",
			Message: "connection_timeout cannot be negative",
		})
	}
	if d.ConnectionRetryInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_retry_interval",
			Message: "connection_retry_interval cannot be negative",
		})
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_retry_interval",
			Message: "connection_retry_interval must be greater than 0 when connection_timeout is set",
			Hint:    "set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
		})
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.connection_retry_interval",
			Message: "connection_retry_interval is greater than connection_timeout",
			Hint:    "only one connection attempt will be made",
		})
	}

	d.Session.validate(result)

	target, err := d.Target()
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.dsn",
			Message: err.Error(),
			Hint:    "use a postgres:// URL or a keyword/value connection string",
		})
		return
	}
	if target.Database == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.database",
			Message: "database name is required",
			Hint:    "set database.database or include a /database in database.dsn",
		})
	}
}

func (s *SessionConfig) validate(result *ValidationResult) {
	for i, schema := range s.SearchPath {
		if err := checkIdentifier(schema); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("database.session.search_path[%d]", i),
				Message: err.Error(),
			})
		}
	}
	if s.Role == "" {
		return
	}
	if err := checkIdentifier(s.Role); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.session.role",
			Message: err.Error(),
		})
		return
	}
	if len(s.AllowedRoles) > 0 && !slices.Contains(s.AllowedRoles, s.Role) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.session.role",
			Message: fmt.Sprintf("role %q is not in allowed_roles", s.Role),
		})
	}
}

// maxIdentifierLength is PostgreSQL's NAMEDATALEN minus the terminator.
const maxIdentifierLength = 63

func checkIdentifier(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("identifier cannot be empty")
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("identifier %q contains a NUL byte", name)
	case len(name) > maxIdentifierLength:
		return fmt.Errorf("identifier %q exceeds %d bytes", name, maxIdentifierLength)
	}
	return nil
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if len(s.Schemas) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.schemas",
			Message: "at least one schema is required",
			Hint:    "the PostgreSQL default is public",
		})
	}
	for i, schema := range s.Schemas {
		if err := checkIdentifier(schema); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("schema.schemas[%d]", i),
				Message: err.Error(),
			})
		}
	}
	if s.PageSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.page_size",
			Message: "page_size must be at least 1",
		})
	}
	if s.LookupPageSize < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.lookup_page_size",
			Message: "lookup_page_size must be at least 1",
		})
	}
	validateSchemaFilters(result, s.Filters)
	validateNamingConfig(result, s.Naming)
}

func validateSchemaFilters(result *ValidationResult, filters schemafilter.Config) {
	validateGlobList(result, "schema.filters.allow_tables", filters.AllowTables)
	validateGlobList(result, "schema.filters.deny_tables", filters.DenyTables)
	validateGlobList(result, "schema.filters.deny_mutation_tables", filters.DenyMutationTables)
	validatePatternMap(result, "schema.filters.allow_columns", filters.AllowColumns)
	validatePatternMap(result, "schema.filters.deny_columns", filters.DenyColumns)
	validatePatternMap(result, "schema.filters.deny_mutation_columns", filters.DenyMutationColumns)
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for name, label := range cfg.Labels {
		if strings.TrimSpace(name) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "schema.naming.labels",
				Message: "label key cannot be empty",
			})
			continue
		}
		if strings.TrimSpace(label) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "schema.naming.labels",
				Message: fmt.Sprintf("label for %q cannot be empty", name),
			})
		}
	}
	for field, overrides := range map[string]map[string]string{
		"schema.naming.plural_overrides":   cfg.PluralOverrides,
		"schema.naming.singular_overrides": cfg.SingularOverrides,
	} {
		for from, to := range overrides {
			if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("override %q -> %q cannot have an empty side", from, to),
				})
			}
		}
	}
}

func validatePatternMap(result *ValidationResult, field string, patternMap map[string][]string) {
	for tablePattern, columnPatterns := range patternMap {
		if strings.TrimSpace(tablePattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "table pattern cannot be empty",
			})
			continue
		}
		if _, err := path.Match(strings.ToLower(tablePattern), "x"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid table glob pattern %q: %v", tablePattern, err),
			})
		}
		for _, columnPattern := range columnPatterns {
			if strings.TrimSpace(columnPattern) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("column pattern for table pattern %q cannot be empty", tablePattern),
				})
				continue
			}
			if _, err := path.Match(strings.ToLower(columnPattern), "x"); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("invalid column glob pattern %q for table pattern %q: %v", columnPattern, tablePattern, err),
				})
			}
		}
	}
}

func validateGlobList(result *ValidationResult, field string, patterns []string) {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "glob pattern cannot be empty",
			})
			continue
		}
		if _, err := path.Match(strings.ToLower(pattern), "x"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid glob pattern %q: %v", pattern, err),
			})
		}
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", s.Addr, err),
			Hint:    "use host:port or :port",
		})
	}
	if s.ShutdownTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown_timeout must be greater than 0",
		})
	}
	if s.HealthCheckTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.health_check_timeout",
			Message: "health_check_timeout must be greater than 0",
		})
	}
	if s.AdminToken != "" && strings.TrimSpace(s.AdminToken) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.admin_token",
			Message: "admin_token must not be blank",
			Hint:    "unset it to leave /reload unprotected",
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v must be between 0 and 1", o.TraceSampleRatio),
		})
	}
	if o.SQLCommenterEnabled && !o.TracingEnabled {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.sqlcommenter_enabled",
			Message: "sqlcommenter has no effect while tracing is disabled",
		})
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".endpoint",
			Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			Hint:    "use host:port or a full URL",
		})
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
