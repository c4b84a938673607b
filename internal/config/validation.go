package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Field
	}
	return fields
}

// ValidateConfig validates every section and reports all problems at once.
// Call it after Resolve.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors
	errs = append(errs, validateHTTP(&c.HTTP)...)
	errs = append(errs, validateNode(&c.Node)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateWeb(&c.Web)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTP(h *HTTPConfig) ValidationErrors {
	var errs ValidationErrors

	if _, _, err := net.SplitHostPort(h.Listen); err != nil {
		errs = append(errs, ValidationError{
			Field:   "http.listen",
			Message: fmt.Sprintf("invalid listen address %q: %v", h.Listen, err),
		})
	}

	for i, origin := range h.CORSOrigins {
		if origin != "*" && !isValidURL(origin) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("http.cors_origins[%d]", i),
				Message: fmt.Sprintf("invalid origin: %s", origin),
			})
		}
	}

	timeouts := []struct {
		field string
		value int
	}{
		{"http.read_timeout_sec", h.ReadTimeoutSec},
		{"http.write_timeout_sec", h.WriteTimeoutSec},
		{"http.idle_timeout_sec", h.IdleTimeoutSec},
		{"http.shutdown_timeout_sec", h.ShutdownTimeoutSec},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			errs = append(errs, *RangeError(t.field, 0, "unbounded"))
		}
	}

	if h.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "http.rate_limit",
			Message: "rate limit cannot be negative",
		})
	}
	if h.RateLimit > 0 && h.RateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "http.rate_burst",
			Message: "burst must be at least 1 when rate limiting",
		})
	}

	return errs
}

func validateNode(n *NodeConfig) ValidationErrors {
	var errs ValidationErrors

	if n.Home == "" {
		errs = append(errs, *RequiredFieldError("node.home"))
	}
	if n.KeyPath == "" {
		errs = append(errs, *RequiredFieldError("node.key_path"))
	}
	if n.SocketPath == "" {
		errs = append(errs, *RequiredFieldError("node.socket_path"))
	}
	if n.DialTimeoutMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "node.dial_timeout_ms",
			Message: "dial timeout must be at least 1ms",
		})
	}
	if n.RequestTimeoutMs < n.DialTimeoutMs {
		errs = append(errs, ValidationError{
			Field:   "node.request_timeout_ms",
			Message: "request timeout must not be shorter than the dial timeout",
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.NodeDB == "" {
		errs = append(errs, *RequiredFieldError("storage.node_db"))
	}
	if s.PoliciesDB == "" {
		errs = append(errs, *RequiredFieldError("storage.policies_db"))
	}
	if s.NodeDB != "" && s.NodeDB == s.PoliciesDB {
		errs = append(errs, ValidationError{
			Field:   "storage.policies_db",
			Message: "policies database must differ from the node database",
		})
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, *RangeError("storage.busy_timeout_ms", 0, "unbounded"))
	}
	if s.MaxConnections < 1 || s.MaxConnections > 100 {
		errs = append(errs, *RangeError("storage.max_connections", 1, 100))
	}

	return errs
}

func validateWeb(w *WebConfig) ValidationErrors {
	var errs ValidationErrors

	if w.AvatarURL != "" && !isValidURL(w.AvatarURL) {
		errs = append(errs, ValidationError{
			Field:   "web.avatar_url",
			Message: fmt.Sprintf("invalid URL: %s", w.AvatarURL),
		})
	}
	if w.BannerURL != "" && !isValidURL(w.BannerURL) {
		errs = append(errs, ValidationError{
			Field:   "web.banner_url",
			Message: fmt.Sprintf("invalid URL: %s", w.BannerURL),
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, ValidationError{
			Field:   "metrics.path",
			Message: "path must start with /",
		})
	}
	if m.Enabled && strings.HasPrefix(m.Path, "/api/") {
		errs = append(errs, ValidationError{
			Field:   "metrics.path",
			Message: "path must not be under /api/",
		})
	}

	return errs
}

func isValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RequiredFieldError creates a validation error for a missing required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for a value out of range.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
