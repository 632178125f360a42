package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults applied by the loader before config files and flags.
const (
	DefaultServerHost     = "localhost"
	DefaultScheme         = "http"
	DefaultPort           = 3000
	DefaultScriptName     = "Vegas-Slots-Load-Test"
	DefaultUserAgent      = "LoadRunner Vegas Slots Test Agent"
	DefaultMaxConnections = 6
	DefaultThinkTime      = time.Second
	DefaultTimeout        = 30 * time.Second
)

type Config struct {
	ServerHost     string        `mapstructure:"server_host"`
	TestRunID      string        `mapstructure:"test_run_id"`
	Scheme         string        `mapstructure:"scheme"`
	Port           int           `mapstructure:"port"`
	ScriptName     string        `mapstructure:"script_name"`
	VUsers         int           `mapstructure:"vusers"`
	Iterations     int           `mapstructure:"iterations"`
	Rate           int           `mapstructure:"rate"`
	Duration       time.Duration `mapstructure:"duration"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	ThinkTime      time.Duration `mapstructure:"think_time"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxConnections int           `mapstructure:"max_connections"`
	Seed           int64         `mapstructure:"seed"`
	JSONOutput     bool          `mapstructure:"json_output"`
	LogErrors      bool          `mapstructure:"log_errors"`
	LogLevel       string        `mapstructure:"log_level"`
	LogJSON        bool          `mapstructure:"log_json"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	ConfigFile     string        `mapstructure:"-"`
	LoadPatterns   []LoadPattern `mapstructure:"load_patterns"`
	Arrival        ArrivalConfig `mapstructure:"arrival"`
	Thresholds     []string      `mapstructure:"thresholds"`
	Tracing        TracingConfig `mapstructure:"tracing"`
}

type LoadPatternType string

const (
	LoadPatternTypeRamp  LoadPatternType = "ramp"
	LoadPatternTypeStep  LoadPatternType = "step"
	LoadPatternTypeSpike LoadPatternType = "spike"
)

// LoadPattern rates are iterations started per second.
type LoadPattern struct {
	Name     string          `mapstructure:"name"`
	Type     LoadPatternType `mapstructure:"type"`
	FromRate int             `mapstructure:"from_rate"`
	ToRate   int             `mapstructure:"to_rate"`
	Duration time.Duration   `mapstructure:"duration"`
	Steps    []LoadStep      `mapstructure:"steps"`
	Rate     int             `mapstructure:"rate"`
}

type LoadStep struct {
	Rate     int           `mapstructure:"rate"`
	Duration time.Duration `mapstructure:"duration"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// TracingConfig configures OpenTelemetry export of transaction spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector host:port
	Protocol    string  `mapstructure:"protocol"`     // "grpc" (default) or "http"
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME or "vegasload"
	SampleRate  float64 `mapstructure:"sample_rate"`  // 0.0 to 1.0
	Insecure    bool    `mapstructure:"insecure"`     // plaintext connection to the collector
	Propagate   *bool   `mapstructure:"propagate"`    // inject traceparent; defaults to Enabled()
}

// Enabled reports whether an OTLP endpoint is configured, either directly
// or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace context is injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	// Security warnings for high rate/user counts
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High iteration rate configured (%d/s). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.VUsers > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High virtual user count configured (%d). Ensure you have authorization to test the target system.", c.VUsers))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if strings.ContainsAny(c.ServerHost, "/?#@ ") {
		issues = append(issues, fmt.Sprintf("server_host %q must be a bare host name or address", c.ServerHost))
	}
	switch c.Scheme {
	case "", "http", "https":
	default:
		issues = append(issues, fmt.Sprintf("scheme must be 'http' or 'https', got %q", c.Scheme))
	}
	if c.Port < 0 || c.Port > 65535 {
		issues = append(issues, "port must be between 1 and 65535")
	}
	if strings.ContainsAny(c.ScriptName, ";=") {
		issues = append(issues, "script_name must not contain ';' or '='")
	}
	if strings.ContainsAny(c.TestRunID, ";=") {
		issues = append(issues, "test_run_id must not contain ';' or '='")
	}
	if c.VUsers < 1 {
		issues = append(issues, "vusers must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Iterations < 0 {
		issues = append(issues, "iterations must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.ThinkTime < 0 {
		issues = append(issues, "think_time must be >= 0")
	}
	if c.MaxConnections < 0 {
		issues = append(issues, "max_connections must be >= 0")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateLoadPatterns(c.LoadPatterns)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateLoadPatterns(patterns []LoadPattern) []string {
	var issues []string
	for idx, pattern := range patterns {
		typeLabel := strings.TrimSpace(string(pattern.Type))
		if typeLabel == "" {
			issues = append(issues, fmt.Sprintf("loadPatterns[%d]: type is required", idx))
			continue
		}
		switch LoadPatternType(strings.ToLower(typeLabel)) {
		case LoadPatternTypeRamp:
			if pattern.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("loadPatterns[%d]: duration must be > 0 for ramp", idx))
			}
			if pattern.FromRate < 0 || pattern.ToRate < 0 {
				issues = append(issues, fmt.Sprintf("loadPatterns[%d]: from_rate and to_rate must be >= 0", idx))
			}
		case LoadPatternTypeStep:
			if len(pattern.Steps) == 0 {
				issues = append(issues, fmt.Sprintf("loadPatterns[%d]: steps are required for step pattern", idx))
			}
			for stepIdx, step := range pattern.Steps {
				if step.Rate < 0 {
					issues = append(issues, fmt.Sprintf("loadPatterns[%d].steps[%d]: rate must be >= 0", idx, stepIdx))
				}
				if step.Duration <= 0 {
					issues = append(issues, fmt.Sprintf("loadPatterns[%d].steps[%d]: duration must be > 0", idx, stepIdx))
				}
			}
		case LoadPatternTypeSpike:
			if pattern.Rate <= 0 {
				issues = append(issues, fmt.Sprintf("loadPatterns[%d]: rate must be > 0 for spike", idx))
			}
			if pattern.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("loadPatterns[%d]: duration must be > 0 for spike", idx))
			}
		default:
			issues = append(issues, fmt.Sprintf("loadPatterns[%d]: unsupported type %q", idx, pattern.Type))
		}
	}
	return issues
}
