package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads, e.g.
// VEGASLOAD_SERVER_HOST or VEGASLOAD_TRACING_ENDPOINT.
const EnvPrefix = "VEGASLOAD"

// envKeys are the settings that can be supplied through the environment.
var envKeys = []string{
	"server_host",
	"test_run_id",
	"scheme",
	"port",
	"script_name",
	"vusers",
	"iterations",
	"rate",
	"duration",
	"timeout",
	"retries",
	"think_time",
	"user_agent",
	"max_connections",
	"seed",
	"log_level",
	"log_json",
	"metrics_addr",
	"tracing.endpoint",
	"tracing.protocol",
	"tracing.service_name",
	"tracing.sample_rate",
	"tracing.insecure",
	"tracing.propagate",
}

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, the environment and configuration
// files to produce a Config. Flags override the environment, which
// overrides the config file.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	cfgViper.SetEnvPrefix(EnvPrefix)
	cfgViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range envKeys {
		if err := cfgViper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ServerHost:     DefaultServerHost,
		Scheme:         DefaultScheme,
		Port:           DefaultPort,
		ScriptName:     DefaultScriptName,
		VUsers:         1,
		Timeout:        DefaultTimeout,
		ThinkTime:      DefaultThinkTime,
		UserAgent:      DefaultUserAgent,
		MaxConnections: DefaultMaxConnections,
		LogLevel:       "info",
		ConfigFile:     configPath,
		Arrival:        ArrivalConfig{Model: ArrivalModelUniform},
		Tracing:        TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.ServerHost = strings.TrimSpace(cfg.ServerHost)
	cfg.TestRunID = strings.TrimSpace(cfg.TestRunID)
	cfg.Scheme = strings.ToLower(strings.TrimSpace(cfg.Scheme))

	return cfg, nil
}

// applyConfigSettings applies settings from a config file or the
// environment to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringFields := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.ServerHost, []string{"serverhost", "server_host", "server-host"}},
		{&cfg.TestRunID, []string{"testrunid", "test_run_id", "test-run-id"}},
		{&cfg.Scheme, []string{"scheme"}},
		{&cfg.ScriptName, []string{"scriptname", "script_name", "script-name"}},
		{&cfg.UserAgent, []string{"useragent", "user_agent", "user-agent"}},
		{&cfg.LogLevel, []string{"loglevel", "log_level", "log-level"}},
		{&cfg.MetricsAddr, []string{"metricsaddr", "metrics_addr", "metrics-addr"}},
	}
	for _, f := range stringFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			if val = strings.TrimSpace(val); val != "" {
				*f.dst = val
			}
		}
	}

	intFields := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.Port, []string{"port"}},
		{&cfg.VUsers, []string{"vusers", "virtual_users", "virtual-users"}},
		{&cfg.Iterations, []string{"iterations"}},
		{&cfg.Rate, []string{"rate"}},
		{&cfg.Retries, []string{"retries"}},
		{&cfg.MaxConnections, []string{"maxconnections", "max_connections", "max-connections"}},
	}
	for _, f := range intFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	durationFields := []struct {
		dst  *time.Duration
		keys []string
	}{
		{&cfg.Duration, []string{"duration"}},
		{&cfg.Timeout, []string{"timeout"}},
		{&cfg.ThinkTime, []string{"thinktime", "think_time", "think-time"}},
	}
	for _, f := range durationFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = dur
		}
	}

	boolFields := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.JSONOutput, []string{"jsonoutput", "json_output", "json-output"}},
		{&cfg.LogErrors, []string{"logerrors", "log_errors", "log-errors"}},
		{&cfg.LogJSON, []string{"logjson", "log_json", "log-json"}},
	}
	for _, f := range boolFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "loadpatterns", "load_patterns", "load-patterns"); ok {
		patterns, err := parseLoadPatterns(raw)
		if err != nil {
			return fmt.Errorf("loadPatterns: %w", err)
		}
		cfg.LoadPatterns = patterns
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(tc *TracingConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	stringFields := []struct {
		dst  *string
		keys []string
	}{
		{&tc.Endpoint, []string{"endpoint"}},
		{&tc.Protocol, []string{"protocol"}},
		{&tc.ServiceName, []string{"servicename", "service_name", "service-name"}},
	}
	for _, f := range stringFields {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			if val = strings.TrimSpace(val); val != "" {
				*f.dst = val
			}
		}
	}
	tc.Protocol = strings.ToLower(tc.Protocol)
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return nil
}

func parseLoadPatterns(value interface{}) ([]LoadPattern, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	patterns := make([]LoadPattern, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		pattern, err := buildLoadPattern(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func buildLoadPattern(settings map[string]interface{}) (LoadPattern, error) {
	var pattern LoadPattern
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("name: %w", err)
		}
		pattern.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("type: %w", err)
		}
		pattern.Type = LoadPatternType(strings.ToLower(strings.TrimSpace(val)))
	}
	rates := []struct {
		dst  *int
		keys []string
	}{
		{&pattern.FromRate, []string{"fromrate", "from_rate", "from-rate"}},
		{&pattern.ToRate, []string{"torate", "to_rate", "to-rate"}},
		{&pattern.Rate, []string{"rate"}},
	}
	for _, r := range rates {
		if raw, ok := lookupSetting(settings, r.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return LoadPattern{}, fmt.Errorf("%s: %w", r.keys[0], err)
			}
			*r.dst = val
		}
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("duration: %w", err)
		}
		pattern.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "steps"); ok {
		steps, err := parseLoadSteps(raw)
		if err != nil {
			return LoadPattern{}, fmt.Errorf("steps: %w", err)
		}
		pattern.Steps = steps
	}
	return pattern, nil
}

func parseLoadSteps(value interface{}) ([]LoadStep, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	steps := make([]LoadStep, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var step LoadStep
		if raw, ok := lookupSetting(entry, "rate"); ok {
			val, err := asInt(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d rate: %w", idx, err)
			}
			step.Rate = val
		}
		if raw, ok := lookupSetting(entry, "duration"); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d duration: %w", idx, err)
			}
			step.Duration = dur
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("model: %w", err)
			}
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}
