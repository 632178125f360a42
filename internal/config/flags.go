package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vegasload",
		Short:         "Drive the Vegas slots scenario against a casino web app",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("server-host", "", "Casino web app host (default localhost)")
	flags.String("test-run-id", "", "Test run identifier sent in x-dynatrace-test (generated when empty)")
	flags.String("scheme", DefaultScheme, "URL scheme for the casino web app (http or https)")
	flags.Int("port", DefaultPort, "Port of the casino web app")
	flags.String("script-name", DefaultScriptName, "Script name reported in x-dynatrace-test")
	flags.String("user-agent", DefaultUserAgent, "User-Agent header sent with every request")

	// Load control flags
	flags.IntP("vusers", "u", 1, "Number of virtual users")
	flags.IntP("iterations", "i", 0, "Total scenario iterations across all virtual users (0 means unlimited)")
	flags.IntP("rate", "r", 0, "Iterations started per second (0 means unlimited)")
	flags.DurationP("duration", "d", 0, "How long to run the test (e.g. 30s, 1m)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Int("retries", 0, "Number of retries per failed iteration")
	flags.Duration("think-time", DefaultThinkTime, "Length of one think-time unit; pages wait 2-3 units, spins 1-5")
	flags.Int("max-connections", DefaultMaxConnections, "Maximum connections per host for each virtual user")
	flags.Int64("seed", 0, "Seed for per-user randomness (0 uses the clock)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing iterations (uniform or poisson)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("log-errors", false, "Log each failed iteration to stderr")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, off)")
	flags.Bool("log-json", false, "Emit structured JSON logs")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'Slot_Spin:p95 < 500')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol (grpc or http)")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of iterations to trace (0.0 to 1.0)")
	flags.Bool("tracing-insecure", false, "Use a plaintext connection to the collector")
	flags.Bool("tracing-propagate", false, "Inject W3C traceparent into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\nUsage: %s\n\nFlags:\n", cmd.Short, cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the environment and config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"server-host", &cfg.ServerHost},
		{"test-run-id", &cfg.TestRunID},
		{"scheme", &cfg.Scheme},
		{"script-name", &cfg.ScriptName},
		{"user-agent", &cfg.UserAgent},
		{"log-level", &cfg.LogLevel},
		{"metrics-addr", &cfg.MetricsAddr},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range strs {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"port", &cfg.Port},
		{"vusers", &cfg.VUsers},
		{"iterations", &cfg.Iterations},
		{"rate", &cfg.Rate},
		{"retries", &cfg.Retries},
		{"max-connections", &cfg.MaxConnections},
	}
	for _, f := range ints {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("think-time") {
		val, err := fs.GetDuration("think-time")
		if err != nil {
			return err
		}
		cfg.ThinkTime = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"json-output", &cfg.JSONOutput},
		{"log-errors", &cfg.LogErrors},
		{"log-json", &cfg.LogJSON},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, f := range bools {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	return nil
}
