// Package config provides configuration parsing for the predictor.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. The Config struct contains all runtime
// configuration for the predictor including:
//   - Listeners (HTTP and gRPC addresses, CORS origins)
//   - Artifact source (storage backend, directory or redis connection, bundle name)
//   - Prediction policy (pass threshold, per-path confidence, optional YAML policy file)
//   - Request interpretation (zero-as-absent, clamping of stage outputs)
//   - Logging configuration (level, format)
//   - TLS configuration for the listeners and for remote scoring services
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables (a .env file in the working directory is loaded first)
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	pol, err := cfg.Policy()
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/HatiCode/gradecast/pkg/policy"
	"github.com/HatiCode/gradecast/pkg/storage"
	"github.com/HatiCode/gradecast/pkg/tls"
)

// Storage backends understood by the predictor.
const (
	StorageFile  = "file"
	StorageRedis = "redis"
)

// Config holds all predictor configuration.
type Config struct {
	Listen      string
	GRPCListen  string
	CORSOrigins string
	LogFormat   string
	LogLevel    string

	Storage       string
	ArtifactDir   string
	Bundle        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PassThreshold float64
	ConfidenceQ1  int
	ConfidenceQ2  int
	ConfidenceQ3  int
	ConfidenceQ4  int
	PolicyFile    string

	ZeroIsAbsent     bool
	ClampPredictions bool

	RemoteTimeout time.Duration

	TLS       tls.Config
	RemoteTLS tls.Config
}

// ParseFlags parses command-line flags and environment variables into a Config.
// It exits the process on invalid configuration.
func ParseFlags() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Parse registers the predictor flags on fs, parses args and validates the result.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	def := policy.Default()

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":5000"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":50051"), "gRPC listen address (empty disables gRPC)")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", getEnv("CORS_ORIGINS", "*"), "Comma-separated allowed CORS origins")

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", StorageFile), "Artifact storage backend: file or redis")
	fs.StringVar(&cfg.ArtifactDir, "artifact-dir", getEnv("ARTIFACT_DIR", "artifacts"), "Directory holding artifact bundles (storage=file)")
	fs.StringVar(&cfg.Bundle, "bundle", getEnv("BUNDLE", "default"), "Artifact bundle name")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")

	fs.Float64Var(&cfg.PassThreshold, "pass-threshold", getEnvFloat("PASS_THRESHOLD", def.PassThreshold), "Normalized final grade at or above which a student passes")
	fs.IntVar(&cfg.ConfidenceQ1, "confidence-q1", getEnvInt("CONFIDENCE_Q1", def.Confidence.Q1), "Confidence reported for quarter 1 predictions")
	fs.IntVar(&cfg.ConfidenceQ2, "confidence-q2", getEnvInt("CONFIDENCE_Q2", def.Confidence.Q2), "Confidence reported for quarter 2 predictions")
	fs.IntVar(&cfg.ConfidenceQ3, "confidence-q3", getEnvInt("CONFIDENCE_Q3", def.Confidence.Q3), "Confidence reported for quarter 3 predictions")
	fs.IntVar(&cfg.ConfidenceQ4, "confidence-q4", getEnvInt("CONFIDENCE_Q4", def.Confidence.Q4), "Confidence reported when all grades are known")
	fs.StringVar(&cfg.PolicyFile, "policy-file", getEnv("POLICY_FILE", ""), "YAML policy file overriding threshold and confidence flags")

	fs.BoolVar(&cfg.ZeroIsAbsent, "zero-is-absent", getEnvBool("ZERO_IS_ABSENT", true), "Treat a supplied 0 grade as not supplied")
	fs.BoolVar(&cfg.ClampPredictions, "clamp-predictions", getEnvBool("CLAMP_PREDICTIONS", true), "Clamp every stage output to [0,1]")

	fs.DurationVar(&cfg.RemoteTimeout, "remote-timeout", getEnvDuration("REMOTE_TIMEOUT", 5*time.Second), "Timeout for remote stage scoring calls")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mTLS for the HTTP and gRPC listeners")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	fs.BoolVar(&cfg.RemoteTLS.Enabled, "remote-tls-enabled", getEnvBool("REMOTE_TLS_ENABLED", false), "Use mTLS when calling remote scoring services")
	fs.StringVar(&cfg.RemoteTLS.CertFile, "remote-tls-cert-file", getEnv("REMOTE_TLS_CERT_FILE", ""), "Client certificate for remote scoring services")
	fs.StringVar(&cfg.RemoteTLS.KeyFile, "remote-tls-key-file", getEnv("REMOTE_TLS_KEY_FILE", ""), "Client private key for remote scoring services")
	fs.StringVar(&cfg.RemoteTLS.CAFile, "remote-tls-ca-file", getEnv("REMOTE_TLS_CA_FILE", ""), "CA bundle for remote scoring services")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects impossible combinations.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address cannot be empty"))
	}

	switch c.Storage {
	case StorageFile:
		if c.ArtifactDir == "" {
			errs = append(errs, errors.New("artifact-dir is required when storage=file"))
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis-addr is required when storage=redis"))
		}
		if c.RedisDB < 0 {
			errs = append(errs, errors.New("redis-db must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage %q (must be file or redis)", c.Storage))
	}

	if err := storage.ValidateName(c.Bundle); err != nil {
		errs = append(errs, err)
	}

	if err := c.flagPolicy().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.RemoteTimeout <= 0 {
		errs = append(errs, errors.New("remote-timeout must be > 0"))
	}

	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls: %w", err))
	}
	if err := c.RemoteTLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("remote tls: %w", err))
	}

	return errors.Join(errs...)
}

func (c *Config) flagPolicy() policy.Policy {
	return policy.Policy{
		PassThreshold: c.PassThreshold,
		Confidence: policy.Confidence{
			Q1: c.ConfidenceQ1,
			Q2: c.ConfidenceQ2,
			Q3: c.ConfidenceQ3,
			Q4: c.ConfidenceQ4,
		},
	}
}

// Policy returns the effective policy: the flag values, overridden by the
// policy file when one is configured.
func (c *Config) Policy() (policy.Policy, error) {
	p := c.flagPolicy()
	if c.PolicyFile == "" {
		return p, p.Validate()
	}
	return policy.LoadFile(c.PolicyFile, p)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
