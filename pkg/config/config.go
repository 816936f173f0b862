package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gridmesh/gridmesh/pkg/scorer"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts "30s"-style strings
type Duration time.Duration

// D returns the underlying duration
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalYAML encodes the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML parses "1s" / "2m30s" style strings
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the coordinator configuration
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Retry     RetryConfig     `yaml:"retry"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Scoring   scorer.Weights  `yaml:"scoring"`
}

// LogConfig controls log output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// APIConfig controls the control API server
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// SchedulerConfig tunes the assignment loop
type SchedulerConfig struct {
	TickInterval         Duration `yaml:"tick_interval"`
	MaxConcurrentPerNode int      `yaml:"max_concurrent_per_node"`
	SendTimeout          Duration `yaml:"send_timeout"`
}

// HeartbeatConfig tunes node liveness detection
type HeartbeatConfig struct {
	CheckInterval Duration `yaml:"check_interval"`
	Timeout       Duration `yaml:"timeout"`
}

// RetryConfig tunes failure handling
type RetryConfig struct {
	Backoff Duration `yaml:"backoff"`
}

// JobsConfig tunes job-level derivation
type JobsConfig struct {
	FailureThreshold float64 `yaml:"failure_threshold"`
}

// MetricsConfig tunes the metrics rollup
type MetricsConfig struct {
	CollectInterval  Duration `yaml:"collect_interval"`
	ThroughputWindow Duration `yaml:"throughput_window"`
}

// Default returns the documented default configuration
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Log:     LogConfig{Level: "info"},
		API:     APIConfig{ListenAddr: ":9400"},
		Scheduler: SchedulerConfig{
			TickInterval:         Duration(1 * time.Second),
			MaxConcurrentPerNode: 10,
			SendTimeout:          Duration(10 * time.Second),
		},
		Heartbeat: HeartbeatConfig{
			CheckInterval: Duration(30 * time.Second),
			Timeout:       Duration(120 * time.Second),
		},
		Retry: RetryConfig{Backoff: 0},
		Jobs:  JobsConfig{FailureThreshold: 0.5},
		Metrics: MetricsConfig{
			CollectInterval:  Duration(15 * time.Second),
			ThroughputWindow: Duration(1 * time.Minute),
		},
		Scoring: scorer.DefaultWeights(),
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
