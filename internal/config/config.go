package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingKeys is returned by Validate when required values are absent.
var ErrMissingKeys = errors.New("required keys are not present")

// Config is the job's configuration model: per-run parameters from the
// params file plus runtime settings resolved from the environment.
type Config struct {
	Params   JobParams     `yaml:"params"`
	Runtime  RuntimeConfig `yaml:"runtime"`
	Storage  StorageConfig `yaml:"storage"`
	Fetch    FetchConfig   `yaml:"fetch"`
	Ledger   LedgerConfig  `yaml:"ledger"`
	Notify   NotifyConfig  `yaml:"notify"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"logLevel"`
}

// JobParams are the per-run inputs handed over by the invoking system.
// Keys keep the upstream names.
type JobParams struct {
	TalkwalkerOutput string `yaml:"talkwalker_output" json:"talkwalker_output"`
	OutputTemplate   string `yaml:"output_template" json:"output_template"`
	XComTemplate     string `yaml:"xcom_template" json:"xcom_template"`
	QueryHash        string `yaml:"query_hash" json:"query_hash"`
	ProjectID        string `yaml:"project_id" json:"project_id"`
	TopicID          string `yaml:"topic_id" json:"topic_id"`
	FromDate         string `yaml:"from_date" json:"from_date"`
	ToDate           string `yaml:"to_date" json:"to_date"`
	ProjectName      string `yaml:"project_name" json:"project_name"`
	TopicName        string `yaml:"topic_name" json:"topic_name"`
	SourceFormat     string `yaml:"source_format" json:"source_format"`
	SolutionName     string `yaml:"solution_name" json:"solution_name"`
	// VendorName is accepted for compatibility; the descriptor always
	// carries the application name.
	VendorName string `yaml:"vendor_name,omitempty" json:"vendor_name,omitempty"`
}

// RuntimeConfig holds values from the environment (secrets and deployment config).
type RuntimeConfig struct {
	// Bearer token for the X API. If empty, read from env TWITTER_TOKEN
	TwitterToken string `yaml:"-"`
	// Destination bucket. If empty, read from env BUCKET_LOCATION
	BucketLocation string `yaml:"bucketLocation"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"` // "s3" or "minio"
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	UseSSL    bool   `yaml:"useSSL"`
}

type FetchConfig struct {
	// Concurrent per-user fetches; 1 keeps the run strictly sequential.
	Concurrency int `yaml:"concurrency"`
	// Upper bound on timeline pages requested per user.
	MaxPages int `yaml:"maxPages"`
}

type LedgerConfig struct {
	Path string `yaml:"path"` // empty disables the run ledger
}

type NotifyConfig struct {
	AMQPURL string `yaml:"-"`
	Queue   string `yaml:"queue"`
}

type MetricsConfig struct {
	Addr           string `yaml:"addr"`
	PushgatewayURL string `yaml:"pushgatewayURL"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Storage:  StorageConfig{Backend: "s3", UseSSL: true},
		Fetch:    FetchConfig{Concurrency: 1, MaxPages: 32},
		Notify:   NotifyConfig{Queue: "socialfeed.results"},
		LogLevel: "info",
	}
}

// Sample returns a params file skeleton for `socialfeed init`.
func Sample() Config {
	cfg := Default()
	cfg.Params = JobParams{
		TalkwalkerOutput: "s3://bucket/raw/talkwalker/2024-01-01_2024-01-31/file_0.jsonl",
		OutputTemplate:   "raw/{}/hash/2024-01-01_2024-01-31/file_0.jsonl",
		XComTemplate:     "xcom/{}/hash/return.json",
		QueryHash:        "hash",
		ProjectID:        "1",
		TopicID:          "1",
		FromDate:         "2024-01-01",
		ToDate:           "2024-01-31",
		ProjectName:      "project",
		TopicName:        "topic",
		SourceFormat:     "jsonl",
		SolutionName:     "solution",
	}
	return cfg
}

// LoadDotEnv loads a .env file into the process environment if present.
// Variables already set are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Runtime.TwitterToken == "" {
		c.Runtime.TwitterToken = os.Getenv("TWITTER_TOKEN")
	}
	if c.Runtime.BucketLocation == "" {
		c.Runtime.BucketLocation = os.Getenv("BUCKET_LOCATION")
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.Region = v
	}
	if c.Storage.AccessKey == "" {
		c.Storage.AccessKey = os.Getenv("S3_ACCESS_KEY")
	}
	if c.Storage.SecretKey == "" {
		c.Storage.SecretKey = os.Getenv("S3_SECRET_KEY")
	}
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.UseSSL = b
		}
	}
	c.Fetch.Concurrency = getEnvInt("FETCH_CONCURRENCY", c.Fetch.Concurrency)
	c.Fetch.MaxPages = getEnvInt("X_API_MAX_PAGES", c.Fetch.MaxPages)
	if v := os.Getenv("LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if c.Notify.AMQPURL == "" {
		c.Notify.AMQPURL = os.Getenv("RABBITMQ_URL")
	}
	if v := os.Getenv("NOTIFY_QUEUE"); v != "" {
		c.Notify.Queue = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate reports every missing job parameter and environment value at once.
func (c Config) Validate() error {
	var missing []string
	p := c.Params
	for _, kv := range []struct{ key, val string }{
		{"talkwalker_output", p.TalkwalkerOutput},
		{"output_template", p.OutputTemplate},
		{"xcom_template", p.XComTemplate},
		{"query_hash", p.QueryHash},
		{"project_id", p.ProjectID},
		{"topic_id", p.TopicID},
		{"from_date", p.FromDate},
		{"to_date", p.ToDate},
		{"project_name", p.ProjectName},
		{"topic_name", p.TopicName},
		{"source_format", p.SourceFormat},
		{"solution_name", p.SolutionName},
		{"TWITTER_TOKEN", c.Runtime.TwitterToken},
		{"BUCKET_LOCATION", c.Runtime.BucketLocation},
	} {
		if strings.TrimSpace(kv.val) == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}
	switch c.Storage.Backend {
	case "s3", "minio":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// Load reads a YAML params file from path. A file holding only the job
// parameters at top level is accepted as well.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Params == (JobParams{}) {
		var flat JobParams
		if err := yaml.Unmarshal(b, &flat); err != nil {
			return cfg, err
		}
		cfg.Params = flat
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
