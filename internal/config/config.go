package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-ingest/pkg/errors"
	"github.com/rxtech-lab/argo-ingest/pkg/utils"
)

// StorageFormat selects the artifact encoding for raw and processed bars.
type StorageFormat string

const (
	StorageFormatCSV     StorageFormat = "csv"
	StorageFormatParquet StorageFormat = "parquet"
	StorageFormatJSON    StorageFormat = "json"
)

// StatusBackend selects the status store realization.
type StatusBackend string

const (
	StatusBackendFile   StatusBackend = "file"
	StatusBackendDuckDB StatusBackend = "duckdb"
)

// Config is the application configuration read from config.yaml.
type Config struct {
	// Provider is the default provider used by requests that do not name one.
	Provider string        `yaml:"provider" validate:"required,oneof=ibkr polygon binance saxo"`
	IBKR     IBKRConfig    `yaml:"ibkr"`
	Polygon  PolygonConfig `yaml:"polygon"`
	Binance  BinanceConfig `yaml:"binance"`
	Saxo     SaxoConfig    `yaml:"saxo"`
	Paths    PathsConfig   `yaml:"paths"`
	Storage  StorageConfig `yaml:"storage"`
	Timing   TimingConfig  `yaml:"timing"`
	Log      LogConfig     `yaml:"log"`
}

// IBKRConfig points at a running Client Portal Gateway.
type IBKRConfig struct {
	BaseURL            string `yaml:"base_url" validate:"omitempty,url"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	OutsideRTH         bool   `yaml:"outside_rth"`
}

type PolygonConfig struct {
	APIKey string `yaml:"api_key"`
}

type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
}

// SaxoConfig holds the OpenAPI application credentials and endpoints.
type SaxoConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri" validate:"omitempty,url"`
	BaseURL      string `yaml:"base_url" validate:"omitempty,url"`
	AuthURL      string `yaml:"auth_url" validate:"omitempty,url"`
	TokenURL     string `yaml:"token_url" validate:"omitempty,url"`
	TokenFile    string `yaml:"token_file"`
	CallbackAddr string `yaml:"callback_addr"`
}

type PathsConfig struct {
	RawDataDir           string `yaml:"raw_data_dir" validate:"required"`
	ProcessedDataDir     string `yaml:"processed_data_dir" validate:"required"`
	DownloadRequestsFile string `yaml:"download_requests_file" validate:"required"`
	NormalizationFile    string `yaml:"normalization_file" validate:"required"`
	// StatusDB is only used by the duckdb status backend.
	StatusDB string `yaml:"status_db"`
}

type StorageConfig struct {
	Format        StorageFormat `yaml:"format" validate:"required,oneof=csv parquet json"`
	StatusBackend StatusBackend `yaml:"status_backend" validate:"required,oneof=file duckdb"`
}

// TimingConfig holds every duration of the service loop, in seconds.
type TimingConfig struct {
	ConnectionRetrySeconds int `yaml:"connection_retry_seconds" validate:"min=0"`
	DownloadCycleSeconds   int `yaml:"download_cycle_seconds" validate:"min=0"`
	RequestDelaySeconds    int `yaml:"request_delay_seconds" validate:"min=0"`
	ErrorRetrySeconds      int `yaml:"error_retry_seconds" validate:"min=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	return Config{
		Provider: "ibkr",
		IBKR: IBKRConfig{
			BaseURL:            "https://localhost:5000/v1/api",
			InsecureSkipVerify: true,
		},
		Saxo: SaxoConfig{
			RedirectURI:  "http://localhost:5000/callback",
			BaseURL:      "https://gateway.saxobank.com/sim/openapi",
			AuthURL:      "https://sim.logonvalidation.net/authorize",
			TokenURL:     "https://sim.logonvalidation.net/token",
			TokenFile:    "config/saxo_tokens.json",
			CallbackAddr: "localhost:5000",
		},
		Paths: PathsConfig{
			RawDataDir:           "data/raw",
			ProcessedDataDir:     "data/processed",
			DownloadRequestsFile: "config/download_requests.json",
			NormalizationFile:    "data/normalization.json",
			StatusDB:             "data/status.duckdb",
		},
		Storage: StorageConfig{
			Format:        StorageFormatCSV,
			StatusBackend: StatusBackendFile,
		},
		Timing: TimingConfig{
			ConnectionRetrySeconds: 30,
			DownloadCycleSeconds:   3600,
			RequestDelaySeconds:    10,
			ErrorRetrySeconds:      60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of Default, applies environment overrides
// (optionally sourced from a .env file next to the config) and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	return Parse(data)
}

// Parse decodes YAML config bytes, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"POLYGON_API_KEY", &c.Polygon.APIKey},
		{"BINANCE_API_KEY", &c.Binance.APIKey},
		{"BINANCE_SECRET_KEY", &c.Binance.SecretKey},
		{"SAXO_CLIENT_ID", &c.Saxo.ClientID},
		{"SAXO_CLIENT_SECRET", &c.Saxo.ClientSecret},
		{"IBKR_BASE_URL", &c.IBKR.BaseURL},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	switch c.Provider {
	case "polygon":
		if c.Polygon.APIKey == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration, "polygon.api_key is required when provider is polygon")
		}
	case "saxo":
		if c.Saxo.ClientID == "" || c.Saxo.ClientSecret == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration, "saxo.client_id and saxo.client_secret are required when provider is saxo")
		}
	}

	if c.Storage.StatusBackend == StatusBackendDuckDB && c.Paths.StatusDB == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "paths.status_db is required for the duckdb status backend")
	}

	return nil
}

// RequestDelay is the pacing delay charged after every attempted unit.
func (t TimingConfig) RequestDelay() time.Duration {
	return time.Duration(t.RequestDelaySeconds) * time.Second
}

func (t TimingConfig) ConnectionRetry() time.Duration {
	return time.Duration(t.ConnectionRetrySeconds) * time.Second
}

func (t TimingConfig) DownloadCycle() time.Duration {
	return time.Duration(t.DownloadCycleSeconds) * time.Second
}

func (t TimingConfig) ErrorRetry() time.Duration {
	return time.Duration(t.ErrorRetrySeconds) * time.Second
}

// String renders the config for diagnostics with secrets masked.
func (c Config) String() string {
	masked := c
	masked.Polygon.APIKey = mask(c.Polygon.APIKey)
	masked.Binance.SecretKey = mask(c.Binance.SecretKey)
	masked.Saxo.ClientSecret = mask(c.Saxo.ClientSecret)

	out, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}

	return string(out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}

	return "****"
}

// Schema returns the JSON schema of the YAML configuration file.
func Schema() (string, error) {
	return utils.GetSchemaFromConfig(&Config{}, "yaml")
}
