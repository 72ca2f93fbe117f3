package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Transform TransformConfig `yaml:"transform" mapstructure:"transform"`
	Warehouse WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Alerts    AlertsConfig    `yaml:"alerts" mapstructure:"alerts"`
	Acquire   AcquireConfig   `yaml:"acquire" mapstructure:"acquire"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates every file the pipeline reads or writes.
type PathsConfig struct {
	RawDir             string `yaml:"raw_dir" mapstructure:"raw_dir"`
	FeatureFile        string `yaml:"feature_file" mapstructure:"feature_file"`
	SurveyFile         string `yaml:"survey_file" mapstructure:"survey_file"`
	ProcessedDir       string `yaml:"processed_dir" mapstructure:"processed_dir"`
	FeatureAggregate   string `yaml:"feature_aggregate" mapstructure:"feature_aggregate"`
	IndicatorAggregate string `yaml:"indicator_aggregate" mapstructure:"indicator_aggregate"`
	Warehouse          string `yaml:"warehouse" mapstructure:"warehouse"`
	LogDir             string `yaml:"log_dir" mapstructure:"log_dir"`
	Manifest           string `yaml:"manifest" mapstructure:"manifest"`
	RunHistory         string `yaml:"run_history" mapstructure:"run_history"`
}

// FeaturePath is the raw feature table path.
func (p PathsConfig) FeaturePath() string { return filepath.Join(p.RawDir, p.FeatureFile) }

// SurveyPath is the raw survey table path.
func (p PathsConfig) SurveyPath() string { return filepath.Join(p.RawDir, p.SurveyFile) }

// FeatureAggregatePath is the processed per-genre feature table path.
func (p PathsConfig) FeatureAggregatePath() string {
	return filepath.Join(p.ProcessedDir, p.FeatureAggregate)
}

// IndicatorAggregatePath is the processed per-genre indicator table path.
func (p PathsConfig) IndicatorAggregatePath() string {
	return filepath.Join(p.ProcessedDir, p.IndicatorAggregate)
}

// StageLog returns the log file for a pipeline stage.
func (p PathsConfig) StageLog(stage string) string {
	return filepath.Join(p.LogDir, stage+".log")
}

// TransformConfig holds the cleaning rules.
type TransformConfig struct {
	CategoryColumn string            `yaml:"category_column" mapstructure:"category_column"`
	Synonyms       map[string]string `yaml:"synonyms" mapstructure:"synonyms"`
	Ranges         []RangeConfig     `yaml:"ranges" mapstructure:"ranges"`
	Feature        RoleConfig        `yaml:"feature" mapstructure:"feature"`
	Survey         RoleConfig        `yaml:"survey" mapstructure:"survey"`
}

// RangeConfig declares the inclusive valid range of a numeric column.
// Ranges are a list because viper lower-cases map keys and column names are
// case-sensitive.
type RangeConfig struct {
	Column string  `yaml:"column" mapstructure:"column"`
	Min    float64 `yaml:"min" mapstructure:"min"`
	Max    float64 `yaml:"max" mapstructure:"max"`
}

// RoleConfig names the columns of one raw table.
type RoleConfig struct {
	LabelColumn       string   `yaml:"label_column" mapstructure:"label_column"`
	IdentifierColumns []string `yaml:"identifier_columns" mapstructure:"identifier_columns"`
	NumericColumns    []string `yaml:"numeric_columns" mapstructure:"numeric_columns"`
}

// WarehouseConfig selects the warehouse backend.
type WarehouseConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	Binary      string        `yaml:"binary" mapstructure:"binary"`
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
	LockFile    string        `yaml:"lock_file" mapstructure:"lock_file"`
}

// AlertsConfig configures where step failure alerts go.
type AlertsConfig struct {
	LogFile    string `yaml:"log_file" mapstructure:"log_file"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	// FailureStreak is how many consecutive failed runs mark the pipeline
	// unhealthy.
	FailureStreak int `yaml:"failure_streak" mapstructure:"failure_streak"`
}

// AcquireConfig lists the remote sources for the raw directory.
type AcquireConfig struct {
	Sources     []string      `yaml:"sources" mapstructure:"sources"`
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	// Output is "stderr" or "none". Stage subprocesses run with "none" so
	// their stderr carries only the failure message.
	Output string `yaml:"output" mapstructure:"output"`
}

// Load reads configuration from .env, musicdw.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("musicdw")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MUSICDW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.raw_dir", filepath.Join("data", "raw"))
	v.SetDefault("paths.feature_file", "dataset.csv")
	v.SetDefault("paths.survey_file", "mxmh_survey_results.csv")
	v.SetDefault("paths.processed_dir", filepath.Join("data", "processed"))
	v.SetDefault("paths.feature_aggregate", "music_features_by_genre.csv")
	v.SetDefault("paths.indicator_aggregate", "mental_health_by_genre.csv")
	v.SetDefault("paths.warehouse", filepath.Join("data", "warehouse", "music_dw.sqlite"))
	v.SetDefault("paths.log_dir", "logs")
	v.SetDefault("paths.manifest", "manifest.yaml")
	v.SetDefault("paths.run_history", filepath.Join("logs", "runs.sqlite"))
	v.SetDefault("transform.category_column", "genre")
	v.SetDefault("transform.synonyms", map[string]string{
		"hip hop":    "hip-hop",
		"hiphop":     "hip-hop",
		"hip-hop":    "hip-hop",
		"r&b":        "rnb",
		"rnb":        "rnb",
		"electronic": "edm",
		"edm":        "edm",
	})
	v.SetDefault("transform.ranges", []map[string]any{
		{"column": "Age", "min": 0, "max": 120},
		{"column": "Hours per day", "min": 0, "max": 24},
		{"column": "Anxiety", "min": 0, "max": 10},
		{"column": "Depression", "min": 0, "max": 10},
		{"column": "Insomnia", "min": 0, "max": 10},
		{"column": "OCD", "min": 0, "max": 10},
	})
	v.SetDefault("transform.feature.label_column", "label")
	v.SetDefault("transform.feature.identifier_columns", []string{"filename"})
	v.SetDefault("transform.survey.label_column", "Fav genre")
	v.SetDefault("transform.survey.numeric_columns", []string{"Age", "Hours per day", "Anxiety", "Depression", "Insomnia", "OCD"})
	v.SetDefault("warehouse.driver", "sqlite")
	v.SetDefault("pipeline.binary", "")
	v.SetDefault("pipeline.step_timeout", 0)
	v.SetDefault("pipeline.lock_file", filepath.Join("logs", "pipeline.lock"))
	v.SetDefault("alerts.log_file", filepath.Join("logs", "alerts.log"))
	v.SetDefault("alerts.failure_streak", 3)
	v.SetDefault("acquire.user_agent", "musicdw/1.0")
	v.SetDefault("acquire.timeout", 20*time.Second)
	v.SetDefault("acquire.max_attempts", 3)
	v.SetDefault("acquire.sources", []string{})
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("warehouse.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	if cfg.Output == "none" {
		if _, err := zapcore.ParseLevel(cfg.Level); err != nil {
			return eris.Wrap(err, "config: parse log level")
		}
		zap.ReplaceGlobals(zap.NewNop())
		return nil
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
