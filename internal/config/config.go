package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// OMAFGEN_PIPELINE_THREADS=16.
const EnvPrefix = "OMAFGEN"

type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type PipelineConfig struct {
	Steps             string `mapstructure:"steps"` // "3" or "3-5"
	Input             string `mapstructure:"input"` // depends on the first step
	OutputDir         string `mapstructure:"output_dir"`
	FilePrefix        string `mapstructure:"file_prefix"` // guessed from the input when step 1 runs
	InputBitDepth     int    `mapstructure:"input_bit_depth"`
	InputChromaFormat int    `mapstructure:"input_chroma_format"` // chroma format idc, e.g. 420
	SourceWidth       int    `mapstructure:"source_width"`
	SourceHeight      int    `mapstructure:"source_height"`
	Frames            int    `mapstructure:"frames"` // -1 = all
	FrameRate         int    `mapstructure:"frame_rate"`
	QPs               []int  `mapstructure:"qp"`
	HMConfig          string `mapstructure:"hm_config"`
	Threads           int    `mapstructure:"threads"`
	GuardBandSize     int    `mapstructure:"guard_band_size"`
	GuardBandMode     string `mapstructure:"guard_band_mode"` // smear or mirror
	Encoder           string `mapstructure:"encoder"`         // hm or hhi
}

type ToolsConfig struct {
	BinDir      string        `mapstructure:"bin_dir"` // defaults to ./bin/<os>
	FFmpeg      string        `mapstructure:"ffmpeg"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
	Preflight   bool          `mapstructure:"preflight"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // serve the status server while running
	Path     string `mapstructure:"path"`
	Port     int    `mapstructure:"port"`
	Textfile string `mapstructure:"textfile"` // node exporter textfile written at exit
}

// Encoder backends.
const (
	EncoderHM  = "hm"
	EncoderHHI = "hhi"
)

// Load reads the configuration from configPath (optional), the environment and
// the command line flags in fs (optional), in increasing priority.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadLogging returns the logging section from defaults and the environment
// only, for helper commands that take no pipeline options.
func LoadLogging() (*LoggingConfig, error) {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	return &cfg.Logging, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"steps":               "pipeline.steps",
	"input":               "pipeline.input",
	"output-dir":          "pipeline.output_dir",
	"file-prefix":         "pipeline.file_prefix",
	"input-bit-depth":     "pipeline.input_bit_depth",
	"input-chroma-format": "pipeline.input_chroma_format",
	"source-width":        "pipeline.source_width",
	"source-height":       "pipeline.source_height",
	"frames":              "pipeline.frames",
	"frame-rate":          "pipeline.frame_rate",
	"qp":                  "pipeline.qp",
	"hm-config":           "pipeline.hm_config",
	"threads":             "pipeline.threads",
	"guard-band-size":     "pipeline.guard_band_size",
	"guard-band-mode":     "pipeline.guard_band_mode",
	"encoder":             "pipeline.encoder",
	"bin-dir":             "tools.bin_dir",
	"ffmpeg":              "tools.ffmpeg",
	"log-level":           "logging.level",
	"log-format":          "logging.format",
	"log-output":          "logging.output",
	"metrics":             "metrics.enabled",
	"metrics-port":        "metrics.port",
	"metrics-textfile":    "metrics.textfile",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.steps", "")
	v.SetDefault("pipeline.input", "")
	v.SetDefault("pipeline.output_dir", "out")
	v.SetDefault("pipeline.file_prefix", "")
	v.SetDefault("pipeline.input_bit_depth", 8)
	v.SetDefault("pipeline.input_chroma_format", 420)
	v.SetDefault("pipeline.source_width", 8192)
	v.SetDefault("pipeline.source_height", 4096)
	v.SetDefault("pipeline.frames", -1)
	v.SetDefault("pipeline.frame_rate", 30)
	v.SetDefault("pipeline.qp", []int{32})
	v.SetDefault("pipeline.hm_config", "")
	v.SetDefault("pipeline.threads", 4)
	v.SetDefault("pipeline.guard_band_size", 0)
	v.SetDefault("pipeline.guard_band_mode", "smear")
	v.SetDefault("pipeline.encoder", EncoderHM)

	// Tools defaults
	v.SetDefault("tools.bin_dir", "")
	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.stop_timeout", "5s")
	v.SetDefault("tools.preflight", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.textfile", "")
}
