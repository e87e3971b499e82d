package config

import (
	"fmt"
	"slices"
)

// Tile sizes bound the guard band: a band takes both sides of the smallest tile.
const minTileSize = 384

func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

func (p *PipelineConfig) Validate() error {
	if p.Steps == "" {
		return fmt.Errorf("steps are required")
	}

	if p.Input == "" {
		return fmt.Errorf("input is required")
	}

	if p.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if p.InputBitDepth <= 0 || p.InputBitDepth > 16 {
		return fmt.Errorf("invalid input bit depth: %d", p.InputBitDepth)
	}

	switch p.InputChromaFormat {
	case 400, 420, 422, 444:
	default:
		return fmt.Errorf("invalid input chroma format: %d", p.InputChromaFormat)
	}

	if p.SourceWidth <= 0 || p.SourceHeight <= 0 {
		return fmt.Errorf("invalid source size: %dx%d", p.SourceWidth, p.SourceHeight)
	}

	if p.Frames == 0 || p.Frames < -1 {
		return fmt.Errorf("frames must be positive or -1 for all frames")
	}

	if p.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive")
	}

	if len(p.QPs) == 0 {
		return fmt.Errorf("at least one QP is required")
	}
	for _, qp := range p.QPs {
		if qp < 0 || qp > 51 {
			return fmt.Errorf("invalid QP: %d", qp)
		}
	}

	if p.Threads <= 0 {
		return fmt.Errorf("threads must be positive")
	}

	if p.GuardBandSize < 0 || p.GuardBandSize*2 >= minTileSize {
		return fmt.Errorf("invalid guard band size: %d", p.GuardBandSize)
	}

	if p.GuardBandMode != "smear" && p.GuardBandMode != "mirror" {
		return fmt.Errorf("guard band mode must be 'smear' or 'mirror'")
	}

	if p.Encoder != EncoderHM && p.Encoder != EncoderHHI {
		return fmt.Errorf("encoder must be '%s' or '%s'", EncoderHM, EncoderHHI)
	}

	return nil
}

func (t *ToolsConfig) Validate() error {
	if t.FFmpeg == "" {
		return fmt.Errorf("ffmpeg binary cannot be empty")
	}

	if t.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive")
	}

	return nil
}

var logLevels = []string{"panic", "fatal", "error", "warn", "warning", "info", "debug", "trace"}

func (l *LoggingConfig) Validate() error {
	if !slices.Contains(logLevels, l.Level) {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be 'json' or 'text', got %q", l.Format)
	}

	switch {
	case l.Output == "", l.Output == "stdout", l.Output == "stderr":
		return nil
	case l.MaxSize <= 0:
		return fmt.Errorf("max_size must be positive for file output")
	case l.MaxBackups < 0, l.MaxAge < 0:
		return fmt.Errorf("max_backups and max_age cannot be negative")
	}
	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

// UsesHM reports whether the HM reference encoder is selected.
func (p *PipelineConfig) UsesHM() bool {
	return p.Encoder == EncoderHM
}
