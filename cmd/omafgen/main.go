package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/zsiec/omafgen/internal/config"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/health"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/metrics"
	"github.com/zsiec/omafgen/internal/pipeline"
	"github.com/zsiec/omafgen/internal/runner"
	"github.com/zsiec/omafgen/internal/server"
	"github.com/zsiec/omafgen/pkg/version"
)

const usageHeader = `omafgen creates OMAF test vectors from an ERP projected yuv file in 5 steps:
  1 - projection conversion: ERP yuv to high res cube map yuv
  2 - scale down: high res cube map to low res cube map
  3 - tiling: crop both resolutions into 24 tiles each
  4 - encoding: encode every tile for every QP
  5 - packaging: create OMAF files and the MPD

Usage: omafgen -s STEPS -i INPUT [flags]
`

type options struct {
	configPath  string
	showVersion bool
	hhiEncoder  bool
}

func newFlagSet() (*pflag.FlagSet, *options) {
	opts := &options{}
	fs := pflag.NewFlagSet("omafgen", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringP("steps", "s", "", `steps to run, e.g. "3" or "1-5"`)
	fs.StringP("input", "i", "", "step 1: ERP yuv file, step 2: directory with the high res file, step 3: directory with the high and low res files, step 4: directory with the tiles, step 5: bitstream directory")
	fs.StringP("output-dir", "o", "out", "output directory")
	fs.StringP("file-prefix", "p", "", "sequence name, guessed from the input file when step 1 runs")
	fs.Int("input-bit-depth", 8, "bit depth of the ERP input")
	fs.Int("input-chroma-format", 420, "chroma format of the ERP input")
	fs.Int("source-width", 8192, "width of the ERP input")
	fs.Int("source-height", 4096, "height of the ERP input")
	fs.IntP("frames", "f", -1, "frames to encode, -1 for all")
	fs.Int("frame-rate", 30, "frame rate")
	fs.IntSliceP("qp", "q", []int{32}, "QPs to encode, e.g. 22,27,32")
	fs.StringP("hm-config", "c", "", "HM encoder configuration file")
	fs.IntP("threads", "t", 4, "parallel jobs in steps 3 and 4")
	fs.Int("guard-band-size", 0, "guard band in pixels around each tile")
	fs.String("guard-band-mode", "smear", "guard band fill: smear or mirror")
	fs.String("encoder", config.EncoderHM, "encoder backend: hm or hhi")
	fs.BoolVar(&opts.hhiEncoder, "hhienc", false, "use the HHI encoder (same as --encoder hhi)")
	fs.String("bin-dir", "", "directory of the external tools (default ./bin/<os>)")
	fs.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "text", "log format: text or json")
	fs.String("log-output", "stdout", "log output: stdout, stderr or a file")
	fs.Bool("metrics", false, "serve health, progress and metrics while running")
	fs.Int("metrics-port", 9090, "status server port")
	fs.String("metrics-textfile", "", "write the metrics to this file when the run ends")
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "show version information")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usageHeader)
		fs.PrintDefaults()
	}
	return fs, opts
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs, opts := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return apperrors.ExitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return apperrors.ExitUsage
	}

	if opts.showVersion {
		fmt.Println(version.GetInfo().String())
		return apperrors.ExitOK
	}

	if opts.hhiEncoder {
		if err := fs.Set("encoder", config.EncoderHHI); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return apperrors.ExitUsage
		}
	}

	cfg, err := config.Load(opts.configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		fs.Usage()
		return apperrors.ExitUsage
	}

	base, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return apperrors.ExitFailure
	}

	runID := uuid.New().String()
	log := logger.ForRun(base, runID)
	metrics.SetRunInfo(runID, version.Version)
	log.WithField("config_path", opts.configPath).Debug("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := runner.NewProgress(runID)
	p, err := pipeline.New(cfg, log, progress, os.Stdout)
	if err != nil {
		log.WithError(err).Error("Invalid run parameters")
		return apperrors.ExitCode(err)
	}

	healthMgr := health.NewManager(logger.NewLogrusAdapter(logger.WithComponent(base, "health")))
	registerToolCheckers(healthMgr, p, cfg)
	if cfg.Tools.Preflight {
		if err := healthMgr.Preflight(ctx); err != nil {
			log.WithError(err).Error("Required tools are missing")
			return apperrors.ExitCode(err)
		}
	}

	if cfg.Metrics.Enabled {
		stopServer := startStatusServer(cfg, base, healthMgr, progress, log)
		defer stopServer()
	}

	log.WithFields(logger.Fields{
		"steps":   p.Steps().String(),
		"prefix":  p.Prefix(),
		"encoder": cfg.Pipeline.Encoder,
		"qp":      p.QPs(),
		"threads": cfg.Pipeline.Threads,
	}).Info("Starting omafgen")

	runErr := p.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if runErr != nil {
		log.WithError(runErr).Error("Run failed")
		return apperrors.ExitCode(runErr)
	}
	log.Info("Run finished")
	return apperrors.ExitOK
}

func registerToolCheckers(mgr *health.Manager, p *pipeline.Pipeline, cfg *config.Config) {
	for _, bin := range p.Binaries() {
		if bin == cfg.Tools.FFmpeg {
			mgr.Register(health.NewFFmpegChecker(bin))
			continue
		}
		mgr.Register(health.NewToolChecker(bin))
	}
}

// startStatusServer serves in the background until the returned func is called.
func startStatusServer(cfg *config.Config, base *logrus.Logger, mgr *health.Manager, progress *runner.Progress, log logger.Logger) func() {
	srv := server.New(&cfg.Metrics, base, mgr, progress)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil {
			log.WithError(err).Error("Status server error")
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
