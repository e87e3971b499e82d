package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zsiec/omafgen/internal/config"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/metrics"
	"github.com/zsiec/omafgen/internal/runner"
	"github.com/zsiec/omafgen/internal/ui"
)

// Output layout below the output directory.
const (
	yuvDirName  = "yuv"
	hevcDirName = "hevc"
	omafDirName = "omaf"
)

// Pipeline runs the selected steps of one conversion.
type Pipeline struct {
	cfg      config.PipelineConfig
	tools    config.ToolsConfig
	steps    Steps
	prefix   string
	binDir   string
	logger   logger.Logger
	progress *runner.Progress
	pool     *runner.Pool
	out      io.Writer
	results  []ui.StepResult
}

// DefaultBinDir returns bin/<os> below the working directory.
func DefaultBinDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = "osx"
	case "linux":
		dir = "linux"
	case "windows":
		dir = "win"
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("your OS is not supported: %s", runtime.GOOS))
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", apperrors.WrapIOError(err, "failed to get working directory")
	}
	return filepath.Join(wd, "bin", dir), nil
}

// New checks the run parameters and prepares a pipeline. Banners and the
// summary are written to out. progress may be nil.
func New(cfg *config.Config, log logger.Logger, progress *runner.Progress, out io.Writer) (*Pipeline, error) {
	steps, err := ParseSteps(cfg.Pipeline.Steps)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg.Pipeline,
		tools:    cfg.Tools,
		steps:    steps,
		prefix:   cfg.Pipeline.FilePrefix,
		binDir:   cfg.Tools.BinDir,
		logger:   log,
		progress: progress,
		out:      out,
	}
	p.cfg.QPs = append([]int(nil), cfg.Pipeline.QPs...)

	if p.prefix == "" && steps.Has(StepConvert) {
		p.prefix = GuessFilePrefix(p.cfg.Input)
	}
	if p.prefix == "" {
		return nil, apperrors.NewValidationError("please provide file prefix with option [-p|--file-prefix] since it can not be guessed from filename")
	}

	if steps.Has(StepEncode) && p.cfg.UsesHM() {
		if p.cfg.HMConfig == "" {
			return nil, apperrors.NewValidationError("please provide the config file for HM using [-c|--hm-config] option")
		}
		if len(p.cfg.QPs) > 1 {
			log.Warnf("Multiple QPs are not supported by the HM encoder. Continue now with QP=%d", p.cfg.QPs[0])
			p.cfg.QPs = p.cfg.QPs[:1]
		}
	}

	if p.binDir == "" {
		if p.binDir, err = DefaultBinDir(); err != nil {
			return nil, err
		}
	}

	if p.progress == nil {
		p.progress = runner.NewProgress("")
	}
	p.pool = runner.NewPool(runner.New(log, cfg.Tools.StopTimeout), p.cfg.Threads, p.progress, log)

	return p, nil
}

func (p *Pipeline) Steps() Steps {
	return p.steps
}

func (p *Pipeline) Prefix() string {
	return p.prefix
}

// QPs returns the QPs that are encoded and packaged.
func (p *Pipeline) QPs() []int {
	return p.cfg.QPs
}

// Binaries lists every external program the selected steps run.
func (p *Pipeline) Binaries() []string {
	var bins []string
	for _, tool := range RequiredTools(p.steps, p.cfg.Encoder) {
		bins = append(bins, filepath.Join(p.binDir, tool))
	}
	if p.steps.Has(StepScale) || p.steps.Has(StepTile) {
		bins = append(bins, p.tools.FFmpeg)
	}
	return bins
}

// Results returns the outcome of every step run so far.
func (p *Pipeline) Results() []ui.StepResult {
	return p.results
}

// Run executes the selected steps in order. Each step reads what the
// previous one wrote; the first step reads the configured input.
func (p *Pipeline) Run(ctx context.Context) error {
	next := p.cfg.Input

	var runErr error
	for _, step := range p.steps {
		start := time.Now()
		output, jobs, err := p.runStep(ctx, step, next)
		elapsed := time.Since(start)

		metrics.RecordStep(step, runner.Status(err), elapsed)
		p.results = append(p.results, ui.StepResult{
			Step:     step,
			Title:    StepName(step),
			Jobs:     jobs,
			Duration: elapsed,
			Err:      err,
		})

		if err != nil {
			runErr = fmt.Errorf("step %d: %w", step, err)
			break
		}
		logger.WithStep(p.logger, step).WithField("duration", elapsed.Round(time.Millisecond)).Info("Step finished")
		next = output
	}

	p.progress.Finish()
	fmt.Fprintln(p.out, ui.Summary(p.results))
	return runErr
}

func (p *Pipeline) runStep(ctx context.Context, step int, input string) (string, int, error) {
	switch step {
	case StepConvert:
		return p.convert(ctx, input)
	case StepScale:
		return p.scale(ctx, input)
	case StepTile:
		return p.tile(ctx, input)
	case StepEncode:
		return p.encode(ctx, input)
	case StepPackage:
		return p.pack(ctx, input)
	}
	return "", 0, apperrors.NewInternalError(fmt.Sprintf("unknown step %d", step))
}

func (p *Pipeline) convert(ctx context.Context, input string) (string, int, error) {
	yuvDir := filepath.Join(p.cfg.OutputDir, yuvDirName, p.prefix)
	if err := makeDir(yuvDir); err != nil {
		return "", 0, err
	}
	fmt.Fprintln(p.out, ui.Note("The sequence you provided is now called %q you will find all the output files in directory %q", p.prefix, yuvDir))
	p.banner("Step 1: convert ERP yuv to high res CMP yuv")

	job, err := ConvertJob(p.binDir, &p.cfg, input, yuvDir)
	if err != nil {
		return "", 0, err
	}
	return yuvDir, 1, p.runJobs(ctx, StepConvert, []runner.Job{job})
}

func (p *Pipeline) scale(ctx context.Context, input string) (string, int, error) {
	p.banner("Step 2: (scale down): scale down high res CMP yuv to low res CMP yuv")

	outDir, err := p.stepOutput(StepConvert, input)
	if err != nil {
		return "", 0, err
	}
	job, err := ScaleJob(p.tools.FFmpeg, input, outDir, p.logger)
	if err != nil {
		return "", 0, err
	}
	return outDir, 1, p.runJobs(ctx, StepScale, []runner.Job{job})
}

func (p *Pipeline) tile(ctx context.Context, input string) (string, int, error) {
	outDir, err := p.stepOutput(StepScale, input)
	if err != nil {
		return "", 0, err
	}
	jobs, err := TileJobs(p.tools.FFmpeg, input, outDir, p.cfg.GuardBandSize, p.cfg.GuardBandMode, p.logger)
	if err != nil {
		return "", 0, err
	}
	p.banner(fmt.Sprintf("Step 3: (create tiles): run %d tile cropping jobs", len(jobs)))

	if err := p.runJobs(ctx, StepTile, jobs); err != nil {
		return "", len(jobs), err
	}
	if err := CheckTiles(outDir, p.cfg.Frames); err != nil {
		p.logger.WithError(err).Warn("tile check failed")
	}
	return outDir, len(jobs), nil
}

func (p *Pipeline) encode(ctx context.Context, input string) (string, int, error) {
	hevcDir := filepath.Join(p.cfg.OutputDir, hevcDirName, p.prefix)
	for _, qp := range p.cfg.QPs {
		if err := makeDir(filepath.Join(hevcDir, QPDir(qp))); err != nil {
			return "", 0, err
		}
	}

	jobs, err := EncodeJobs(p.binDir, &p.cfg, p.prefix, input, hevcDir, p.logger)
	if err != nil {
		return "", 0, err
	}
	p.banner(fmt.Sprintf("Step 4: (encode): run %d encoding jobs", len(jobs)))

	if err := p.runJobs(ctx, StepEncode, jobs); err != nil {
		return "", len(jobs), err
	}

	if !p.cfg.UsesHM() {
		if err := FilterBitstreams(hevcDir, p.cfg.QPs, p.prefix, p.logger); err != nil {
			return "", len(jobs), err
		}
	}
	for _, qp := range p.cfg.QPs {
		if err := CheckBitstreams(hevcDir, p.prefix, qp); err != nil {
			p.logger.WithError(err).Warn("bitstream check failed")
		}
	}
	return hevcDir, len(jobs), nil
}

func (p *Pipeline) pack(ctx context.Context, input string) (string, int, error) {
	omafDir := filepath.Join(p.cfg.OutputDir, omafDirName, p.prefix)
	if err := makeDir(omafDir); err != nil {
		return "", 0, err
	}
	p.banner("Step 5 (OMAF packaging)")

	job, err := PackageJob(p.binDir, &p.cfg, p.prefix, input, omafDir)
	if err != nil {
		return "", 0, err
	}
	return omafDir, 1, p.runJobs(ctx, StepPackage, []runner.Job{job})
}

// stepOutput is where a scale or tile step writes: next to its input when
// the previous step ran in this pipeline, otherwise in the output directory.
func (p *Pipeline) stepOutput(previous int, input string) (string, error) {
	if p.steps.Has(previous) {
		return input, nil
	}
	if err := makeDir(p.cfg.OutputDir); err != nil {
		return "", err
	}
	return p.cfg.OutputDir, nil
}

func (p *Pipeline) runJobs(ctx context.Context, step int, jobs []runner.Job) error {
	p.progress.BeginStep(step, StepName(step), len(jobs))

	log := logger.WithStep(p.logger, step).WithField("jobs", len(jobs))
	if len(jobs) == 1 {
		log.Infof("command: %s", jobs[0].CommandLine())
	} else if len(jobs) > 1 {
		log.Infof("First command: %s", jobs[0].CommandLine())
	}

	return p.pool.Run(ctx, jobs)
}

func (p *Pipeline) banner(title string) {
	fmt.Fprintln(p.out, ui.StepBanner(title))
}

func makeDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.WrapIOError(err, fmt.Sprintf("failed to create %s", dir))
	}
	return nil
}
