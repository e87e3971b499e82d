package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/zsiec/omafgen/internal/config"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/runner"
)

// External tools looked up in the bin directory. ffmpeg comes from the
// tools config instead.
const (
	ToolConvert  = "TApp360Convert"
	ToolHM       = "TAppEncoder"
	ToolHHI      = "FileInputTest"
	ToolPackager = "hevc2omaf"
)

// cubeMapPacking is the frame packing of the six faces in a 3x2 layout.
const cubeMapPacking = "2 3  4 0 0 0 5 0  1 0 3 90 2 270"

// hhiPrefetchLimit is the tile length below which the HHI encoder is told
// to prefetch the whole file.
const hhiPrefetchLimit = 20

// EncoderTool returns the encoder binary name for the configured backend.
func EncoderTool(encoder string) string {
	if encoder == config.EncoderHHI {
		return ToolHHI
	}
	return ToolHM
}

// RequiredTools lists the bin directory tools needed by steps.
func RequiredTools(steps Steps, encoder string) []string {
	var tools []string
	if steps.Has(StepConvert) {
		tools = append(tools, ToolConvert)
	}
	if steps.Has(StepEncode) {
		tools = append(tools, EncoderTool(encoder))
	}
	if steps.Has(StepPackage) {
		tools = append(tools, ToolPackager)
	}
	return tools
}

// toolPath returns binDir/name, or a NOT_FOUND error when it does not exist.
func toolPath(binDir, name string) (string, error) {
	path := filepath.Join(binDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("%q", path))
	}
	return path, nil
}

// findInput returns the first file in dir (sorted by name) whose name
// contains pattern. More than one candidate is only a warning.
func findInput(dir, pattern string, log logger.Logger) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperrors.WrapIOError(err, fmt.Sprintf("failed to read %s", dir))
	}

	var found []string
	for _, e := range entries {
		if strings.Contains(e.Name(), pattern) {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(found)

	switch len(found) {
	case 0:
		return "", apperrors.NewNotFoundError(fmt.Sprintf("%s file in %s", pattern, dir))
	case 1:
	default:
		log.Warnf("more than 1 %s files found in %s. select first: %s", pattern, dir, found[0])
	}
	return found[0], nil
}

// ConvertJob builds step 1: ERP yuv to high resolution cube map yuv.
func ConvertJob(binDir string, p *config.PipelineConfig, input, outDir string) (runner.Job, error) {
	bin, err := toolPath(binDir, ToolConvert)
	if err != nil {
		return runner.Job{}, err
	}

	args := []string{
		"--InputFile=" + input,
		"--InputBitDepth=" + strconv.Itoa(p.InputBitDepth),
		"--InputChromaFormat=" + strconv.Itoa(p.InputChromaFormat),
		"--SourceWidth=" + strconv.Itoa(p.SourceWidth),
		"--SourceHeight=" + strconv.Itoa(p.SourceHeight),
	}
	if p.Frames > 0 {
		args = append(args, "--FramesToBeEncoded="+strconv.Itoa(p.Frames+1))
	}
	args = append(args,
		"--OutputChromaFormat=420",
		"--CodingGeometryType=1",
		"--CodingFPStructure="+cubeMapPacking,
		"--CodingFaceWidth="+strconv.Itoa(FaceSize),
		"--CodingFaceHeight="+strconv.Itoa(FaceSize),
		"--OutputFile="+filepath.Join(outDir, HighResName),
	)

	return runner.Job{
		Name: "convert " + filepath.Base(input),
		Step: StepConvert,
		Bin:  bin,
		Args: args,
	}, nil
}

// rawInput describes a headerless yuv420p input of the given size.
func rawInput(path string, width, height int) *ffmpeg.Stream {
	return ffmpeg.Input(path, ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "yuv420p",
		"s":       fmt.Sprintf("%dx%d", width, height),
	})
}

// ffmpegArgs compiles stream to argv. -y has to be a global argument:
// OverWriteOutput on the output node is lost once GlobalArgs wraps it.
func ffmpegArgs(stream *ffmpeg.Stream) []string {
	return stream.GlobalArgs("-y", "-loglevel", "quiet").GetArgs()
}

// ScaleJob builds step 2: high resolution to low resolution cube map.
func ScaleJob(ffmpegBin, inputDir, outDir string, log logger.Logger) (runner.Job, error) {
	highRes, err := findInput(inputDir, "highres", log)
	if err != nil {
		return runner.Job{}, err
	}

	stream := rawInput(highRes, HighResWidth, HighResHeight).
		Output(filepath.Join(outDir, LowResName), ffmpeg.KwArgs{
			"pix_fmt": "yuv420p",
			"s":       fmt.Sprintf("%dx%d", LowResWidth, LowResHeight),
		})

	return runner.Job{
		Name: "scale " + filepath.Base(highRes),
		Step: StepScale,
		Bin:  ffmpegBin,
		Args: ffmpegArgs(stream),
	}, nil
}

// TileJobs builds step 3: one crop job per tile of both resolutions. With a
// guard band the tile content is shrunk by the band on each side and the
// border is filled with mode (smear or mirror).
func TileJobs(ffmpegBin, inputDir, outDir string, guardBand int, mode string, log logger.Logger) ([]runner.Job, error) {
	highRes, err := findInput(inputDir, "highres", log)
	if err != nil {
		return nil, err
	}
	lowRes, err := findInput(inputDir, "lowres", log)
	if err != nil {
		return nil, err
	}

	jobs := make([]runner.Job, 0, TileCount())
	for i, size := range TileSizes {
		input := highRes
		if i > 0 {
			input = lowRes
		}
		for n := 0; n < TilesPerSize; n++ {
			x, y := TileOrigin(n, size)
			inner := size - guardBand*2

			stream := rawInput(input, size*TileColumns, size*TileRows).
				Filter("crop", ffmpeg.Args{itoa(size), itoa(size), itoa(x), itoa(y)})
			if guardBand > 0 {
				stream = stream.
					Filter("scale", ffmpeg.Args{itoa(inner), itoa(inner)}).
					Filter("pad", ffmpeg.Args{itoa(size), itoa(size), itoa(guardBand), itoa(guardBand)}).
					Filter("fillborders", ffmpeg.Args{itoa(guardBand), itoa(guardBand), itoa(guardBand), itoa(guardBand), mode})
			}
			stream = stream.Output(filepath.Join(outDir, TileFileName(size, n)))

			jobs = append(jobs, runner.Job{
				Name: fmt.Sprintf("tile %dx%d %d", size, size, n),
				Step: StepTile,
				Bin:  ffmpegBin,
				Args: ffmpegArgs(stream),
			})
		}
	}
	return jobs, nil
}

// EncodeJobs builds step 4: every tile for every QP. The HM backend takes a
// single QP; extra ones are dropped with a warning.
func EncodeJobs(binDir string, p *config.PipelineConfig, prefix, inputDir, hevcDir string, log logger.Logger) ([]runner.Job, error) {
	hhi := !p.UsesHM()
	if !hhi {
		if _, err := os.Stat(p.HMConfig); p.HMConfig == "" || err != nil {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("HM config file %q", p.HMConfig))
		}
	}
	bin, err := toolPath(binDir, EncoderTool(p.Encoder))
	if err != nil {
		return nil, err
	}

	qps := p.QPs
	if !hhi && len(qps) > 1 {
		log.Warnf("Multiple QPs are not supported by the HM encoder. Continue now with QP=%d", qps[0])
		qps = qps[:1]
	}

	jobs := make([]runner.Job, 0, len(qps)*TileCount())
	for _, qp := range qps {
		for _, size := range TileSizes {
			for n := 0; n < TilesPerSize; n++ {
				input := filepath.Join(inputDir, TileFileName(size, n))
				output := filepath.Join(hevcDir, QPDir(qp), BitstreamFileName(prefix, size, qp, n))

				var args []string
				if hhi {
					args, err = hhiArgs(p, input, output, size, qp)
				} else {
					args, err = hmArgs(p, input, output, size, qp)
				}
				if err != nil {
					return nil, err
				}

				jobs = append(jobs, runner.Job{
					Name:    fmt.Sprintf("encode %s qp%d", strings.TrimSuffix(TileFileName(size, n), ".yuv"), qp),
					Step:    StepEncode,
					Bin:     bin,
					Args:    args,
					LogPath: filepath.Join(hevcDir, QPDir(qp), LogFileName(prefix, size, qp, n)),
				})
			}
		}
	}
	return jobs, nil
}

// checkFrames fails when more frames are requested than the tile holds.
func checkFrames(frames, available int, input string) error {
	if frames+1 > available {
		return apperrors.NewValidationError(fmt.Sprintf(
			"provided frame count %d+1 is too big for file %s with %d frames", frames, input, available))
	}
	return nil
}

func hhiArgs(p *config.PipelineConfig, input, output string, size, qp int) ([]string, error) {
	available, err := FrameCount(input, size, size)
	if err != nil {
		return nil, err
	}

	args := []string{"--InputFileName", input}
	if available < hhiPrefetchLimit {
		args = append(args, "--Prefetch", itoa(available))
	}
	if p.Frames > 0 {
		if err := checkFrames(p.Frames, available, input); err != nil {
			return nil, err
		}
		args = append(args, "--NumFrames", itoa(p.Frames+1))
	}
	args = append(args,
		"--m", "1",
		"--CodingFlags", "0",
		"--Verbosity", "1",
		"--TicksPerSecond", "90000",
		"--NumThreads", "2",
		"--SceneCutDetection", "0",
		"--Quality", "14",
		"-r", "0",
		"--FileBitDepth", "8",
		"--InternalBitDepth", "8",
		"--IDRPeriod", "9",
		"--ParallelismMode", "3",
		"--Width", itoa(size),
		"--Height", itoa(size),
		"--TemporalRate", itoa(p.FrameRate),
		"--Qp", itoa(qp),
		"--BitstreamFileName", output,
	)
	return args, nil
}

func hmArgs(p *config.PipelineConfig, input, output string, size, qp int) ([]string, error) {
	args := []string{"--InputFile=" + input, "-c", p.HMConfig}
	if p.Frames > 0 {
		available, err := FrameCount(input, size, size)
		if err != nil {
			return nil, err
		}
		if err := checkFrames(p.Frames, available, input); err != nil {
			return nil, err
		}
		args = append(args, "--FramesToBeEncoded="+itoa(p.Frames+1))
	}
	args = append(args,
		"--SEITempMotionConstrainedTileSets=1",
		"--SEITMCTSTileConstraint=1",
		"--SourceWidth="+itoa(size),
		"--SourceHeight="+itoa(size),
		"--FrameRate="+itoa(p.FrameRate),
		"--QP="+itoa(qp),
		"--InputBitDepth=8",
		"--BitstreamFile="+output,
	)
	return args, nil
}

// PackageJob builds step 5: OMAF files and MPD from the bitstreams.
func PackageJob(binDir string, p *config.PipelineConfig, prefix, inputDir, omafDir string) (runner.Job, error) {
	bin, err := toolPath(binDir, ToolPackager)
	if err != nil {
		return runner.Job{}, err
	}

	args := []string{"--inputDir", inputDir, "--outputDir", omafDir, "--QP"}
	for _, qp := range p.QPs {
		args = append(args, itoa(qp))
	}
	args = append(args,
		"--duration", itoa(p.Frames),
		"--fps", itoa(p.FrameRate),
		"--inputFilePrefix", prefix,
		"--guardbands", itoa(p.GuardBandSize),
	)

	return runner.Job{
		Name: "package " + prefix,
		Step: StepPackage,
		Bin:  bin,
		Args: args,
	}, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
