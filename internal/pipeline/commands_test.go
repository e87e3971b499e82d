package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/omafgen/internal/config"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
)

func testPipelineConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		Steps:             "1-5",
		Input:             "in.yuv",
		OutputDir:         "out",
		InputBitDepth:     8,
		InputChromaFormat: 420,
		SourceWidth:       8192,
		SourceHeight:      4096,
		Frames:            -1,
		FrameRate:         30,
		QPs:               []int{22},
		Threads:           2,
		GuardBandMode:     "smear",
		Encoder:           config.EncoderHM,
	}
}

// fakeBinDir creates empty stand-ins for the given tools.
func fakeBinDir(t *testing.T, tools ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, tool := range tools {
		require.NoError(t, os.WriteFile(filepath.Join(dir, tool), nil, 0755))
	}
	return dir
}

// writeTiles creates every tile in dir with the given number of frames.
func writeTiles(t *testing.T, dir string, frames int) {
	t.Helper()
	for _, size := range TileSizes {
		for n := 0; n < TilesPerSize; n++ {
			f, err := os.Create(filepath.Join(dir, TileFileName(size, n)))
			require.NoError(t, err)
			require.NoError(t, f.Truncate(FrameSize(size, size)*int64(frames)))
			require.NoError(t, f.Close())
		}
	}
}

func TestRequiredTools(t *testing.T) {
	assert.Equal(t, []string{ToolConvert, ToolHM, ToolPackager}, RequiredTools(Steps{1, 2, 3, 4, 5}, config.EncoderHM))
	assert.Equal(t, []string{ToolHHI}, RequiredTools(Steps{3, 4}, config.EncoderHHI))
	assert.Empty(t, RequiredTools(Steps{2, 3}, config.EncoderHM))
}

func TestConvertJob(t *testing.T) {
	binDir := fakeBinDir(t, ToolConvert)
	p := testPipelineConfig()
	p.Frames = 9

	job, err := ConvertJob(binDir, p, "in/Garage_8192x4096.yuv", "out/yuv/Garage")
	require.NoError(t, err)

	assert.Equal(t, StepConvert, job.Step)
	assert.Equal(t, filepath.Join(binDir, ToolConvert), job.Bin)
	assert.Equal(t, []string{
		"--InputFile=in/Garage_8192x4096.yuv",
		"--InputBitDepth=8",
		"--InputChromaFormat=420",
		"--SourceWidth=8192",
		"--SourceHeight=4096",
		"--FramesToBeEncoded=10",
		"--OutputChromaFormat=420",
		"--CodingGeometryType=1",
		"--CodingFPStructure=2 3  4 0 0 0 5 0  1 0 3 90 2 270",
		"--CodingFaceWidth=1536",
		"--CodingFaceHeight=1536",
		"--OutputFile=" + filepath.Join("out/yuv/Garage", HighResName),
	}, job.Args)
}

func TestConvertJob_AllFrames(t *testing.T) {
	job, err := ConvertJob(fakeBinDir(t, ToolConvert), testPipelineConfig(), "in.yuv", "out")
	require.NoError(t, err)
	for _, arg := range job.Args {
		assert.NotContains(t, arg, "FramesToBeEncoded")
	}
}

func TestConvertJob_MissingTool(t *testing.T) {
	_, err := ConvertJob(t.TempDir(), testPipelineConfig(), "in.yuv", "out")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestScaleJob(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, HighResName), nil, 0644))

	job, err := ScaleJob("ffmpeg", in, "out", logger.NewNullLogger())
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", job.Bin)
	assert.Equal(t, StepScale, job.Step)
	args := strings.Join(job.Args, " ")
	assert.Contains(t, job.Args, filepath.Join(in, HighResName))
	assert.Contains(t, job.Args, filepath.Join("out", LowResName))
	assert.Contains(t, args, "4608x3072")
	assert.Contains(t, args, "2304x1536")
	assert.Contains(t, args, "rawvideo")
	assert.Contains(t, job.Args, "-y")
}

func TestScaleJob_NoInput(t *testing.T) {
	_, err := ScaleJob("ffmpeg", t.TempDir(), "out", logger.NewNullLogger())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestFindInput_PicksFirstSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_highres.yuv", "a_highres.yuv", "lowres.yuv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	got, err := findInput(dir, "highres", logger.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_highres.yuv"), got)
}

func TestTileJobs(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, HighResName), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, LowResName), nil, 0644))

	jobs, err := TileJobs("ffmpeg", in, "tiles", 0, "smear", logger.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, jobs, 48)

	first := strings.Join(jobs[0].Args, " ")
	assert.Contains(t, first, filepath.Join(in, HighResName))
	assert.Contains(t, first, "4608x3072")
	assert.Contains(t, first, "crop=768:768:0:0")
	assert.Contains(t, jobs[0].Args, filepath.Join("tiles", "Tile_768x768_0.yuv"))
	assert.NotContains(t, first, "fillborders")

	seventh := strings.Join(jobs[7].Args, " ")
	assert.Contains(t, seventh, "crop=768:768:768:768")

	low := strings.Join(jobs[24+23].Args, " ")
	assert.Contains(t, low, filepath.Join(in, LowResName))
	assert.Contains(t, low, "2304x1536")
	assert.Contains(t, low, "crop=384:384:1920:1152")
	assert.Contains(t, jobs[47].Args, filepath.Join("tiles", "Tile_384x384_23.yuv"))

	for _, job := range jobs {
		assert.Contains(t, job.Args, "-y", job.Name)
		assert.Contains(t, job.Args, "quiet", job.Name)
	}
}

func TestTileJobs_GuardBand(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, HighResName), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, LowResName), nil, 0644))

	jobs, err := TileJobs("ffmpeg", in, "tiles", 4, "mirror", logger.NewNullLogger())
	require.NoError(t, err)

	args := strings.Join(jobs[25].Args, " ")
	assert.Contains(t, args, "crop=384:384:384:0")
	assert.Contains(t, args, "scale=376:376")
	assert.Contains(t, args, "pad=384:384:4:4")
	assert.Contains(t, args, "fillborders=4:4:4:4:mirror")
	assert.Contains(t, jobs[25].Args, "-y")
}

func TestTileJobs_MissingLowRes(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, HighResName), nil, 0644))

	_, err := TileJobs("ffmpeg", in, "tiles", 0, "smear", logger.NewNullLogger())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestEncodeJobs_HM(t *testing.T) {
	binDir := fakeBinDir(t, ToolHM)
	hmConfig := filepath.Join(t.TempDir(), "encoder_randomaccess_main.cfg")
	require.NoError(t, os.WriteFile(hmConfig, []byte("GOPSize : 8\n"), 0644))

	p := testPipelineConfig()
	p.HMConfig = hmConfig
	p.QPs = []int{22, 27}

	jobs, err := EncodeJobs(binDir, p, "Garage", "tiles", "hevc", logger.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, jobs, 48)

	job := jobs[1]
	assert.Equal(t, filepath.Join(binDir, ToolHM), job.Bin)
	assert.Equal(t, filepath.Join("hevc", "qp22", "Garage_768x768_qp22_seg1.log"), job.LogPath)
	assert.Equal(t, []string{
		"--InputFile=" + filepath.Join("tiles", "Tile_768x768_1.yuv"),
		"-c", hmConfig,
		"--SEITempMotionConstrainedTileSets=1",
		"--SEITMCTSTileConstraint=1",
		"--SourceWidth=768",
		"--SourceHeight=768",
		"--FrameRate=30",
		"--QP=22",
		"--InputBitDepth=8",
		"--BitstreamFile=" + filepath.Join("hevc", "qp22", "Garage_768x768_qp22_seg1.265"),
	}, job.Args)
}

func TestEncodeJobs_HMMissingConfig(t *testing.T) {
	p := testPipelineConfig()
	p.HMConfig = filepath.Join(t.TempDir(), "missing.cfg")

	_, err := EncodeJobs(fakeBinDir(t, ToolHM), p, "Garage", "tiles", "hevc", logger.NewNullLogger())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestEncodeJobs_TooManyFrames(t *testing.T) {
	tiles := t.TempDir()
	writeTiles(t, tiles, 3)

	hmConfig := filepath.Join(t.TempDir(), "hm.cfg")
	require.NoError(t, os.WriteFile(hmConfig, nil, 0644))

	p := testPipelineConfig()
	p.HMConfig = hmConfig

	p.Frames = 2
	jobs, err := EncodeJobs(fakeBinDir(t, ToolHM), p, "Garage", tiles, "hevc", logger.NewNullLogger())
	require.NoError(t, err)
	assert.Contains(t, jobs[0].Args, "--FramesToBeEncoded=3")

	p.Frames = 3
	_, err = EncodeJobs(fakeBinDir(t, ToolHM), p, "Garage", tiles, "hevc", logger.NewNullLogger())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestEncodeJobs_HHI(t *testing.T) {
	tiles := t.TempDir()
	writeTiles(t, tiles, 2)

	p := testPipelineConfig()
	p.Encoder = config.EncoderHHI
	p.QPs = []int{22, 32}
	p.Frames = 1

	jobs, err := EncodeJobs(fakeBinDir(t, ToolHHI), p, "Garage", tiles, "hevc", logger.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, jobs, 96)

	job := jobs[48+24]
	assert.Equal(t, "encode Tile_384x384_0 qp32", job.Name)
	assert.Equal(t, filepath.Join("hevc", "qp32", "Garage_384x384_qp32_seg0.log"), job.LogPath)
	assert.Equal(t, []string{
		"--InputFileName", filepath.Join(tiles, "Tile_384x384_0.yuv"),
		"--Prefetch", "2",
		"--NumFrames", "2",
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
		"--Width", "384",
		"--Height", "384",
		"--TemporalRate", "30",
		"--Qp", "32",
		"--BitstreamFileName", filepath.Join("hevc", "qp32", "Garage_384x384_qp32_seg0.265"),
	}, job.Args)
}

func TestPackageJob(t *testing.T) {
	binDir := fakeBinDir(t, ToolPackager)
	p := testPipelineConfig()
	p.QPs = []int{22, 32}
	p.GuardBandSize = 4

	job, err := PackageJob(binDir, p, "Garage", "hevc/Garage", "omaf/Garage")
	require.NoError(t, err)

	assert.Equal(t, StepPackage, job.Step)
	assert.Equal(t, []string{
		"--inputDir", "hevc/Garage",
		"--outputDir", "omaf/Garage",
		"--QP", "22", "32",
		"--duration", "-1",
		"--fps", "30",
		"--inputFilePrefix", "Garage",
		"--guardbands", "4",
	}, job.Args)
}
