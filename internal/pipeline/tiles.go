package pipeline

import (
	"fmt"
	"os"

	apperrors "github.com/zsiec/omafgen/internal/errors"
)

// Cube map layout produced by step 1 and consumed by steps 2 and 3.
const (
	FaceSize = 1536 // cube face edge in the high resolution picture

	HighResWidth  = 4608
	HighResHeight = 3072
	LowResWidth   = 2304
	LowResHeight  = 1536

	HighResName = "highres.yuv"
	LowResName  = "lowres_2304x1536.yuv"
)

// Tile grid
const (
	TileColumns  = 6
	TileRows     = 4
	TilesPerSize = TileColumns * TileRows
)

// TileSizes are the tile edges of the high and low resolution pictures.
var TileSizes = []int{768, 384}

// TileCount is the number of tiles over all resolutions.
func TileCount() int {
	return len(TileSizes) * TilesPerSize
}

// TileOrigin returns the top left corner of tile n.
func TileOrigin(n, size int) (x, y int) {
	return (n % TileColumns) * size, (n / TileColumns) * size
}

func TileFileName(size, n int) string {
	return fmt.Sprintf("Tile_%dx%d_%d.yuv", size, size, n)
}

func BitstreamFileName(prefix string, size, qp, n int) string {
	return fmt.Sprintf("%s_%dx%d_qp%d_seg%d.265", prefix, size, size, qp, n)
}

func LogFileName(prefix string, size, qp, n int) string {
	return fmt.Sprintf("%s_%dx%d_qp%d_seg%d.log", prefix, size, size, qp, n)
}

// QPDir is the per-QP directory name under the bitstream directory.
func QPDir(qp int) string {
	return fmt.Sprintf("qp%d", qp)
}

// FrameSize is the byte size of one 8 bit yuv420 frame.
func FrameSize(width, height int) int64 {
	return int64(width) * int64(height) * 3 / 2
}

// FrameCount returns the number of whole 8 bit yuv420 frames in path.
func FrameCount(path string, width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid frame size %dx%d", width, height))
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, apperrors.WrapIOError(err, fmt.Sprintf("failed to stat %s", path))
	}
	return int(info.Size() / FrameSize(width, height)), nil
}
