package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/zsiec/omafgen/internal/errors"
)

// CheckTiles verifies that dir holds every tile of both resolutions. When
// frames is positive each tile must hold at least frames+1 frames.
func CheckTiles(dir string, frames int) error {
	var missing, short []string
	for _, size := range TileSizes {
		for n := 0; n < TilesPerSize; n++ {
			name := TileFileName(size, n)
			count, err := FrameCount(filepath.Join(dir, name), size, size)
			if err != nil {
				missing = append(missing, name)
				continue
			}
			if count == 0 || (frames > 0 && count < frames+1) {
				short = append(short, name)
			}
		}
	}

	if len(missing) > 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%d of %d tiles in %s", len(missing), TileCount(), dir)).
			WithDetails(map[string]interface{}{"missing": missing})
	}
	if len(short) > 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%d tiles in %s have fewer frames than requested", len(short), dir)).
			WithDetails(map[string]interface{}{"tiles": short})
	}
	return nil
}

// CheckBitstreams verifies that the QP directory under hevcDir holds a non
// empty bitstream for every tile.
func CheckBitstreams(hevcDir, prefix string, qp int) error {
	dir := filepath.Join(hevcDir, QPDir(qp))

	var missing []string
	for _, size := range TileSizes {
		for n := 0; n < TilesPerSize; n++ {
			name := BitstreamFileName(prefix, size, qp, n)
			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil || info.Size() == 0 {
				missing = append(missing, name)
			}
		}
	}

	if len(missing) > 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%d of %d bitstreams in %s", len(missing), TileCount(), dir)).
			WithDetails(map[string]interface{}{"missing": missing})
	}
	return nil
}
