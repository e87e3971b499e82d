package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zsiec/omafgen/internal/bitstream"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/metrics"
)

// filterTempDir holds the filtered bitstreams until they replace the
// originals.
const filterTempDir = "temp"

// FilterBitstreams removes the leading non parameter set units from every
// bitstream of every QP in hevcDir. Each QP directory is filtered into
// temp/qpN, which then replaces qpN. A file without any unit is skipped with
// a warning and is therefore absent after the swap.
// On failure the partially filtered temp directory is removed.
func FilterBitstreams(hevcDir string, qps []int, prefix string, log logger.Logger) (err error) {
	sampled := logger.NewPipelineLogger(log)
	tempDir := filepath.Join(hevcDir, filterTempDir)
	defer func() {
		if err != nil {
			os.RemoveAll(tempDir)
		}
	}()

	for _, qp := range qps {
		qpDir := filepath.Join(hevcDir, QPDir(qp))
		filteredDir := filepath.Join(tempDir, QPDir(qp))
		if err := os.MkdirAll(filteredDir, 0755); err != nil {
			return apperrors.WrapIOError(err, fmt.Sprintf("failed to create %s", filteredDir))
		}

		for _, size := range TileSizes {
			for n := 0; n < TilesPerSize; n++ {
				name := BitstreamFileName(prefix, size, qp, n)
				input := filepath.Join(qpDir, name)

				res, err := bitstream.FilterFile(input, filepath.Join(filteredDir, name))
				if errors.Is(err, bitstream.ErrNoUnits) {
					metrics.RecordSkippedBitstream()
					log.WithField("file", input).Warn("no nal units could be found")
					continue
				}
				if err != nil {
					return apperrors.WrapIOError(err, fmt.Sprintf("failed to filter %s", input))
				}

				metrics.RecordBitstream(res.Units, res.DroppedUnits, res.BytesIn, res.BytesOut)
				sampled.DebugWithCategory(logger.CategoryBitstream, "Bitstream filtered", logger.Fields{
					"file":         name,
					"units":        res.Units,
					"split_points": res.SplitPoints,
					"dropped":      res.DroppedUnits,
					"bytes_in":     res.BytesIn,
					"bytes_out":    res.BytesOut,
				})
			}
		}

		if err := os.RemoveAll(qpDir); err != nil {
			return apperrors.WrapIOError(err, fmt.Sprintf("failed to remove %s", qpDir))
		}
		if err := os.Rename(filteredDir, qpDir); err != nil {
			return apperrors.WrapIOError(err, fmt.Sprintf("failed to move %s", filteredDir))
		}
	}

	if err := os.RemoveAll(tempDir); err != nil {
		return apperrors.WrapIOError(err, "failed to remove temporary directory")
	}
	return nil
}
