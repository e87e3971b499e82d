package bitstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ToEnd marks a range that extends to the end of the buffer.
const ToEnd = -1

// ErrNoUnits is returned by FilterFile when the input holds no start code.
var ErrNoUnits = errors.New("no nal units found")

// Range is a half-open byte range [Start, End) of a buffer. End may be ToEnd.
type Range struct {
	Start int
	End   int
}

func (r Range) bounds(size int) (int, int) {
	end := r.End
	if end == ToEnd || end > size {
		end = size
	}
	start := r.Start
	if start > end {
		start = end
	}
	return start, end
}

// SelectRanges returns the byte ranges to keep. Only units whose type is at or
// below threshold are split points; each one spans up to the next split point and
// the last one spans to the end of the buffer. Units above the threshold that come
// before the first split point are therefore dropped, later ones stay inside the
// preceding range.
func SelectRanges(units []Unit, threshold int) []Range {
	var ranges []Range

	for _, u := range units {
		if int(u.Type) > threshold {
			continue
		}
		if n := len(ranges); n > 0 {
			ranges[n-1].End = u.Offset
		}
		ranges = append(ranges, Range{Start: u.Offset, End: ToEnd})
	}

	return ranges
}

// Materialize concatenates the ranges of buf into a new slice.
func Materialize(buf []byte, ranges []Range) []byte {
	total := 0
	for _, r := range ranges {
		start, end := r.bounds(len(buf))
		total += end - start
	}

	out := make([]byte, 0, total)
	for _, r := range ranges {
		start, end := r.bounds(len(buf))
		out = append(out, buf[start:end]...)
	}
	return out
}

// WriteRanges writes the ranges of buf to w in order and returns the byte count.
func WriteRanges(w io.Writer, buf []byte, ranges []Range) (int64, error) {
	var written int64
	for _, r := range ranges {
		start, end := r.bounds(len(buf))
		n, err := w.Write(buf[start:end])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// FilterResult summarizes one FilterFile call.
type FilterResult struct {
	Units        int
	SplitPoints  int
	DroppedUnits int // units before the first split point
	BytesIn      int64
	BytesOut     int64
}

// BytesDropped returns the number of bytes removed from the input.
func (r *FilterResult) BytesDropped() int64 {
	return r.BytesIn - r.BytesOut
}

// FilterFile reads the bitstream at inPath, strips the units that precede the
// first split point and writes the result to outPath. When the input holds no
// units ErrNoUnits is returned and outPath is not created.
func FilterFile(inPath, outPath string) (*FilterResult, error) {
	buf, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bitstream: %w", err)
	}

	units := Scan(buf)
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", inPath, ErrNoUnits)
	}

	ranges := SelectRanges(units, ParameterSetThreshold)

	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create filtered bitstream: %w", err)
	}

	w := bufio.NewWriterSize(f, 1<<20)
	written, err := WriteRanges(w, buf, ranges)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write filtered bitstream: %w", err)
	}

	dropped := len(units)
	if len(ranges) > 0 {
		dropped = 0
		for _, u := range units {
			if u.Offset >= ranges[0].Start {
				break
			}
			dropped++
		}
	}

	return &FilterResult{
		Units:        len(units),
		SplitPoints:  len(ranges),
		DroppedUnits: dropped,
		BytesIn:      int64(len(buf)),
		BytesOut:     written,
	}, nil
}
