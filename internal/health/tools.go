package health

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolChecker verifies that an external program can be started. Bare names
// are looked up in PATH.
type ToolChecker struct {
	path string
}

func NewToolChecker(path string) *ToolChecker {
	return &ToolChecker{path: path}
}

func (c *ToolChecker) Name() string {
	return filepath.Base(c.path)
}

func (c *ToolChecker) Check(ctx context.Context) error {
	_, err := resolve(c.path)
	return err
}

// resolve returns the executable path for bin.
func resolve(bin string) (string, error) {
	if bin == "" {
		return "", fmt.Errorf("no binary configured")
	}
	if !strings.ContainsRune(bin, filepath.Separator) {
		path, err := exec.LookPath(bin)
		if err != nil {
			return "", fmt.Errorf("%s not found in PATH", bin)
		}
		return path, nil
	}

	info, err := os.Stat(bin)
	if err != nil {
		return "", fmt.Errorf("%s does not exist", bin)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", bin)
	}
	if info.Mode()&0111 == 0 {
		return "", fmt.Errorf("%s is not executable", bin)
	}
	return bin, nil
}

// FFmpegFilters are the filters used to scale and tile the cube map.
var FFmpegFilters = []string{"crop", "scale", "pad", "fillborders"}

// FFmpegChecker verifies the ffmpeg binary and the filters it must provide.
type FFmpegChecker struct {
	binaryPath string
	filters    []string
}

func NewFFmpegChecker(binaryPath string) *FFmpegChecker {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpegChecker{
		binaryPath: binaryPath,
		filters:    FFmpegFilters,
	}
}

func (f *FFmpegChecker) Name() string {
	return "ffmpeg"
}

func (f *FFmpegChecker) Check(ctx context.Context) error {
	path, err := resolve(f.binaryPath)
	if err != nil {
		return fmt.Errorf("ffmpeg binary check failed: %w", err)
	}

	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg version check failed: %w", err)
	}
	if !bytes.Contains(out, []byte("ffmpeg version")) {
		return fmt.Errorf("unexpected ffmpeg version output")
	}

	out, err = exec.CommandContext(ctx, path, "-hide_banner", "-filters").Output()
	if err != nil {
		return fmt.Errorf("failed to list ffmpeg filters: %w", err)
	}
	if missing := missingFilters(string(out), f.filters); len(missing) > 0 {
		return fmt.Errorf("missing ffmpeg filters: %v", missing)
	}
	return nil
}

// missingFilters parses `ffmpeg -filters` output, one filter per line:
//
//	... crop              V->V       Crop the input video.
func missingFilters(output string, required []string) []string {
	available := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && strings.Contains(fields[2], "->") {
			available[fields[1]] = true
		}
	}

	var missing []string
	for _, name := range required {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
