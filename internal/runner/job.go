package runner

import (
	"path/filepath"
	"strings"
)

// Job is one invocation of an external tool.
type Job struct {
	Name    string   // short label for logs and progress, e.g. "encode Tile_768x768_3 qp22"
	Step    int      // pipeline step the job belongs to
	Bin     string   // executable path
	Args    []string // passed as is, no shell involved
	Dir     string   // working directory, empty for the current one
	Env     []string // appended to the environment of this process
	LogPath string   // stdout and stderr of the tool; empty logs them instead
}

// Tool returns the executable name without its directory.
func (j Job) Tool() string {
	return filepath.Base(j.Bin)
}

// CommandLine renders the job as a shell-like command line for logging.
func (j Job) CommandLine() string {
	parts := make([]string, 0, len(j.Args)+1)
	parts = append(parts, quote(j.Bin))
	for _, a := range j.Args {
		parts = append(parts, quote(a))
	}
	line := strings.Join(parts, " ")
	if j.LogPath != "" {
		line += " &> " + quote(j.LogPath)
	}
	return line
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
