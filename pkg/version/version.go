package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/zsiec/omafgen/pkg/version.Version=v1.2.0" and
// likewise for GitCommit and BuildTime.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running omafgen binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s\n  commit   %s\n  built    %s\n  runtime  %s %s",
		i.Short(), i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}

func (i Info) Short() string {
	return "omafgen " + i.Version
}
