package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zsiec/omafgen/internal/config"
	apperrors "github.com/zsiec/omafgen/internal/errors"
	"github.com/zsiec/omafgen/internal/logger"
	"github.com/zsiec/omafgen/internal/mpd"
)

func main() {
	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(apperrors.ExitUsage)
	}
	os.Exit(run(os.Args[1:], time.Now(), os.Stdout, log))
}

// newLogger builds the same logger omafgen uses, from defaults and OMAFGEN_LOGGING_* variables.
func newLogger() (logger.Logger, error) {
	cfg, err := config.LoadLogging()
	if err != nil {
		return nil, err
	}
	base, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	return logger.NewLogrusAdapter(logger.WithComponent(base, "mpdstamp")), nil
}

func run(args []string, now time.Time, stdout io.Writer, log logger.Logger) int {
	if len(args) != 1 {
		fmt.Fprintln(stdout, "Usage : mpdstamp [filename]")
		return apperrors.ExitOK
	}

	path := args[0]
	fileLog := log.WithField("file", path)
	if err := mpd.Restamp(path, now); err != nil {
		fileLog.WithError(err).Error("Failed to restamp MPD")
		return apperrors.ExitCode(err)
	}

	fileLog.WithField(mpd.AvailabilityStartTime, now.UTC().Format(mpd.TimeFormat)).Info("MPD restamped")
	return apperrors.ExitOK
}
