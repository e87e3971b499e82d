package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
)

var resolutionPattern = regexp.MustCompile(`\s*((\d+)x(\d+))`)

// GuessFilePrefix derives the sequence name from an input file name: the base
// name up to the first WxH token, or without its extension when there is
// none, with underscores removed.
//
//	Formula3VR_Garage_8192x4096.yuv -> Formula3VRGarage
func GuessFilePrefix(path string) string {
	base := filepath.Base(path)

	var prefix string
	if loc := resolutionPattern.FindStringSubmatchIndex(base); loc != nil {
		prefix = base[:loc[2]]
	} else {
		prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.ReplaceAll(prefix, "_", "")
}
