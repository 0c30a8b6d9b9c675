package engine

import (
	"github.com/spaghettifunk/cozy/engine/core"
)

// Input is the container the player opens.
type Input struct {
	Path string
	// Fallback is set when Path is the configured sample rather than a
	// user supplied argument.
	Fallback bool
}

// SelectInput picks the first positional argument. Without one, debug builds
// fall back to the sample path from the configuration.
func SelectInput(args []string, samplePath string, debug bool) (Input, error) {
	if len(args) > 0 && args[0] != "" {
		return Input{Path: args[0]}, nil
	}
	if debug && samplePath != "" {
		core.LogDebug("no input given, using sample %s", samplePath)
		return Input{Path: samplePath, Fallback: true}, nil
	}
	return Input{}, core.ErrNoInput
}
