package freebox

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/benmeehan/fbx-agent/internal/constants"
)

// shortVersion returns N for a "vN" API version.
func shortVersion(v string) (int, bool) {
	digits, ok := strings.CutPrefix(v, "v")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// resolveAPIVersion checks the requested API version against the one the
// appliance advertises. It only warns, except for versions the appliance
// cannot serve, which fall back to the default version.
func resolveAPIVersion(requested, advertised string, logger zerolog.Logger) string {
	baseline, _ := shortVersion(constants.DefaultAPIVersion)

	server, err := semver.NewVersion(advertised)
	if err != nil {
		logger.Warn().Str("api_version", advertised).Msg("Cannot read the appliance API version")
		if requested == constants.ServerAPIVersion {
			return constants.DefaultAPIVersion
		}
		return requested
	}
	serverMajor := int(server.Major())

	if requested == constants.ServerAPIVersion {
		requested = fmt.Sprintf("v%d", serverMajor)
	}

	short, ok := shortVersion(requested)
	switch {
	case !ok:
		logger.Warn().
			Str("requested", requested).
			Msgf("Invalid API version, resetting to %s", constants.DefaultAPIVersion)
		return constants.DefaultAPIVersion
	case baseline < serverMajor && short == serverMajor:
		logger.Warn().Msgf("Using new API version %s, results may vary", requested)
	case short < baseline && short > 0:
		logger.Warn().Msgf("Using deprecated API version %s, results may vary", requested)
	case short > serverMajor || short < 1:
		logger.Warn().
			Str("requested", requested).
			Str("server", advertised).
			Msgf("Freebox server does not support this API version, resetting to %s", constants.DefaultAPIVersion)
		return constants.DefaultAPIVersion
	}
	return requested
}
