package upm

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rubiojr/plup/internal/log"
)

const snapshotSuffix = "-SNAPSHOT"

// ParseVersion parses a plugin version. A trailing -SNAPSHOT becomes a
// SNAPSHOT pre-release so that 1.2.0-SNAPSHOT sorts before 1.2.0.
func ParseVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, snapshotSuffix) {
		return semver.NewVersion(s)
	}

	v, err := semver.NewVersion(strings.TrimSuffix(s, snapshotSuffix))
	if err != nil {
		return nil, err
	}
	snap, err := v.SetPrerelease("SNAPSHOT")
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// IsDowngrade reports whether installing candidate over installed would move
// to an older version. Versions that do not parse are never a downgrade.
func IsDowngrade(installed, candidate string) bool {
	iv, err := ParseVersion(installed)
	if err != nil {
		log.Debug("Skipping version check", "version", installed, "error", err)
		return false
	}
	cv, err := ParseVersion(candidate)
	if err != nil {
		log.Debug("Skipping version check", "version", candidate, "error", err)
		return false
	}
	return iv.GreaterThan(cv)
}
