package upm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionSnapshot(t *testing.T) {
	snap, err := ParseVersion("1.2.0-SNAPSHOT")
	require.NoError(t, err)
	release, err := ParseVersion("1.2.0")
	require.NoError(t, err)

	assert.Equal(t, "SNAPSHOT", snap.Prerelease())
	assert.True(t, snap.LessThan(release))
}

func TestIsDowngrade(t *testing.T) {
	tests := []struct {
		installed string
		candidate string
		want      bool
	}{
		{"2.0", "1.9", true},
		{"2.0", "2.0", false},
		{"1.9", "2.0", false},
		{"2.0.0", "2.0.0-SNAPSHOT", true},
		{"2.0.0-SNAPSHOT", "2.0.0", false},
		{"2.1-SNAPSHOT", "2.0", true},
		{"not a version", "1.0", false},
		{"1.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.installed+"->"+tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDowngrade(tt.installed, tt.candidate))
		})
	}
}
