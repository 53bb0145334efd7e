package database

import (
	"testing"

	"github.com/blang/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatibleVersions(t *testing.T) {
	running := semver.MustParse("2.3.1")

	testCases := []struct {
		existing   string
		compatible bool
	}{
		{"v2.0.0", true},
		{"2.9.9", true},
		{"v1.9.0", false},
		{"v3.0.0-rc1", false},
	}

	for _, test := range testCases {
		compatible, err := compatibleVersions(running, test.existing)
		require.NoError(t, err, test.existing)
		assert.Equal(t, test.compatible, compatible, test.existing)
	}

	_, err := compatibleVersions(running, "")
	assert.Error(t, err)
}
