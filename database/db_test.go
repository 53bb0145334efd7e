package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckServerVersion(t *testing.T) {
	cases := []struct {
		version string
		ok      bool
	}{
		{"4.2.0", true},
		{"4.2.23", true},
		{"4.4.18", true},
		{"4.1.9", false},
		{"5.0.0", false},
		{"3.6.8", false},
		{"not-a-version", false},
	}
	for _, tc := range cases {
		t.Run(tc.version, func(t *testing.T) {
			err := checkServerVersion(tc.version)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
