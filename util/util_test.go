package util

import (
	"net"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileExists(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), ".jeinwei8380243unt4u")
	file, err := os.OpenFile(filePath, os.O_RDONLY|os.O_CREATE, 0666)
	assert.Nil(t, err)
	file.Close()
	exists, err := Exists(filePath)
	assert.Nil(t, err)
	assert.True(t, exists)
	os.Remove(filePath)
	exists, err = Exists(filePath)
	assert.Nil(t, err)
	assert.False(t, exists)

	currBinary, err := os.Executable()
	assert.Nil(t, err)
	badPath := path.Join(currBinary, "non-existant-file")

	_, err = Exists(badPath)
	assert.NotNil(t, err)
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(filepath.Join(dir, "missing")))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 0.9, RoundTo(0.9, 4))
	assert.Equal(t, 0.1235, RoundTo(0.12345678, 4))
	assert.Equal(t, 0.1234, RoundTo(0.12344999, 4))
	assert.Equal(t, 1.0, RoundTo(0.99999, 4))
	assert.Equal(t, 0.0, RoundTo(0.00004, 4))
}

func TestMax(t *testing.T) {
	large := 100
	small := -100
	assert.Equal(t, large, Max(large, small))
	assert.Equal(t, large, Max(small, large))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1m0s", FormatDuration(time.Minute))
	assert.Equal(t, "1d1h0m0s", FormatDuration(25*time.Hour))
	assert.Equal(t, "1y0d0s", FormatDuration(365*24*time.Hour))
}

func TestParseSubnets(t *testing.T) {
	subnets, err := ParseSubnets([]string{"10.0.0.0/8", "192.168.1.7", "fd00::/8", "2001:db8::1"})
	assert.NoError(t, err)
	assert.Len(t, subnets, 4)

	assert.True(t, ContainsIP(subnets, net.ParseIP("10.20.30.40")))
	assert.True(t, ContainsIP(subnets, net.ParseIP("192.168.1.7")))
	assert.False(t, ContainsIP(subnets, net.ParseIP("192.168.1.8")))
	assert.True(t, ContainsIP(subnets, net.ParseIP("fd12::5")))
	assert.True(t, ContainsIP(subnets, net.ParseIP("2001:db8::1")))
	assert.False(t, ContainsIP(subnets, net.ParseIP("2001:db8::2")))
	assert.False(t, ContainsIP(subnets, nil))

	subnets, err = ParseSubnets(nil)
	assert.NoError(t, err)
	assert.Empty(t, subnets)

	_, err = ParseSubnets([]string{"10.0.0.0/8", "not-an-address"})
	assert.Error(t, err)
}
