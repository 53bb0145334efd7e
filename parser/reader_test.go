package parser

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/activecm/flowguard/config"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	logger := log.New()
	logger.Out = ioutil.Discard
	return logger
}

func connLine(i int) string {
	return fmt.Sprintf(`{"ts":%d.5,"uid":"C%d","id.orig_h":"10.0.0.%d","id.resp_h":"10.0.1.1","proto":"tcp","conn_state":"SF","history":"ShADadfF","orig_pkts":%d,"orig_ip_bytes":%d}`,
		1591367999+i, i, i%250, i+1, 40*(i+1))
}

func writeLog(t *testing.T, dir, name string, from, to int) string {
	var lines []string
	for i := from; i < to; i++ {
		lines = append(lines, connLine(i))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestReadMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeLog(t, dir, "conn.00:00:00-01:00:00.log", 0, 50),
		writeLog(t, dir, "conn.01:00:00-02:00:00.log", 50, 75),
		writeLog(t, dir, "conn.02:00:00-03:00:00.log", 75, 100),
	}

	reader := NewConnReader(2, nil, quietLogger())
	seen := make(map[string]bool)
	lastLine := make(map[string]int)
	for entry := range reader.Read(context.Background(), paths, 8) {
		require.NoError(t, entry.Err)
		require.NotNil(t, entry.Record)
		seen[entry.Record.UID] = true

		// lines of one file arrive in order
		assert.Greater(t, entry.Line, lastLine[entry.Path])
		lastLine[entry.Path] = entry.Line
	}
	assert.Len(t, seen, 100)
	assert.Equal(t, 50, lastLine[paths[0]])
}

func TestReadReportsErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "conn.log", 0, 2)
	broken := filepath.Join(dir, "conn_broken.log")
	require.NoError(t, ioutil.WriteFile(broken, []byte(connLine(5)+"\n{\"uid\": \n"+connLine(6)+"\n"), 0644))
	missing := filepath.Join(dir, "conn_missing.log")

	reader := NewConnReader(1, nil, quietLogger())
	var records, lineErrors, fileErrors int
	for entry := range reader.Read(context.Background(), []string{good, broken, missing}, 0) {
		if entry.Err == nil {
			records++
			continue
		}
		var perr *ParseError
		require.True(t, errors.As(entry.Err, &perr))
		if perr.Line == 0 {
			fileErrors++
			assert.Equal(t, missing, perr.Path)
		} else {
			lineErrors++
			assert.Equal(t, broken, perr.Path)
			assert.Equal(t, 2, perr.Line)
		}
	}
	assert.Equal(t, 4, records)
	assert.Equal(t, 1, lineErrors)
	assert.Equal(t, 1, fileErrors)
}

func TestReadStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "conn.log", 0, 500)

	ctx, cancel := context.WithCancel(context.Background())
	reader := NewConnReader(1, nil, quietLogger())
	entries := reader.Read(ctx, []string{path}, 0)

	<-entries
	cancel()

	count := 1
	for range entries {
		count++
	}
	assert.Less(t, count, 500)
}

func TestReadAppliesFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "conn.log", 0, 10)

	filter := NewFilter(config.FilteringRunningCfg{
		NeverIncluded: subnets(t, "10.0.0.3", "10.0.0.7"),
	})
	reader := NewConnReader(1, filter, quietLogger())

	var uids []string
	for entry := range reader.Read(context.Background(), []string{path}, 0) {
		require.NoError(t, entry.Err)
		uids = append(uids, entry.Record.UID)
	}
	assert.Len(t, uids, 8)
	assert.NotContains(t, uids, "C3")
	assert.NotContains(t, uids, "C7")
	assert.EqualValues(t, 2, reader.Filtered())
}
