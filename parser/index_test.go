package parser

import (
	"errors"
	"testing"

	"github.com/activecm/flowguard/parser/files"
	"github.com/stretchr/testify/assert"
)

type fileIndex struct {
	files map[string][]files.IndexedFile
	err   error
}

func (f fileIndex) GetFiles(database string) ([]files.IndexedFile, error) {
	return f.files[database], f.err
}

func TestRemoveClassifiedFiles(t *testing.T) {
	logger := quietLogger()

	index := fileIndex{files: map[string][]files.IndexedFile{
		"site-a": {{Hash: "aaa", Database: "site-a"}},
		"site-b": {{Hash: "bbb", Database: "site-b"}},
	}}

	candidates := func() []*files.IndexedFile {
		return []*files.IndexedFile{
			{Path: "/logs/conn.1.log", Hash: "aaa"},
			{Path: "/logs/conn.2.log", Hash: "bbb"},
			{Path: "/logs/copy/conn.2.log", Hash: "bbb"},
			{Path: "/logs/conn.3.log", Hash: "ccc"},
		}
	}

	kept := RemoveClassifiedFiles(candidates(), index, "site-a", logger)
	var paths []string
	for _, file := range kept {
		assert.Equal(t, "site-a", file.Database)
		paths = append(paths, file.Path)
	}
	assert.Equal(t, []string{"/logs/conn.2.log", "/logs/conn.3.log"}, paths)

	// a failing index keeps everything but duplicates
	kept = RemoveClassifiedFiles(candidates(), fileIndex{err: errors.New("down")}, "site-c", logger)
	assert.Len(t, kept, 3)
}
