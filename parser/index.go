package parser

import (
	"github.com/activecm/flowguard/parser/files"
	log "github.com/sirupsen/logrus"
)

// FileIndex lists the log files already classified into a database
type FileIndex interface {
	GetFiles(database string) ([]files.IndexedFile, error)
}

// RemoveClassifiedFiles checks all indexedFiles passed in to ensure
// that they have not previously been classified into the same database.
// The files are compared based on their hashes (md5 of first 15000 bytes).
// Every returned file is assigned to database.
func RemoveClassifiedFiles(indexedFiles []*files.IndexedFile, index FileIndex,
	database string, logger *log.Logger) []*files.IndexedFile {

	oldFiles, err := index.GetFiles(database)
	if err != nil {
		logger.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Could not obtain a list of previously classified files")
	}

	seen := make(map[string]struct{}, len(oldFiles))
	for _, oldFile := range oldFiles {
		seen[oldFile.Hash] = struct{}{}
	}

	var toReturn []*files.IndexedFile
	for _, newFile := range indexedFiles {
		if _, have := seen[newFile.Hash]; have {
			logger.WithFields(log.Fields{
				"path":            newFile.Path,
				"target_database": database,
			}).Warning("Refusing to classify file into the same database twice")
			continue
		}
		// identical copies passed in together are only read once
		seen[newFile.Hash] = struct{}{}
		newFile.Database = database
		toReturn = append(toReturn, newFile)
	}
	return toReturn
}
