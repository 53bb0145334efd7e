package files

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/globalsign/mgo/bson"
	log "github.com/sirupsen/logrus"
)

// IndexedFile identifies a log file by the hash of its first bytes so that
// the same file is not stored in a database twice
type IndexedFile struct {
	ID           bson.ObjectId `bson:"_id,omitempty"`
	Path         string        `bson:"filepath"`
	Length       int64         `bson:"length"`
	ModTime      time.Time     `bson:"modified"`
	Hash         string        `bson:"hash"`
	Database     string        `bson:"database"`
	Flows        int64         `bson:"flows"`
	Rejected     int64         `bson:"rejected"`
	ClassifiedAt time.Time     `bson:"time_complete"`
}

// hashLength is the number of leading bytes hashed to identify a file
const hashLength = 15000

// IndexFile gathers the metadata identifying the file at filePath
func IndexFile(filePath string) (*IndexedFile, error) {
	fileHandle, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer fileHandle.Close()

	fInfo, err := fileHandle.Stat()
	if err != nil {
		return nil, err
	}

	fHash, err := getFileHash(fileHandle, fInfo)
	if err != nil {
		return nil, err
	}

	return &IndexedFile{
		Path:    filePath,
		Length:  fInfo.Size(),
		ModTime: fInfo.ModTime(),
		Hash:    fHash,
	}, nil
}

// getFileHash md5's the first 15000 bytes of a file
func getFileHash(fileHandle *os.File, fInfo os.FileInfo) (string, error) {
	hash := md5.New()

	if fInfo.Size() >= hashLength {
		if _, err := io.CopyN(hash, fileHandle, hashLength); err != nil {
			return "", err
		}
	} else {
		if _, err := io.Copy(hash, fileHandle); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// IndexFiles indexes the given files using the given number of threads.
// Files which could not be indexed are logged and left out.
func IndexFiles(paths []string, threads int, logger *log.Logger) []*IndexedFile {
	n := len(paths)
	output := make([]*IndexedFile, n)
	indexingWG := new(sync.WaitGroup)

	if threads < 1 {
		threads = 1
	}

	for i := 0; i < threads; i++ {
		indexingWG.Add(1)

		go func(start int, jump int) {
			defer indexingWG.Done()
			for j := start; j < n; j += jump {
				indexedFile, err := IndexFile(paths[j])
				if err != nil {
					logger.WithFields(log.Fields{
						"file":  paths[j],
						"error": err.Error(),
					}).Warning("An error was encountered while indexing a file")
					//errored on files will be nil
					continue
				}
				output[j] = indexedFile
			}
		}(i, threads)
	}

	indexingWG.Wait()

	var indexed []*IndexedFile
	for _, file := range output {
		if file != nil {
			indexed = append(indexed, file)
		}
	}
	return indexed
}
