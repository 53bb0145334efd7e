package parser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/activecm/flowguard/parser/files"
	"github.com/activecm/flowguard/pkg/flow"
	log "github.com/sirupsen/logrus"
)

type (
	//Flow is a conn log entry converted for classification. Exactly one of
	//Record and Err is set.
	Flow struct {
		Path   string
		Line   int
		Record *flow.Record
		Err    error
	}

	//ParseError reports a log file or line which could not be read. Line is
	//zero when the whole file was unreadable.
	ParseError struct {
		Path string
		Line int
		Err  error
	}

	//ConnReader reads Zeek conn logs, spreading the files over several
	//goroutines
	ConnReader struct {
		threads  int
		filter   *Filter
		filtered int64
		log      *log.Logger
	}
)

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewConnReader creates a reader using the given number of parsing threads.
// Records skipped by filter are dropped, a nil filter keeps every record.
func NewConnReader(threads int, filter *Filter, logger *log.Logger) *ConnReader {
	if threads < 1 {
		threads = 1
	}
	return &ConnReader{
		threads: threads,
		filter:  filter,
		log:     logger,
	}
}

// Filtered returns the number of records dropped by the filter so far
func (r *ConnReader) Filtered() int64 {
	return atomic.LoadInt64(&r.filtered)
}

// Read streams the entries of every conn log in paths. The returned channel
// holds up to buffer entries and is closed once every file has been read or
// ctx is cancelled. Entries of a single file arrive in file order.
func (r *ConnReader) Read(ctx context.Context, paths []string, buffer int) <-chan Flow {
	out := make(chan Flow, buffer)

	//set up parallel parsing
	n := len(paths)
	parsingWG := new(sync.WaitGroup)

	for i := 0; i < r.threads && i < n; i++ {
		parsingWG.Add(1)
		go func(start int, jump int) {
			defer parsingWG.Done()
			//comb over array
			for j := start; j < n; j += jump {
				if !r.readFile(ctx, paths[j], out) {
					return
				}
			}
		}(i, r.threads)
	}

	go func() {
		parsingWG.Wait()
		close(out)
	}()
	return out
}

// readFile sends the entries of a single file to out. It returns false once
// ctx is cancelled.
func (r *ConnReader) readFile(ctx context.Context, path string, out chan<- Flow) bool {
	send := func(f Flow) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	logFile, err := files.OpenLogFile(path, r.log)
	if err != nil {
		r.log.WithFields(log.Fields{
			"file":  path,
			"error": err.Error(),
		}).Error("Could not open file for parsing")
		return send(Flow{Path: path, Err: &ParseError{Path: path, Err: err}})
	}
	defer func() {
		if err := logFile.Close(); err != nil {
			r.log.WithFields(log.Fields{
				"file":  path,
				"error": err.Error(),
			}).Debug("Error closing log file")
		}
	}()

	r.log.WithField("file", path).Info("Parsing conn log")

	for {
		datum, err := logFile.Next()
		if err == io.EOF {
			return true
		}

		entry := Flow{Path: path, Line: logFile.Line()}
		if err != nil {
			entry.Err = &ParseError{Path: path, Line: entry.Line, Err: err}
			r.log.WithFields(log.Fields{
				"file":  path,
				"line":  entry.Line,
				"error": err.Error(),
			}).Warn("Could not parse log line")
		} else {
			entry.Record = datum.ToRecord()
			if r.filter.Skip(entry.Record) {
				atomic.AddInt64(&r.filtered, 1)
				continue
			}
		}

		if !send(entry) {
			return false
		}
	}
}
