package database

import (
	"sync"
	"sync/atomic"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	log "github.com/sirupsen/logrus"
)

type (
	// BulkChange represents mgo upserts, updates, and removals
	BulkChange struct {
		Selector  interface{} // The selector document
		Update    interface{} // The update document if updating the document
		Upsert    bool        // Whether to insert in case the document isn't found
		Remove    bool        // Whether to remove the document found rather than updating
		SelectAll bool        // Whether to use RemoveAll/ UpdateAll
	}

	// BulkChanges is a map of collections to the changes that should be applied to each one
	BulkChanges map[string][]BulkChange

	// MgoBulkWriter is a pipeline worker which properly batches bulk updates for MongoDB
	MgoBulkWriter struct {
		db           *DB              // provides access to MongoDB
		log          *log.Logger      // main logger for FlowGuard
		writeChannel chan BulkChanges // holds analyzed data
		writeWg      *sync.WaitGroup  // wait for writing to finish
		writerName   string           // used in error reporting
		unordered    bool             // if the operations can be applied in any order, MongoDB can run the updates in parallel
		maxBulkCount int              // max number of changes to include in each bulk update
		maxBulkSize  int              // max total size of BSON documents making up each bulk update
		failed       int64            // number of bulk operations MongoDB rejected
	}
)

// Size serializes the changes to BSON using provided buffer and returns total size
// of the BSON description of the changes. Note this method slightly underestimates the
// total amount BSON needed to describe the changes since extra flags may be sent along.
func (m BulkChange) Size(buffer []byte) ([]byte, int) {
	size := 0
	buffer = buffer[:0]

	if m.Selector != nil {
		buffer, _ = bson.MarshalBuffer(m.Selector, buffer)
		size += len(buffer)
		buffer = buffer[:0]
	}
	if m.Update != nil {
		buffer, _ = bson.MarshalBuffer(m.Update, buffer)
		size += len(buffer)
		buffer = buffer[:0]
	}
	return buffer, size
}

// Apply adds the change described to a bulk buffer
func (m BulkChange) Apply(bulk *mgo.Bulk) {
	if m.Selector == nil {
		return // can't describe a change without a selector
	}

	switch {
	case m.Remove && m.SelectAll:
		bulk.RemoveAll(m.Selector)
	case m.Remove:
		bulk.Remove(m.Selector)
	case m.Update != nil && m.Upsert:
		bulk.Upsert(m.Selector, m.Update)
	case m.Update != nil && m.SelectAll:
		bulk.UpdateAll(m.Selector, m.Update)
	case m.Update != nil:
		bulk.Update(m.Selector, m.Update)
	}
}

// NewBulkWriter creates a new writer object to write output data to collections
func NewBulkWriter(db *DB, log *log.Logger, unorderedWritesOK bool, writerName string) *MgoBulkWriter {
	return &MgoBulkWriter{
		db:           db,
		log:          log,
		writeChannel: make(chan BulkChanges),
		writeWg:      new(sync.WaitGroup),
		writerName:   writerName,
		unordered:    unorderedWritesOK,
		maxBulkCount: 500,
		maxBulkSize:  15 * 1000 * 1000,
	}
}

// Collect sends a group of results to the writer for writing out to the database
func (w *MgoBulkWriter) Collect(data BulkChanges) {
	w.writeChannel <- data
}

// Close waits for the write threads to finish
func (w *MgoBulkWriter) Close() {
	close(w.writeChannel)
	w.writeWg.Wait()
}

// Failed returns the number of bulk operations which MongoDB rejected
func (w *MgoBulkWriter) Failed() int64 {
	return atomic.LoadInt64(&w.failed)
}

// Start kicks off a new write thread
func (w *MgoBulkWriter) Start() {
	w.writeWg.Add(1)
	go func() {
		defer w.writeWg.Done()
		ssn := w.db.Session.Copy()
		defer ssn.Close()

		bulkBuffers := map[string]*mgo.Bulk{}
		bulkBufferSizes := map[string]int{}
		bulkBufferLengths := map[string]int{}
		var sizeBuffer []byte
		var changeSize int

		flush := func(tgtColl string) {
			if bulkBufferLengths[tgtColl] == 0 {
				return
			}
			info, err := bulkBuffers[tgtColl].Run()
			if err != nil {
				atomic.AddInt64(&w.failed, 1)
				w.log.WithFields(log.Fields{
					"Module":     w.writerName,
					"Collection": tgtColl,
					"Info":       info,
				}).Error(err)
			}
			bulkBuffers[tgtColl] = w.newBulk(ssn, tgtColl)
			bulkBufferLengths[tgtColl] = 0
			bulkBufferSizes[tgtColl] = 0
		}

		for data := range w.writeChannel {
			for tgtColl, bulkChanges := range data {
				if _, bufferExists := bulkBuffers[tgtColl]; !bufferExists {
					bulkBuffers[tgtColl] = w.newBulk(ssn, tgtColl)
				}

				for _, change := range bulkChanges {
					sizeBuffer, changeSize = change.Size(sizeBuffer)

					if bulkBufferLengths[tgtColl] >= w.maxBulkCount || bulkBufferSizes[tgtColl]+changeSize >= w.maxBulkSize {
						flush(tgtColl)
					}

					change.Apply(bulkBuffers[tgtColl])
					bulkBufferLengths[tgtColl]++
					bulkBufferSizes[tgtColl] += changeSize
				}
			}
		}
		for tgtColl := range bulkBuffers {
			flush(tgtColl)
		}
	}()
}

func (w *MgoBulkWriter) newBulk(ssn *mgo.Session, tgtColl string) *mgo.Bulk {
	bulk := ssn.DB(w.db.GetSelectedDB()).C(tgtColl).Bulk()
	if w.unordered {
		bulk.Unordered()
	}
	return bulk
}
