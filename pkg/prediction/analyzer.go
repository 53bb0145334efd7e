package prediction

import (
	"sync"
	"time"

	"github.com/activecm/flowguard/database"
	"github.com/globalsign/mgo/bson"
	"github.com/google/uuid"
)

type (
	//analyzer turns classified flows into upserts for the prediction collection
	analyzer struct {
		collection       string                     // target collection
		model            string                     // identifies the classifier that produced the labels
		imported         time.Time                  // shared import time of this run
		analyzedCallback func(database.BulkChanges) // called on each analyzed result
		closedCallback   func()                     // called when .close() is called and no more calls to analyzedCallback will be made
		analysisChannel  chan *Input                // holds unanalyzed data
		analysisWg       sync.WaitGroup             // wait for analysis to finish
	}
)

// newAnalyzer creates a new collector for classified flows
func newAnalyzer(collection, model string, imported time.Time,
	analyzedCallback func(database.BulkChanges), closedCallback func()) *analyzer {
	return &analyzer{
		collection:       collection,
		model:            model,
		imported:         imported,
		analyzedCallback: analyzedCallback,
		closedCallback:   closedCallback,
		analysisChannel:  make(chan *Input),
	}
}

// collect sends a classified flow to be analyzed
func (a *analyzer) collect(data *Input) {
	a.analysisChannel <- data
}

// close waits for the collector to finish
func (a *analyzer) close() {
	close(a.analysisChannel)
	a.analysisWg.Wait()
	a.closedCallback()
}

// start kicks off a new analysis thread
func (a *analyzer) start() {
	a.analysisWg.Add(1)
	go func() {
		defer a.analysisWg.Done()
		for data := range a.analysisChannel {
			a.analyzedCallback(database.BulkChanges{
				a.collection: []database.BulkChange{a.change(data)},
			})
		}
	}()
}

// change builds the upsert for a single flow. Flows are keyed by their
// Zeek uid, so classifying the same log twice replaces the earlier label.
// Flows without a uid always insert.
func (a *analyzer) change(data *Input) database.BulkChange {
	id := uuid.New().String()
	uid := data.UID

	update := bson.M{
		"$set": bson.M{
			"uid":        uid,
			"src":        data.Source,
			"dst":        data.Destination,
			"ts":         data.TimeStamp,
			"label":      data.Label,
			"confidence": data.Confidence,
			"malicious":  data.Malicious,
			"model":      a.model,
			"imported":   a.imported,
		},
	}

	// the selector supplies _id when there is no uid to match on
	if uid == "" {
		return database.BulkChange{Selector: bson.M{"_id": id}, Update: update, Upsert: true}
	}

	update["$setOnInsert"] = bson.M{"_id": id}
	return database.BulkChange{Selector: bson.M{"uid": uid}, Update: update, Upsert: true}
}
