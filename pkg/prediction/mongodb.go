package prediction

import (
	"path/filepath"
	"time"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/database"
	"github.com/activecm/flowguard/util"
	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

type repo struct {
	database *database.DB
	config   *config.Config
	log      *log.Logger
	threads  int
	progress bool
}

// NewMongoRepository bundles the given resources for storing predictions in
// the selected MongoDB database
func NewMongoRepository(db *database.DB, conf *config.Config, logger *log.Logger, threads int, progress bool) Repository {
	return &repo{
		database: db,
		config:   conf,
		log:      logger,
		threads:  util.Max(1, threads),
		progress: progress,
	}
}

// CreateIndexes creates indexes for the prediction collection
func (r *repo) CreateIndexes() error {
	// set collection name
	collectionName := r.config.T.Prediction.PredictionTable

	// if collection exists, we don't need to do anything else
	if r.database.CollectionExists(collectionName) {
		return nil
	}

	// set desired indexes
	indexes := []mgo.Index{
		{Key: []string{"uid"}},
		{Key: []string{"label"}},
		{Key: []string{"-confidence"}},
	}

	// create collection
	return r.database.CreateCollection(collectionName, indexes)
}

// Upsert stores the given predictions and returns how many bulk writes failed
func (r *repo) Upsert(predictions []*Input) int {
	if len(predictions) == 0 {
		return 0
	}

	// Create the workers
	writerWorker := database.NewBulkWriter(r.database, r.log, true, "prediction")

	analyzerWorker := newAnalyzer(
		r.config.T.Prediction.PredictionTable,
		filepath.Base(r.config.S.Model.ClassifierPath),
		time.Now(),
		writerWorker.Collect,
		writerWorker.Close,
	)

	// kick off the threaded goroutines
	for i := 0; i < r.threads; i++ {
		analyzerWorker.start()
		writerWorker.Start()
	}

	var p *mpb.Progress
	var bar *mpb.Bar
	if r.progress {
		// progress bar for troubleshooting
		p = mpb.New(mpb.WithWidth(20))
		bar = p.AddBar(int64(len(predictions)),
			mpb.PrependDecorators(
				decor.Name("\t[-] Storing Predictions:", decor.WC{W: 30, C: decor.DidentRight}),
				decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}

	// loop over predictions
	for _, entry := range predictions {
		start := time.Now()
		analyzerWorker.collect(entry)
		if bar != nil {
			bar.IncrBy(1, time.Since(start))
		}
	}

	if p != nil {
		p.Wait()
	}

	// start the closing cascade (this will also close the other channels)
	analyzerWorker.close()

	return int(writerWorker.Failed())
}
