package resources

import (
	"fmt"
	"os"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/database"
	"github.com/activecm/flowguard/pkg/classify"
	"github.com/activecm/flowguard/pkg/ensemble"
	"github.com/activecm/flowguard/pkg/features"
	"github.com/activecm/flowguard/pkg/inference"
	"github.com/activecm/flowguard/pkg/normalizer"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type (
	// Resources provides a data structure for passing system Resources
	Resources struct {
		Config   *config.Config
		Log      *log.Logger
		DB       *database.DB
		MetaDB   *database.MetaDB
		Model    *Model
		Service  *classify.Service
		Registry *prometheus.Registry
	}

	// Model bundles the fitted artifacts the classification service runs on
	Model struct {
		Features   *features.Configuration
		Classifier *ensemble.Model
		Labels     *inference.LabelTable
		normalizer *normalizer.Normalizer
	}
)

// InitResources grabs the configuration file, loads the fitted artifacts and
// builds the classification service. A MongoDB connection is only made when
// logging to the database is enabled. Any failure ends the process before
// anything is served.
func InitResources(cfgPath string) *Resources {
	conf, err := config.GetConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to config: %s\n", err.Error())
		os.Exit(-1)
	}

	r, err := NewResources(conf, conf.S.Log.LogToDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %s\n", err.Error())
		os.Exit(-1)
	}
	return r
}

// InitDBResources grabs the configuration file and connects to MongoDB
// without loading the fitted artifacts
func InitDBResources(cfgPath string) *Resources {
	conf, err := config.GetConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to config: %s\n", err.Error())
		os.Exit(-1)
	}

	// Fire up the logging system
	log, err := initLogger(&conf.S.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prep logger: %s\n", err.Error())
		os.Exit(-1)
	}

	r := &Resources{
		Config: conf,
		Log:    log,
	}
	if err := r.ConnectDB(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %s\n", err.Error())
		os.Exit(-1)
	}
	return r
}

// NewResources builds the resource bundle for conf, returning the first
// startup failure
func NewResources(conf *config.Config, withDB bool) (*Resources, error) {
	// Fire up the logging system
	log, err := initLogger(&conf.S.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to prep logger: %w", err)
	}

	r := &Resources{
		Config:   conf,
		Log:      log,
		Registry: prometheus.NewRegistry(),
	}

	if withDB {
		if err := r.ConnectDB(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	r.Model, err = LoadModel(conf)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.Service, err = classify.New(
		r.Model.normalizer, inference.NewAdapter(r.Model.Classifier, r.Model.Labels),
		conf.S.Model.MaliciousLabels, log, r.Registry,
	)
	if err != nil {
		r.Close()
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"preprocessing": conf.S.Model.PreprocessingPath,
		"classifier":    conf.S.Model.ClassifierPath,
		"convention":    conf.R.Model.Convention.String(),
		"trees":         r.Model.Classifier.NumTrees(),
	}).Info("Loaded model artifacts")

	return r, nil
}

// ConnectDB opens the MongoDB session and, when configured, starts logging
// to the metadatabase
func (r *Resources) ConnectDB() error {
	if r.DB != nil {
		return nil
	}

	// Allows code to interact with the database
	db, err := database.NewDB(r.Config, r.Log)
	if err != nil {
		return err
	}
	r.DB = db

	r.MetaDB, err = database.NewMetaDB(r.Config, db.Session, r.Log)
	if err != nil {
		return fmt.Errorf("failed to prepare the metadatabase: %w", err)
	}

	//Begin logging to the metadatabase
	if r.Config.S.Log.LogToDB {
		err = addMongoLogger(r.Log, db.Session, r.Config.S.MongoDB.MetaDB, r.Config.T.Log.LogTable)
		if err != nil {
			return fmt.Errorf("failed to log to the metadatabase: %w", err)
		}
	}
	return nil
}

// Close releases the MongoDB session if one was opened
func (r *Resources) Close() {
	if r.DB != nil {
		r.DB.Close()
	}
}
