package resources

import (
	"os"
	"testing"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/database"
)

// MongoURIEnv names the environment variable holding the MongoDB URI used
// by integration tests
const MongoURIEnv = "FLOWGUARD_TEST_MONGODB_URI"

// InitIntegrationTestingResources creates a default testing
// resource bundle for use with integration testing.
// The tests are skipped unless MongoURIEnv is set.
func InitIntegrationTestingResources(t *testing.T) *Resources {
	if testing.Short() {
		t.Skip()
	}

	mongoURI := os.Getenv(MongoURIEnv)
	if mongoURI == "" {
		t.Skip(MongoURIEnv + " is required to run FlowGuard integration tests")
	}

	conf, err := config.LoadTestingConfig(mongoURI)
	if err != nil {
		t.Fatal(err)
	}

	// Fire up the logging system
	log, err := initLogger(&conf.S.Log)
	if err != nil {
		t.Fatal(err)
	}

	// Allows code to interact with the database
	db, err := database.NewDB(conf, log)
	if err != nil {
		t.Fatal(err)
	}

	metaDB, err := database.NewMetaDB(conf, db.Session, log)
	if err != nil {
		t.Fatal(err)
	}

	return &Resources{
		Config: conf,
		Log:    log,
		DB:     db,
		MetaDB: metaDB,
	}
}
