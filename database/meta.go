package database

import (
	"sync"
	"time"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/parser/files"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	log "github.com/sirupsen/logrus"
)

// UpdateCheckMessage marks the log entries recording a check for a newer
// release. The most recent one is read back by LastCheck.
const UpdateCheckMessage = "Checking versions..."

type (

	// MetaDB exports control for the meta database
	MetaDB struct {
		lock     *sync.Mutex    // Read and write lock
		config   *config.Config // configuration info
		dbHandle *mgo.Session   // Database handle
		log      *log.Logger    // Logging object
	}

	// LogInfo defines information about the UpdateChecker log
	LogInfo struct {
		ID      bson.ObjectId `bson:"_id,omitempty"`   // Ident
		Time    time.Time     `bson:"LastUpdateCheck"` // Time of the check
		Message string        `bson:"Message"`         // UpdateCheckMessage
		Version string        `bson:"NewestVersion"`   // Newest release at the time
	}

	// DBMetaInfo defines some information about a database holding predictions
	DBMetaInfo struct {
		ID               bson.ObjectId `bson:"_id,omitempty"`     // Ident
		Name             string        `bson:"name"`              // Top level name of the database
		ClassifyFinished bool          `bson:"classify_finished"` // Has the last classification run finished
		Model            string        `bson:"model"`             // Classifier artifact used for the predictions
		ClassifyVersion  string        `bson:"classify_version"`  // FlowGuard version at classification
	}
)

// NewMetaDB instantiates a new handle for the FlowGuard MetaDatabase
func NewMetaDB(config *config.Config, dbHandle *mgo.Session,
	log *log.Logger) (*MetaDB, error) {
	metaDB := &MetaDB{
		lock:     new(sync.Mutex),
		config:   config,
		dbHandle: dbHandle,
		log:      log,
	}
	//Build Meta collection
	if !metaDB.isBuilt() {
		if err := metaDB.createMetaDB(); err != nil {
			return nil, err
		}
	}
	return metaDB, nil
}

// LastCheck returns most recent version check
func (m *MetaDB) LastCheck() (time.Time, semver.Version) {
	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	iter := ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Log.LogTable).
		Find(bson.M{"Message": UpdateCheckMessage}).Sort("-LastUpdateCheck").Iter()

	var db LogInfo
	iter.Next(&db)
	iter.Close()

	retVersion, err := semver.ParseTolerant(db.Version)

	if err == nil {
		return db.Time, retVersion
	}

	return time.Time{}, semver.Version{}
}

// AddNewDB adds a new database to the DBMetaInfo table
func (m *MetaDB) AddNewDB(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	err := ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.DatabasesTable).Insert(
		DBMetaInfo{
			Name:             name,
			ClassifyFinished: false,
			ClassifyVersion:  m.config.S.Version,
		},
	)
	if err != nil {
		m.log.WithFields(log.Fields{
			"error": err.Error(),
			"name":  name,
		}).Error("failed to create new db document")
		return err
	}

	return nil
}

// DeleteDB removes a database managed by FlowGuard
func (m *MetaDB) DeleteDB(name string) error {
	_, err := m.GetDBMetaInfo(name)
	if err != nil {
		m.log.WithFields(log.Fields{
			"database_requested": name,
			"error":              err.Error(),
		}).Error("database not found in metadata directory")
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	//delete the record
	err = ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.DatabasesTable).Remove(bson.M{"name": name})
	if err != nil {
		return err
	}

	//drop the data
	if err = ssn.DB(name).DropDatabase(); err != nil {
		return err
	}

	//delete any classified file records associated
	_, err = ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.FilesTable).RemoveAll(bson.M{"database": name})
	return err
}

// MarkDBClassified marks whether a classification run over a database has
// finished and which classifier produced it
func (m *MetaDB) MarkDBClassified(name string, complete bool, model string) error {
	dbr, err := m.GetDBMetaInfo(name)

	if err != nil {
		m.log.WithFields(log.Fields{
			"database_requested": name,
			"error":              err.Error(),
		}).Error("database not found in metadata directory")
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	err = ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.DatabasesTable).
		Update(bson.M{"_id": dbr.ID}, bson.M{
			"$set": bson.D{
				{Name: "classify_finished", Value: complete},
				{Name: "model", Value: model},
				{Name: "classify_version", Value: m.config.S.Version},
			},
		})

	if err != nil {
		m.log.WithFields(log.Fields{
			"metadb_attempted":   m.config.S.MongoDB.MetaDB,
			"database_requested": name,
			"_id":                dbr.ID.Hex(),
			"error":              err.Error(),
		}).Error("could not update database entry in meta")
		return err
	}
	return nil
}

// runDBMetaInfoQuery runs a MongoDB query against the MetaDB Databases Table
func (m *MetaDB) runDBMetaInfoQuery(queryDoc bson.M) ([]DBMetaInfo, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	var results []DBMetaInfo
	err := ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.DatabasesTable).Find(queryDoc).Sort("name").All(&results)
	return results, err
}

// GetDBMetaInfo returns a meta db entry
func (m *MetaDB) GetDBMetaInfo(name string) (DBMetaInfo, error) {
	results, err := m.runDBMetaInfoQuery(bson.M{"name": name})
	if err != nil {
		return DBMetaInfo{}, err
	}
	if len(results) == 0 {
		return DBMetaInfo{}, mgo.ErrNotFound
	}
	return results[0], nil
}

// GetDatabases returns the databases being tracked in metadb
func (m *MetaDB) GetDatabases() ([]DBMetaInfo, error) {
	return m.runDBMetaInfoQuery(nil)
}

// CheckCompatible checks if a database was classified with a version of
// FlowGuard which is compatible with the running version
func (m *MetaDB) CheckCompatible(targetDatabase string) (bool, error) {
	dbData, err := m.GetDBMetaInfo(targetDatabase)
	if err != nil {
		return false, err
	}
	return compatibleVersions(m.config.R.Version, dbData.ClassifyVersion)
}

// compatibleVersions reports whether a database written by the version
// existing can be extended by the running version
func compatibleVersions(running semver.Version, existing string) (bool, error) {
	existingVer, err := semver.ParseTolerant(existing)
	if err != nil {
		return false, err
	}
	return running.Major == existingVer.Major, nil
}

///////////////////////////////////////////////////////////////////////////////
//                            File Processing                                //
///////////////////////////////////////////////////////////////////////////////

// GetFiles gets the log files already classified into the given database.
// In the case of failure it returns nil and logs an error.
func (m *MetaDB) GetFiles(database string) ([]files.IndexedFile, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	var toReturn []files.IndexedFile

	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	err := ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.FilesTable).
		Find(bson.M{"database": database}).All(&toReturn)
	if err != nil {
		m.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("could not fetch files from meta database")
		return nil, err
	}
	return toReturn, nil
}

// AddClassifiedFiles records classified files in the metaDB using the bulk API
func (m *MetaDB) AddClassifiedFiles(classified []*files.IndexedFile) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if len(classified) == 0 {
		return nil
	}
	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	bulk := ssn.DB(m.config.S.MongoDB.MetaDB).C(m.config.T.Meta.FilesTable).Bulk()
	bulk.Unordered()

	for _, d := range classified {
		bulk.Upsert(bson.M{"hash": d.Hash, "database": d.Database}, bson.M{"$set": bson.M{
			"filepath":      d.Path,
			"length":        d.Length,
			"modified":      d.ModTime,
			"flows":         d.Flows,
			"rejected":      d.Rejected,
			"time_complete": d.ClassifiedAt,
		}})
	}

	_, err := bulk.Run()
	if err != nil {
		m.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("could not insert files into meta database")
		return err
	}
	return nil
}

/////////////////////

// isBuilt checks to see if a file table exists, as the existence of classified
// files is prerequisite to the existence of anything else.
func (m *MetaDB) isBuilt() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	coll, err := ssn.DB(m.config.S.MongoDB.MetaDB).CollectionNames()
	if err != nil {
		m.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("error when looking up metadata collections")
		return false
	}

	for _, name := range coll {
		if name == m.config.T.Meta.FilesTable {
			return true
		}
	}

	return false
}

// createMetaDB creates the collections and indexes of the metadatabase
func (m *MetaDB) createMetaDB() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	ssn := m.dbHandle.Copy()
	defer ssn.Close()

	metaDB := ssn.DB(m.config.S.MongoDB.MetaDB)

	// collections are created implicitly, so ensuring the indexes also
	// creates the collections
	idx := mgo.Index{
		Key:        []string{"hash", "database"},
		Unique:     true,
		Background: true,
		Name:       "hashindex",
	}

	if err := metaDB.C(m.config.T.Meta.FilesTable).EnsureIndex(idx); err != nil {
		m.log.WithError(err).Error("failed to build the metadatabase")
		return err
	}

	idx = mgo.Index{
		Key:        []string{"name"},
		Unique:     true,
		Background: true,
		Name:       "nameindex",
	}

	if err := metaDB.C(m.config.T.Meta.DatabasesTable).EnsureIndex(idx); err != nil {
		m.log.WithError(err).Error("failed to build the metadatabase")
		return err
	}

	return nil
}
