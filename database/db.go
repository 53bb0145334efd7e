package database

import (
	"fmt"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/mgosec"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"
)

// MinMongoDBVersion is the lower, inclusive bound on the
// versions of MongoDB compatible with FlowGuard
var MinMongoDBVersion = semver.Version{
	Major: 4,
	Minor: 2,
	Patch: 0,
}

// MaxMongoDBVersion is the upper, exclusive bound on the
// versions of MongoDB compatible with FlowGuard
var MaxMongoDBVersion = semver.Version{
	Major: 5,
	Minor: 0,
	Patch: 0,
}

// DB is the workhorse container for messing with the database
type DB struct {
	Session  *mgo.Session
	log      *log.Logger
	selected string
}

// NewDB constructs a new DB struct
func NewDB(conf *config.Config, log *log.Logger) (*DB, error) {
	// Jump into the requested database
	session, err := connectToMongoDB(conf)
	if err != nil {
		return nil, err
	}
	session.SetSocketTimeout(conf.R.MongoDB.SocketTimeout)
	session.SetSyncTimeout(conf.R.MongoDB.SocketTimeout)
	session.SetCursorTimeout(0)

	return &DB{
		Session:  session,
		log:      log,
		selected: "",
	}, nil
}

// connectToMongoDB connects to MongoDB possibly with authentication and TLS
func connectToMongoDB(conf *config.Config) (*mgo.Session, error) {
	connString := conf.S.MongoDB.ConnectionString
	authMechanism := conf.R.MongoDB.AuthMechanismParsed
	tlsConfig := conf.R.MongoDB.TLS.TLSConfig

	var sess *mgo.Session
	var err error
	if conf.S.MongoDB.TLS.Enabled {
		sess, err = mgosec.Dial(connString, authMechanism, tlsConfig)
	} else {
		sess, err = mgosec.DialInsecure(connString, authMechanism)
	}
	if err != nil {
		return sess, err
	}

	buildInfo, err := sess.BuildInfo()
	if err != nil {
		sess.Close()
		return nil, err
	}

	if err := checkServerVersion(buildInfo.Version); err != nil {
		sess.Close()
		return nil, err
	}

	return sess, nil
}

// checkServerVersion ensures the MongoDB server falls within the supported range
func checkServerVersion(version string) error {
	semVersion, err := semver.ParseTolerant(version)
	if err != nil {
		return err
	}

	if !(semVersion.GE(MinMongoDBVersion) && semVersion.LT(MaxMongoDBVersion)) {
		return fmt.Errorf(
			"unsupported version of MongoDB. %s not within [%s, %s)",
			semVersion.String(),
			MinMongoDBVersion.String(),
			MaxMongoDBVersion.String(),
		)
	}
	return nil
}

// SelectDB selects a database for storing predictions
func (d *DB) SelectDB(db string) {
	d.selected = db
}

// GetSelectedDB retrieves the currently selected database
func (d *DB) GetSelectedDB() string {
	return d.selected
}

// DatabaseExists reports whether name is a database on the server
func (d *DB) DatabaseExists(name string) (bool, error) {
	ssn := d.Session.Copy()
	defer ssn.Close()
	names, err := ssn.DatabaseNames()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// CollectionExists returns true if collection exists in the currently
// selected database
func (d *DB) CollectionExists(table string) bool {
	ssn := d.Session.Copy()
	defer ssn.Close()
	coll, err := ssn.DB(d.selected).CollectionNames()
	if err != nil {
		d.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed collection name lookup")
		return false
	}
	for _, name := range coll {
		if name == table {
			return true
		}
	}
	return false
}

// CreateCollection creates a new collection in the currently selected
// database with the required indexes
func (d *DB) CreateCollection(name string, indexes []mgo.Index) error {
	// Make a copy of the current session
	session := d.Session.Copy()
	defer session.Close()

	d.log.Debug("Building collection: ", name)

	err := session.DB(d.selected).C(name).Create(
		&mgo.CollectionInfo{},
	)

	// Make sure it actually got created
	if err != nil {
		return err
	}

	collection := session.DB(d.selected).C(name)
	for _, index := range indexes {
		err := collection.EnsureIndex(index)
		if err != nil {
			return err
		}
	}

	return nil
}

// Close releases the MongoDB session
func (d *DB) Close() {
	if d != nil && d.Session != nil {
		d.Session.Close()
	}
}
