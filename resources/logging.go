package resources

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/util"
	"github.com/activecm/mgorus"
	"github.com/globalsign/mgo"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// initLogger creates the logger. Output is discarded unless logging to
// stdout is enabled since the CLI prints its own results.
func initLogger(logConfig *config.LogStaticCfg) (*log.Logger, error) {
	var logs = &log.Logger{}

	logs.Formatter = new(log.TextFormatter)

	logs.Out = ioutil.Discard
	if logConfig.LogToStdout {
		logs.Out = os.Stdout
	}
	logs.Hooks = make(log.LevelHooks)

	switch logConfig.LogLevel {
	case 3:
		logs.Level = log.DebugLevel
	case 2:
		logs.Level = log.InfoLevel
	case 1:
		logs.Level = log.WarnLevel
	case 0:
		logs.Level = log.ErrorLevel
	default:
		return nil, fmt.Errorf("log level %d outside [0, 3]", logConfig.LogLevel)
	}

	if logConfig.LogToFile {
		if err := addFileLogger(logs, logConfig.LogPath); err != nil {
			return nil, err
		}
	}
	return logs, nil
}

func addFileLogger(logger *log.Logger, logPath string) error {
	time := time.Now().Format(util.TimeFormat)
	logPath = path.Join(logPath, time)
	_, err := os.Stat(logPath)
	if err != nil && os.IsNotExist(err) {
		err = os.MkdirAll(logPath, 0755)
		if err != nil {
			return err
		}
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: path.Join(logPath, "debug.log"),
		log.InfoLevel:  path.Join(logPath, "info.log"),
		log.WarnLevel:  path.Join(logPath, "warn.log"),
		log.ErrorLevel: path.Join(logPath, "error.log"),
		log.FatalLevel: path.Join(logPath, "fatal.log"),
		log.PanicLevel: path.Join(logPath, "panic.log"),
	}, nil))
	return nil
}

func addMongoLogger(logger *log.Logger, ssn *mgo.Session, database string, collection string) error {
	err := ssn.DB(database).C(collection).Create(&mgo.CollectionInfo{})

	if err != nil {
		queryErr, ok := err.(*mgo.QueryError)
		//check if create failed because collection already exists
		//https://github.com/mongodb/mongo/blob/master/src/mongo/base/error_codes.err
		if !ok || queryErr.Code != 48 {
			return err
		}
	}
	logger.Hooks.Add(
		mgorus.NewHookerFromSession(
			ssn, database, collection,
		),
	)
	return nil
}
