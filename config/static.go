package config

import (
	"path/filepath"
	"reflect"

	yaml "gopkg.in/yaml.v2"
)

type (
	//StaticCfg is the container for other static config sections
	StaticCfg struct {
		MongoDB      MongoDBStaticCfg   `yaml:"MongoDB"`
		Log          LogStaticCfg       `yaml:"LogConfig"`
		UserConfig   UserCfgStaticCfg   `yaml:"UserConfig"`
		Model        ModelStaticCfg     `yaml:"Model"`
		Server       ServerStaticCfg    `yaml:"Server"`
		Stream       StreamStaticCfg    `yaml:"Stream"`
		Batch        BatchStaticCfg     `yaml:"Batch"`
		Filtering    FilteringStaticCfg `yaml:"Filtering"`
		Version      string             `yaml:"-"`
		ExactVersion string             `yaml:"-"`
	}

	//MongoDBStaticCfg contains the means for connecting to MongoDB
	MongoDBStaticCfg struct {
		ConnectionString string       `yaml:"ConnectionString" default:"mongodb://localhost:27017"`
		AuthMechanism    string       `yaml:"AuthenticationMechanism" default:""`
		SocketTimeout    int          `yaml:"SocketTimeout" default:"2"`
		TLS              TLSStaticCfg `yaml:"TLS"`
		MetaDB           string       `yaml:"MetaDB" default:"MetaDatabase"`
	}

	//TLSStaticCfg contains the means for connecting to MongoDB over TLS
	TLSStaticCfg struct {
		Enabled           bool   `yaml:"Enable" default:"false"`
		VerifyCertificate bool   `yaml:"VerifyCertificate" default:"false"`
		CAFile            string `yaml:"CAFile" default:""`
	}

	//LogStaticCfg contains the configuration for logging
	LogStaticCfg struct {
		LogLevel    int    `yaml:"LogLevel" default:"2"`
		LogPath     string `yaml:"LogPath" default:"/var/lib/flowguard/logs"`
		LogToStdout bool   `yaml:"LogToStdout" default:"false"`
		LogToFile   bool   `yaml:"LogToFile" default:"false"`
		LogToDB     bool   `yaml:"LogToDB" default:"false"`
	}

	//UserCfgStaticCfg contains the configuration for the update check
	UserCfgStaticCfg struct {
		UpdateCheckFrequency int `yaml:"UpdateCheckFrequency" default:"14"`
	}

	//ModelStaticCfg locates the fitted preprocessing and classifier artifacts
	ModelStaticCfg struct {
		PreprocessingPath string   `yaml:"PreprocessingPath" default:"/etc/flowguard/preprocessing_config.json"`
		ClassifierPath    string   `yaml:"ClassifierPath" default:"/etc/flowguard/flowguard_model.json"`
		LabelConvention   string   `yaml:"LabelConvention" default:"binary"`
		MaliciousLabels   []string `yaml:"MaliciousLabels"`
	}

	//ServerStaticCfg controls the HTTP prediction server. Timeouts are in seconds.
	ServerStaticCfg struct {
		ListenAddress   string `yaml:"ListenAddress" default:":8000"`
		ReadTimeout     int    `yaml:"ReadTimeout" default:"15"`
		WriteTimeout    int    `yaml:"WriteTimeout" default:"15"`
		ShutdownTimeout int    `yaml:"ShutdownTimeout" default:"10"`
		MaxBatchSize    int    `yaml:"MaxBatchSize" default:"1000"`
	}

	//StreamStaticCfg controls the NATS classification worker
	StreamStaticCfg struct {
		URL           string `yaml:"URL" default:"nats://127.0.0.1:4222"`
		InputSubject  string `yaml:"InputSubject" default:"flowguard.flows"`
		OutputSubject string `yaml:"OutputSubject" default:"flowguard.predictions"`
		QueueGroup    string `yaml:"QueueGroup" default:"flowguard"`
	}

	//BatchStaticCfg controls offline classification of Zeek logs. A zero
	//ImportBuffer is sized from the available memory and zero Threads uses
	//every CPU.
	BatchStaticCfg struct {
		ImportBuffer int    `yaml:"ImportBuffer" default:"0"`
		Threads      int    `yaml:"Threads" default:"0"`
		Persist      bool   `yaml:"Persist" default:"false"`
		Database     string `yaml:"Database" default:"flowguard"`
	}

	//FilteringStaticCfg selects the flows read from Zeek logs that are
	//classified. Entries are CIDR ranges or single addresses.
	FilteringStaticCfg struct {
		AlwaysInclude   []string `yaml:"AlwaysInclude"`
		NeverInclude    []string `yaml:"NeverInclude"`
		InternalSubnets []string `yaml:"InternalSubnets"`
	}
)

// parseStaticConfig deserializes the yaml contents of a config file over
// the values already held by config
func parseStaticConfig(cfgFile []byte, config *StaticCfg) error {
	if err := yaml.Unmarshal(cfgFile, config); err != nil {
		return err
	}

	// expand env variables, config is a pointer
	// so we have to call elem on the reflect value
	expandConfig(reflect.ValueOf(config).Elem())

	config.Log.LogPath = cleanPath(config.Log.LogPath)
	config.MongoDB.TLS.CAFile = cleanPath(config.MongoDB.TLS.CAFile)
	config.Model.PreprocessingPath = cleanPath(config.Model.PreprocessingPath)
	config.Model.ClassifierPath = cleanPath(config.Model.ClassifierPath)

	// grab the version constants set by the build process
	config.Version = Version
	config.ExactVersion = ExactVersion

	return nil
}

func cleanPath(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}
