package config

import (
	"github.com/creasty/defaults"
)

const testConfig = `
MongoDB:
    ConnectionString: null
    AuthenticationMechanism: null
    SocketTimeout: 2
    TLS:
        Enable: false
        VerifyCertificate: false
        CAFile: null
    MetaDB: FLOWGUARD-TEST-MetaDatabase
LogConfig:
    LogLevel: 3
    LogPath: null
    LogToStdout: false
    LogToFile: false
    LogToDB: false
UserConfig:
    UpdateCheckFrequency: 14
Model:
    LabelConvention: binary
Server:
    ListenAddress: 127.0.0.1:0
    MaxBatchSize: 16
Stream:
    InputSubject: flowguard-test.flows
    OutputSubject: flowguard-test.predictions
    QueueGroup: flowguard-test
Batch:
    Threads: 2
    ImportBuffer: 64
    Database: FLOWGUARD-TEST
`

// LoadTestingConfig loads the hard coded testing config
func LoadTestingConfig(mongoURI string) (*Config, error) {
	config := &Config{}

	// Initialize table config to the default values
	if err := defaults.Set(&config.T); err != nil {
		return nil, err
	}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}

	// Deserialize the yaml file contents into the static config
	if err := parseStaticConfig([]byte(testConfig), &config.S); err != nil {
		return nil, err
	}

	config.S.MongoDB.ConnectionString = mongoURI
	config.S.Version = "v0.0.0+testing"
	config.S.ExactVersion = "v0.0.0+testing"

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}
