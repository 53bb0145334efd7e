package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"reflect"

	"github.com/activecm/flowguard/util"
	"github.com/creasty/defaults"
)

// Version is filled by a build flag with the tagged release version
var Version = "v0.0.0"

// ExactVersion is filled by a build flag with the output of git describe
var ExactVersion = "v0.0.0-undefined"

const (
	userConfigPath   = ".flowguard/config.yaml"
	systemConfigPath = "/etc/flowguard/config.yaml"
)

type (
	//Config holds the configuration for the running system
	Config struct {
		R RunningCfg
		S StaticCfg
		T TableCfg
	}
)

// GetConfig retrieves a configuration in order of precedence. An explicit
// path must exist, otherwise the user's config is tried, then the system wide
// one, and finally the built in defaults are used.
func GetConfig(cfgPath string) (*Config, error) {
	if cfgPath != "" {
		return LoadConfig(cfgPath)
	}

	for _, candidate := range candidatePaths() {
		exists, err := util.Exists(candidate)
		if err != nil {
			return nil, err
		}
		if exists {
			return LoadConfig(candidate)
		}
	}
	return loadConfig(nil)
}

func candidatePaths() []string {
	var paths []string
	usr, err := user.Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not get user info: %s\n", err.Error())
	} else {
		paths = append(paths, filepath.Join(usr.HomeDir, userConfigPath))
	}
	return append(paths, systemConfigPath)
}

// LoadConfig parses the config file at cfgPath
func LoadConfig(cfgPath string) (*Config, error) {
	cfgFile, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", cfgPath, err)
	}
	config, err := loadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}
	return config, nil
}

// loadConfig layers the contents of a config file over the defaults
func loadConfig(cfgFile []byte) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(&config.T); err != nil {
		return nil, err
	}

	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}

	if err := parseStaticConfig(cfgFile, &config.S); err != nil {
		return nil, err
	}

	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}

// expandConfig expands environment variables in config strings
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		// process sub configs
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		} else if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
			strs := f.Interface().([]string)
			for i, str := range strs {
				strs[i] = os.ExpandEnv(str)
			}
			f.Set(reflect.ValueOf(strs))
		}
	}
}
