package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"time"

	"github.com/activecm/flowguard/pkg/inference"
	"github.com/activecm/flowguard/util"
	"github.com/activecm/mgosec"
	"github.com/blang/semver"
)

type (
	//RunningCfg holds configuration options that are parsed at run time
	RunningCfg struct {
		MongoDB   MongoDBRunningCfg
		Model     ModelRunningCfg
		Server    ServerRunningCfg
		Filtering FilteringRunningCfg
		Version   semver.Version
	}

	//MongoDBRunningCfg holds parsed information for connecting to MongoDB
	MongoDBRunningCfg struct {
		AuthMechanismParsed mgosec.AuthMechanism
		SocketTimeout       time.Duration
		TLS                 struct {
			TLSConfig *tls.Config
		}
	}

	//ModelRunningCfg holds the parsed label convention
	ModelRunningCfg struct {
		Convention inference.Convention
	}

	//FilteringRunningCfg holds the parsed filtering subnets
	FilteringRunningCfg struct {
		AlwaysIncluded  []*net.IPNet
		NeverIncluded   []*net.IPNet
		InternalSubnets []*net.IPNet
	}

	//ServerRunningCfg holds the HTTP server timeouts
	ServerRunningCfg struct {
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}
)

// initRunningConfig uses data in the static config initialize
// the passed in running config
func initRunningConfig(static *StaticCfg, running *RunningCfg) error {
	var err error

	//parse the tls configuration
	if static.MongoDB.TLS.Enabled {
		tlsConf := &tls.Config{}
		if !static.MongoDB.TLS.VerifyCertificate {
			tlsConf.InsecureSkipVerify = true
		}
		if len(static.MongoDB.TLS.CAFile) > 0 {
			pem, err := ioutil.ReadFile(static.MongoDB.TLS.CAFile)
			if err != nil {
				return fmt.Errorf("could not read MongoDB CA file: %w", err)
			}
			tlsConf.RootCAs = x509.NewCertPool()
			tlsConf.RootCAs.AppendCertsFromPEM(pem)
		}
		running.MongoDB.TLS.TLSConfig = tlsConf
	}

	//parse out the mongo authentication mechanism
	authMechanism, err := mgosec.ParseAuthMechanism(
		static.MongoDB.AuthMechanism,
	)
	if err != nil {
		authMechanism = mgosec.None
		fmt.Fprintf(os.Stderr, "[!] Could not parse MongoDB authentication mechanism %q\n", static.MongoDB.AuthMechanism)
	}
	running.MongoDB.AuthMechanismParsed = authMechanism

	// the socket timeout is configured in hours
	running.MongoDB.SocketTimeout = time.Duration(static.MongoDB.SocketTimeout) * time.Hour

	running.Model.Convention, err = inference.ParseConvention(static.Model.LabelConvention)
	if err != nil {
		return err
	}

	if static.Server.MaxBatchSize < 1 {
		return fmt.Errorf("server max batch size must be positive, got %d", static.Server.MaxBatchSize)
	}
	running.Server.ReadTimeout = time.Duration(static.Server.ReadTimeout) * time.Second
	running.Server.WriteTimeout = time.Duration(static.Server.WriteTimeout) * time.Second
	running.Server.ShutdownTimeout = time.Duration(static.Server.ShutdownTimeout) * time.Second

	running.Filtering.AlwaysIncluded, err = util.ParseSubnets(static.Filtering.AlwaysInclude)
	if err != nil {
		return fmt.Errorf("invalid AlwaysInclude entry: %w", err)
	}
	running.Filtering.NeverIncluded, err = util.ParseSubnets(static.Filtering.NeverInclude)
	if err != nil {
		return fmt.Errorf("invalid NeverInclude entry: %w", err)
	}
	running.Filtering.InternalSubnets, err = util.ParseSubnets(static.Filtering.InternalSubnets)
	if err != nil {
		return fmt.Errorf("invalid InternalSubnets entry: %w", err)
	}

	running.Version, err = semver.ParseTolerant(static.Version)
	if err != nil {
		return fmt.Errorf("could not parse version %q: %w", static.Version, err)
	}
	return nil
}
