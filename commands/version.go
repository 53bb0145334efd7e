package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/database"
	"github.com/activecm/flowguard/resources"
	"github.com/blang/semver"
	"github.com/google/go-github/github"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// Strings used for informing the user of a new version
var informFmtStr = "\nTheres a new %s version of FlowGuard %s available at:\nhttps://github.com/activecm/flowguard/releases\n"
var versions = []string{"Major", "Minor", "Patch"}

func init() {
	command := cli.Command{
		Name:  "version",
		Usage: "Show the FlowGuard version and check for updates",
		Flags: []cli.Flag{
			configFlag,
		},
		Action: func(c *cli.Context) error {
			GetVersionPrinter()(c)
			return nil
		},
	}

	bootstrapCommands(command)
}

// GetVersionPrinter prints the version of the app followed by a notice if a
// newer release is available
func GetVersionPrinter() func(*cli.Context) {
	return func(c *cli.Context) {
		fmt.Printf("%s version %s\n", c.App.Name, c.App.Version)
		fmt.Print(updateCheck(c.String("config")))
	}
}

// updateCheck looks up the newest release at most every UpdateCheckFrequency
// days and returns a notice if it is newer than the running version. The time
// of the last check is only remembered when logging to MongoDB.
func updateCheck(configFile string) string {
	conf, err := config.GetConfig(configFile)
	if err != nil {
		return ""
	}

	delta := conf.S.UserConfig.UpdateCheckFrequency
	if delta <= 0 {
		return ""
	}

	var res *resources.Resources
	var timestamp time.Time
	var newVersion semver.Version
	if conf.S.Log.LogToDB {
		res = resources.InitDBResources(configFile)
		defer res.Close()
		timestamp, newVersion = res.MetaDB.LastCheck()
	}

	days := time.Since(timestamp).Hours() / 24
	if days > float64(delta) {
		newVersion, err = getRemoteVersion()
		if err != nil {
			return ""
		}

		if res != nil {
			res.Log.WithFields(log.Fields{
				"Message":         database.UpdateCheckMessage,
				"LastUpdateCheck": time.Now(),
				"NewestVersion":   fmt.Sprint(newVersion),
			}).Info("Checking for new version")
		}
	}

	configVersion, err := semver.ParseTolerant(config.Version)
	if err != nil {
		return ""
	}

	if newVersion.GT(configVersion) {
		return informUser(configVersion, newVersion)
	}
	return ""
}

// versionDiffIndex returns the first index where v1 is greater than v2
func versionDiffIndex(v1 semver.Version, v2 semver.Version) int {
	if v1.Major > v2.Major {
		return 0
	}
	if v1.Minor > v2.Minor {
		return 1
	}
	return 2
}

func getRemoteVersion() (semver.Version, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := github.NewClient(nil)
	refs, _, err := client.Git.GetRefs(ctx, "activecm", "flowguard", "refs/tags/v")
	if err != nil {
		return semver.Version{}, err
	}
	if len(refs) == 0 {
		return semver.Version{}, fmt.Errorf("no release tags found")
	}
	return latestTag(refs)
}

// latestTag picks the highest semantic version among tag refs
func latestTag(refs []*github.Reference) (semver.Version, error) {
	var newest semver.Version
	found := false
	for _, ref := range refs {
		if ref.Ref == nil {
			continue
		}
		v, err := semver.ParseTolerant(strings.TrimPrefix(*ref.Ref, "refs/tags/"))
		if err != nil {
			continue
		}
		if !found || v.GT(newest) {
			newest, found = v, true
		}
	}
	if !found {
		return semver.Version{}, fmt.Errorf("no release tags could be parsed")
	}
	return newest, nil
}

// informUser assembles a notice for the user informing them of an upgrade
func informUser(local semver.Version, remote semver.Version) string {
	return fmt.Sprintf(informFmtStr,
		versions[versionDiffIndex(remote, local)],
		fmt.Sprint(remote))
}
