// Package version identifies the build of the provisioning daemon and the
// operator CLI.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Version and Commit are stamped by the release build:
//
//	-ldflags "-X github.com/weatherbird/provisioning/internal/version.Version=v0.3.0
//	          -X github.com/weatherbird/provisioning/internal/version.Commit=3f9c2e1"
//
// Builds without the stamp derive them from the embedded module and VCS data.
var (
	Version = ""
	Commit  = ""
)

const shortCommit = 7

func init() {
	info, _ := debug.ReadBuildInfo()
	Version, Commit = resolve(Version, Commit, info)
}

// resolve fills whichever of version and commit the linker left empty.
// A module version from `go install pkg@vX` wins over the devel marker;
// the commit comes from vcs.revision, marked when the tree was dirty.
func resolve(version, commit string, info *debug.BuildInfo) (string, string) {
	var revision, modified string
	if info != nil {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				modified = s.Value
			}
		}
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}

	if commit == "" && revision != "" {
		commit = revision[:min(len(revision), shortCommit)]
		if modified == "true" {
			commit += "+dirty"
		}
	}
	if version == "" {
		version = "devel"
	}
	if commit == "" {
		commit = "unknown"
	}
	return version, commit
}

// Full is the string printed by the version commands.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent names a component of this project in outbound HTTP requests,
// for example "weatherbird-prov/v0.3.0".
func UserAgent(component string) string {
	return "weatherbird-" + strings.ToLower(component) + "/" + Version
}
