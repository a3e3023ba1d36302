package context

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// VersionInfo describes the build the application was compiled from.
type VersionInfo struct {
	Semantic  string
	Commit    string
	Dirty     bool
	GoVersion string
}

// GetVersion reads the version information embedded in the binary.
func GetVersion() (*VersionInfo, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("failed reading build information")
	}

	v := &VersionInfo{Semantic: bi.Main.Version, GoVersion: bi.GoVersion}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
		case "vcs.modified":
			v.Dirty = s.Value == "true"
		}
	}

	return v, nil
}

func (v *VersionInfo) String() string {
	semver := v.Semantic
	if semver == "" {
		semver = "(devel)"
	}

	commit := v.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		return fmt.Sprintf("%s (%s)", semver, v.GoVersion)
	}
	if v.Dirty {
		commit += "-dirty"
	}

	return fmt.Sprintf("%s (commit %s, %s)", semver, commit, v.GoVersion)
}
