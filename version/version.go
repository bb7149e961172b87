// Package version reports how the embcluster binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
)

// Set at build time with -ldflags "-X github.com/teranos/embcluster/version.Version=...".
// When unset, commit and build time fall back to the VCS stamp of debug.ReadBuildInfo.
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// storeModules are the driver modules whose versions matter when debugging a store.
var storeModules = []string{
	"github.com/lib/pq",
	"github.com/mattn/go-sqlite3",
	"github.com/asg017/sqlite-vec-go-bindings",
	"github.com/pgvector/pgvector-go",
}

// Info describes the running binary.
type Info struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Modified  bool              `json:"modified,omitempty"`
	BuildTime string            `json:"build_time"`
	GoVersion string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Drivers   map[string]string `json:"drivers,omitempty"`
}

// Get returns the build information of the running binary.
func Get() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuildInfo(bi)
}

func fromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{
		Version:   Version,
		Commit:    CommitHash,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi == nil {
		return info.withDefaults()
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	for _, dep := range bi.Deps {
		for _, path := range storeModules {
			if dep.Path != path {
				continue
			}
			if info.Drivers == nil {
				info.Drivers = make(map[string]string)
			}
			v := dep.Version
			if dep.Replace != nil {
				v = dep.Replace.Version
			}
			info.Drivers[path] = v
		}
	}
	return info.withDefaults()
}

func (i Info) withDefaults() Info {
	if i.Commit == "" {
		i.Commit = "unknown"
	}
	if i.BuildTime == "" {
		i.BuildTime = "unknown"
	}
	return i
}

// Short returns the abbreviated commit, suffixed with "+dirty" for modified trees.
func (i Info) Short() string {
	c := i.Commit
	if len(c) > 7 {
		c = c[:7]
	}
	if i.Modified {
		c += "+dirty"
	}
	return c
}

func (i Info) String() string {
	return fmt.Sprintf("embcluster %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// DriverLines lists linked driver versions as "path version", sorted by path.
func (i Info) DriverLines() []string {
	paths := make([]string, 0, len(i.Drivers))
	for p := range i.Drivers {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	lines := make([]string, len(paths))
	for n, p := range paths {
		lines[n] = p + " " + i.Drivers[p]
	}
	return lines
}
