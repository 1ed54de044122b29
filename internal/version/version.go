package version

import (
	"fmt"
	"runtime"
)

// Заполняются через -ldflags при сборке
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// Short is the one-line version shown in /status.
func Short() string {
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("donggle-bot %s (%s)", Version, commit)
}

// String is the full build info printed by the version command.
func String() string {
	return fmt.Sprintf("donggle-bot %s\nbuild: %s\ncommit: %s\ngo: %s", Version, BuildTime, GitCommit, GoVersion)
}
