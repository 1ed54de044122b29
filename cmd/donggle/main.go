package main

import (
	"os"

	// Часовые пояса для оповещений без системного tzdata
	_ "time/tzdata"

	"github.com/Hongsc0125/donggle-bot/internal/version"
)

// Заполняются через -ldflags при сборке
var (
	Version   string = "0.1.0-dev"
	BuildTime string = "unknown"
	GitCommit string = "unknown"
	GoVersion string = ""
)

func init() {
	version.SetInfo(Version, BuildTime, GitCommit, GoVersion)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
