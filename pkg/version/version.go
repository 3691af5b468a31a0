// Package version holds the build metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/optout-tools/optout/pkg/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	// Date is the build time, RFC 3339 by convention.
	Date = "unknown"
)

// Info is what `optout version` reports.
type Info struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Date     string `json:"date" yaml:"date"`
	Platform string `json:"platform" yaml:"platform"`
}

func Get() Info {
	return Info{
		Version:  Version,
		Commit:   Commit,
		Date:     Date,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("optout %s (commit: %s, built: %s, %s)", i.Version, i.Commit, i.Date, i.Platform)
}

// UserAgent is sent with directory downloads.
func UserAgent() string {
	return fmt.Sprintf("optout/%s (%s)", Version, runtime.GOOS+"/"+runtime.GOARCH)
}
