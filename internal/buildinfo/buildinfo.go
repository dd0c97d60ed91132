// Package buildinfo identifies the firmware image. The variables are set
// with -ldflags "-X watch/internal/buildinfo.Version=v1.2.0 ...".
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Short is the release version, or "dev-<commit>" for an untagged build.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if c := abbrev(Commit); c != "" {
		return "dev-" + c
	}
	return "dev"
}

// String is the boot banner identification.
func String() string {
	var b strings.Builder
	b.WriteString(Short())
	if c := abbrev(Commit); c != "" && !strings.HasSuffix(b.String(), c) {
		b.WriteString(" " + c)
	}
	if Date != "" {
		b.WriteString(" built " + Date)
	}
	return b.String()
}

func abbrev(commit string) string {
	commit = strings.TrimSpace(commit)
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
