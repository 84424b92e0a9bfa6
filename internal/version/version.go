// Package version reports the msgsync release and the commit it was built
// from.
//
// Commit is set with -ldflags; when it is empty the VCS stamp recorded by
// the Go toolchain is used instead.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Commit is the git commit of this build, set via -ldflags.
var Commit string

// semanticAlphabet lists the characters allowed in a pre-release tag.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0

	appPreRelease = "beta"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Version returns the semantic version, e.g. "0.3.0-beta".
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if pre := normalize(appPreRelease); pre != "" {
		v += "-" + pre
	}
	return v
}

// RichVersion returns Version followed by the commit and a dirty marker
// when they are known.
func RichVersion() string {
	commit, dirty := buildCommit()
	if commit == "" {
		return Version()
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	out := fmt.Sprintf("%s commit=%s", Version(), commit)
	if dirty {
		out += " dirty"
	}
	return out
}

func buildCommit() (string, bool) {
	if c := strings.TrimSpace(Commit); c != "" {
		return c, false
	}
	info, ok := readBuildInfo()
	if !ok {
		return "", false
	}
	var commit string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return commit, dirty
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(semanticAlphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
