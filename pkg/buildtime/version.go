// Package buildtime tells the version of this build.
//
// Set them with
//
//	go build -ldflags "-X github.com/kbase/collections/pkg/buildtime.version=1.2.3 -X github.com/kbase/collections/pkg/buildtime.revision=$(git rev-parse HEAD)"
//
// Without -ldflags, the revision is read from the vcs stamp of the binary, if any.
package buildtime

import "runtime/debug"

var (
	version  = "dev"
	revision = ""
)

func init() {
	if revision != "" {
		return
	}
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			revision = s.Value
		}
	}
}

// version string when this service has been built.
func VERSION() string {
	return version
}

func GIT_REVISION() string {
	return revision
}

func VersionString() string {
	return version + " (commit: " + revision + ")"
}
