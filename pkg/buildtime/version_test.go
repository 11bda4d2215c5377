package buildtime_test

import (
	"strings"
	"testing"

	"github.com/kbase/collections/pkg/buildtime"
)

func TestVersionString(t *testing.T) {
	got := buildtime.VersionString()
	if !strings.HasPrefix(got, buildtime.VERSION()+" (commit: ") {
		t.Errorf("unexpected version string: %s", got)
	}
	if buildtime.GIT_REVISION() == "" {
		t.Error("revision is empty")
	}
}
