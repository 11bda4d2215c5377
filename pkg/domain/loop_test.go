package domain_test

import (
	"errors"
	"testing"

	"github.com/kbase/collections/pkg/domain"
)

func TestAsLoopType(t *testing.T) {
	for in, want := range map[string]domain.LoopType{
		"reconcile": domain.Reconcile,
		"reaper":    domain.Reaper,
		"cleanup":   domain.Cleanup,
	} {
		got, err := domain.AsLoopType(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("AsLoopType(%s) = %s", in, got)
		}
	}

	for _, in := range []string{"", "gc", "Reaper"} {
		if _, err := domain.AsLoopType(in); !errors.Is(err, domain.ErrUnknownLoopType) {
			t.Errorf("AsLoopType(%q): unexpected error: %v", in, err)
		}
	}
}
