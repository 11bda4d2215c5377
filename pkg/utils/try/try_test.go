package try_test

import (
	"errors"
	"testing"

	"github.com/kbase/collections/pkg/utils/try"
)

type fataler struct {
	fatal [][]any
}

func (f *fataler) Fatal(args ...any) {
	f.fatal = append(f.fatal, args)
}

type helperfataler struct {
	fataler

	helper uint
}

func (hf *helperfataler) Helper() {
	hf.helper += 1
}

func TestTry(t *testing.T) {
	t.Run("when it does not have error,", func(t *testing.T) {
		expected := 42
		testee := try.To(expected, nil)

		t.Run("OrFatal returns the value and does not call Fatal nor Helper", func(t *testing.T) {
			fataler := &helperfataler{}
			actual := testee.OrFatal(fataler)

			if actual != expected {
				t.Errorf("unexpected result: (actual, expected) = (%d, %d)", actual, expected)
			}
			if len(fataler.fatal) != 0 || fataler.helper != 0 {
				t.Errorf("Fatal or Helper is called, unexpectedly: %v", fataler)
			}
		})

		t.Run("OrDefault returns non-default value", func(t *testing.T) {
			if ret := testee.OrDefault(expected + 1); ret != expected {
				t.Errorf("unmatch: (actual, expected) = (%d, %d)", ret, expected)
			}
		})
	})

	t.Run("when it has error,", func(t *testing.T) {
		err := errors.New("error")
		testee := try.To(42, err)

		t.Run("OrDefault returns default value", func(t *testing.T) {
			if actual := testee.OrDefault(99); actual != 99 {
				t.Errorf("unmatch: (actual, expected) = (%d, %d)", actual, 99)
			}
		})

		t.Run("OrFatal calls Helper and Fatal with the error, and returns zero value", func(t *testing.T) {
			fataler := &helperfataler{}
			if actual := testee.OrFatal(fataler); actual != 0 {
				t.Errorf("unexpected result: %d", actual)
			}
			if fataler.helper != 1 {
				t.Errorf("Helper is called %d times", fataler.helper)
			}
			if len(fataler.fatal) != 1 || fataler.fatal[0][0] != err {
				t.Errorf("Fatal is not called with the error: %v", fataler.fatal)
			}
		})

		t.Run("Get returns the error", func(t *testing.T) {
			if _, actual := testee.Get(); actual != err {
				t.Errorf("unexpected error: %v", actual)
			}
		})
	})
}
