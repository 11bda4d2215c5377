package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/kbase/collections/pkg/errors"
)

type MyErr struct{}

func (MyErr) Error() string {
	return "error type for test"
}

func createError(message string) error {
	return xe.New(message)
}

func TestNewError(t *testing.T) {
	t.Run("it knows location where it is created.", func(t *testing.T) {
		testee := createError("test error")
		errMessage := testee.Error()

		_, thisFile, _, _ := runtime.Caller(0)

		if !strings.Contains(errMessage, "createError") {
			t.Errorf("it does not know function name: %s", errMessage)
		}

		if !strings.Contains(errMessage, thisFile) {
			t.Errorf("it does not know file (%s): %s", thisFile, errMessage)
		}
	})

	t.Run("it supports errors protocol", func(t *testing.T) {
		rootError := MyErr{}

		err := xe.Wrap(fmt.Errorf("%w", fmt.Errorf("%w", rootError)))

		if !errors.Is(err, rootError) {
			t.Error("it does not support unwrapping.")
		}
	})

	t.Run("Errorf keeps %w chain", func(t *testing.T) {
		rootError := MyErr{}
		err := xe.Errorf("while matching %s: %w", "1/2/3", rootError)

		if !errors.Is(err, rootError) {
			t.Error("it does not support unwrapping.")
		}
		if !strings.Contains(err.Error(), "while matching 1/2/3") {
			t.Errorf("message is lost: %s", err)
		}
	})

	t.Run("wrapping nil is nil", func(t *testing.T) {
		if err := xe.Wrap(nil); err != nil {
			t.Errorf("Wrap(nil) = %v", err)
		}
		if err := xe.WrapWithNote("note", nil); err != nil {
			t.Errorf("WrapWithNote(nil) = %v", err)
		}
	})

	t.Run("note is in message", func(t *testing.T) {
		err := xe.WrapWithNote("match 0123abcd", MyErr{})
		if !strings.Contains(err.Error(), "(match 0123abcd)") {
			t.Errorf("note is not found: %s", err)
		}
	})
}
