package domain

import (
	"errors"
	"fmt"
)

type LoopType string

const (
	// fails processing records which lost their worker.
	Reconcile LoopType = "reconcile"

	// moves expired records into deleted state.
	Reaper LoopType = "reaper"

	// removes deleted records and artifacts of data products for them.
	Cleanup LoopType = "cleanup"
)

func (lt LoopType) String() string {
	return string(lt)
}

func (lt LoopType) IsKnown() bool {
	switch lt {
	case Reconcile, Reaper, Cleanup:
		return true
	default:
		return false
	}
}

func AsLoopType(s string) (LoopType, error) {
	l := LoopType(s)
	if l.IsKnown() {
		return l, nil
	}
	return l, fmt.Errorf(`%w: "%s"`, ErrUnknownLoopType, s)
}

var ErrUnknownLoopType = errors.New("unknown loop type")
