package processes

import (
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/utils/rfctime"
)

// Process is a state of a data product computation for a match or a selection.
type Process struct {
	DataProduct  string          `json:"data_product"`
	Type         string          `json:"type"`
	State        string          `json:"state"`
	Error        string          `json:"error,omitempty"`
	StateUpdated rfctime.RFC3339 `json:"state_updated"`
}

func Compose(p domain.DataProductProcess) Process {
	ret := Process{
		DataProduct:  p.DataProduct,
		Type:         p.Type.String(),
		State:        p.State.String(),
		StateUpdated: rfctime.RFC3339(p.StateUpdated),
	}
	if p.State == domain.Failed {
		ret.Error = p.Error
	}
	return ret
}

// List is a response of processes.
type List struct {
	Data []Process `json:"data"`
}

func ComposeList(ps []domain.DataProductProcess) List {
	ret := List{Data: make([]Process, 0, len(ps))}
	for _, p := range ps {
		ret.Data = append(ret.Data, Compose(p))
	}
	return ret
}
