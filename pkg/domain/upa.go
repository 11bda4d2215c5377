package domain

import (
	"slices"
	"strconv"
	"strings"

	domerr "github.com/kbase/collections/pkg/domain/errors"
)

// MaxUPAs is the maximum count of UPAs in a match.
const MaxUPAs = 10000

// ObjectRef is an address of a workspace object version, "W/O/V".
type ObjectRef struct {
	Workspace int64
	Object    int64
	Version   int64
}

func (r ObjectRef) String() string {
	return strconv.FormatInt(r.Workspace, 10) + "/" +
		strconv.FormatInt(r.Object, 10) + "/" +
		strconv.FormatInt(r.Version, 10)
}

func (r ObjectRef) compare(o ObjectRef) int {
	if r.Workspace != o.Workspace {
		return cmpInt64(r.Workspace, o.Workspace)
	}
	if r.Object != o.Object {
		return cmpInt64(r.Object, o.Object)
	}
	return cmpInt64(r.Version, o.Version)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// UPAPath is a reference path to a workspace object.
//
// The last element is the target object.
// The first element is the object which the user has access to.
type UPAPath []ObjectRef

func (p UPAPath) String() string {
	parts := make([]string, len(p))
	for i, r := range p {
		parts[i] = r.String()
	}
	return strings.Join(parts, ";")
}

// Target returns the addressed object.
func (p UPAPath) Target() ObjectRef {
	return p[len(p)-1]
}

func (p UPAPath) compare(o UPAPath) int {
	for i := 0; i < len(p) && i < len(o); i++ {
		if c := p[i].compare(o[i]); c != 0 {
			return c
		}
	}
	return len(p) - len(o)
}

// ParseUPA parses a single "W/O/V" string.
func ParseUPA(s string) (ObjectRef, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return ObjectRef{}, false
	}
	nums := [3]int64{}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 1 {
			return ObjectRef{}, false
		}
		nums[i] = n
	}
	return ObjectRef{Workspace: nums[0], Object: nums[1], Version: nums[2]}, true
}

// ParseUPAs checks, normalizes and sorts UPAs.
//
// Each item is an UPA "W/O/V", or reference path of UPAs joined with ";".
// Each of W, O and V should be an integer >= 1.
//
// Blank items are ignored. A trailing ";" is allowed.
// When there are multiple paths to a same object, the first shortest one is kept.
//
// # Returns
//
// - []UPAPath: paths sorted in numerical order.
//
// - []int64: sorted workspace ids of the head of each path.
//
// - error: ErrInvalidInput wrapped in InputError, when an item is malformed.
func ParseUPAs(upas []string) ([]UPAPath, []int64, error) {
	byTarget := map[ObjectRef]UPAPath{}
	for index, item := range upas {
		elems := strings.Split(strings.TrimSpace(item), ";")
		if elems[len(elems)-1] == "" {
			elems = elems[:len(elems)-1]
		}
		if len(elems) == 0 {
			continue
		}

		path := make(UPAPath, 0, len(elems))
		for _, e := range elems {
			ref, ok := ParseUPA(e)
			if !ok {
				if 1 < len(elems) {
					return nil, nil, domerr.NewInputError(
						domerr.ErrInvalidInput,
						"illegal UPA '%s' in path '%s' at index %d", e, item, index,
					)
				}
				return nil, nil, domerr.NewInputError(
					domerr.ErrInvalidInput, "illegal UPA '%s' at index %d", e, index,
				)
			}
			path = append(path, ref)
		}

		target := path.Target()
		if known, ok := byTarget[target]; !ok || len(path) < len(known) {
			byTarget[target] = path
		}
	}

	paths := make([]UPAPath, 0, len(byTarget))
	for _, p := range byTarget {
		paths = append(paths, p)
	}
	slices.SortFunc(paths, UPAPath.compare)

	wsids := []int64{}
	for _, p := range paths {
		wsids = append(wsids, p[0].Workspace)
	}
	slices.Sort(wsids)
	wsids = slices.Compact(wsids)

	return paths, wsids, nil
}

// UPAStrings formats paths as strings.
func UPAStrings(paths []UPAPath) []string {
	ret := make([]string, len(paths))
	for i, p := range paths {
		ret[i] = p.String()
	}
	return ret
}
