package cmp_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/kbase/collections/pkg/utils/cmp"
)

func TestSliceEq(t *testing.T) {
	for name, testcase := range map[string]struct {
		a, b     []string
		expected bool
	}{
		"same slices are equal":           {a: []string{"a", "b"}, b: []string{"a", "b"}, expected: true},
		"different ordering is not equal": {a: []string{"a", "b"}, b: []string{"b", "a"}, expected: false},
		"different length is not equal":   {a: []string{"a"}, b: []string{"a", "a"}, expected: false},
		"nil and empty slices are equal":  {a: nil, b: []string{}, expected: true},
		"different content is not equal":  {a: []string{"a", "b"}, b: []string{"a", "c"}, expected: false},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := cmp.SliceEq(testcase.a, testcase.b); actual != testcase.expected {
				t.Errorf("SliceEq(%v, %v) = %v", testcase.a, testcase.b, actual)
			}
		})
	}
}

func TestSliceContentEq(t *testing.T) {
	for name, testcase := range map[string]struct {
		a, b     []string
		expected bool
	}{
		"ordering does not matter":  {a: []string{"a", "b", "c"}, b: []string{"c", "b", "a"}, expected: true},
		"extra element is detected": {a: []string{"a", "b", "c"}, b: []string{"c", "b", "a", "z"}, expected: false},
		"multiplicity matters":      {a: []string{"a", "b", "c", "c"}, b: []string{"a", "b", "c", "b"}, expected: false},
		"empty slices are equal":    {a: []string{}, b: nil, expected: true},
		"same multiset is equal":    {a: []string{"c", "a", "c"}, b: []string{"c", "c", "a"}, expected: true},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := cmp.SliceContentEq(testcase.a, testcase.b); actual != testcase.expected {
				t.Errorf("SliceContentEq(%v, %v) = %v", testcase.a, testcase.b, actual)
			}
		})
	}

	t.Run("with equivalence", func(t *testing.T) {
		if !cmp.SliceContentEqWith(
			[]string{"A", "b"}, []string{"B", "a"},
			strings.EqualFold,
		) {
			t.Error("not equivalent, unexpectedly")
		}
	})
}

func TestMapEq(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	if !cmp.MapEq(a, map[string]int{"y": 2, "x": 1}) {
		t.Error("a != b, unexpectedly.")
	}
	if cmp.MapEq(a, map[string]int{"x": 1, "y": 3}) {
		t.Error("a == b, unexpectedly.")
	}
	if cmp.MapEq(a, map[string]int{"x": 1}) {
		t.Error("a == b, unexpectedly.")
	}
	if !cmp.MapEqWith(
		map[string]int{"x": 1}, map[string]string{"x": "1"},
		func(a int, b string) bool { return strconv.Itoa(a) == b },
	) {
		t.Error("a != b, unexpectedly.")
	}
}
