package domain

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// CanonicalParameters returns JSON of params with sorted keys.
//
// nil is canonicalized as "{}".
func CanonicalParameters(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func md5hex(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// MatchFingerprint calcurates the match id from inputs.
//
// upas should be normalized (see ParseUPAs).
// The result does not depend on ordering of upas.
func MatchFingerprint(matcherID, collectionID string, verNum int, params map[string]any, upas []string) (string, error) {
	cparams, err := CanonicalParameters(params)
	if err != nil {
		return "", err
	}

	sorted := slices.Clone(upas)
	slices.Sort(sorted)

	b := &strings.Builder{}
	b.WriteString(matcherID + "|" + collectionID + "|" + strconv.Itoa(verNum) + "|")
	b.WriteString(cparams + "|")
	for _, u := range sorted {
		b.WriteString(u + "|")
	}
	return md5hex(b.String()), nil
}

// NormalizeSelectionIDs trims, sorts and de-duplicates ids. Blank ids are dropped.
func NormalizeSelectionIDs(ids []string) []string {
	ret := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			ret = append(ret, id)
		}
	}
	slices.Sort(ret)
	return slices.Compact(ret)
}

// SelectionFingerprint calcurates the selection id from inputs.
//
// The result does not depend on ordering or duplication of ids.
// Selections made from a match are keyed also by the match and whether ids are modified,
// so that the same ids with other provenance are other selections.
func SelectionFingerprint(collectionID string, verNum int, ids []string, sourceMatchID string, modified bool) string {
	b := &strings.Builder{}
	b.WriteString(collectionID + "|" + strconv.Itoa(verNum) + "|")
	for _, id := range NormalizeSelectionIDs(ids) {
		b.WriteString(id + "|")
	}
	if sourceMatchID != "" {
		b.WriteString("match:" + sourceMatchID + "|" + strconv.FormatBool(modified) + "|")
	}
	return md5hex(b.String())
}

// MatchSetFingerprint calcurates the match set id from component match ids.
func MatchSetFingerprint(matchIDs []string) string {
	sorted := NormalizeSelectionIDs(matchIDs)
	b := &strings.Builder{}
	for _, id := range sorted {
		b.WriteString(id + "|")
	}
	return MatchSetPrefix + md5hex(b.String())
}
