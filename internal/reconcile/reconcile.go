// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile folds dataset records returned by redundant index sources
// into one row per logical dataset, keeping only the newest version.
package reconcile

import (
	"errors"
	"strings"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// ErrEmptyResult reports that no dataset survived reconciliation.
var ErrEmptyResult = errors.New("search returned no results")

// Reconcile combines the record sequences contributed by each source.
//
// Records whose id duplicates an earlier one are dropped (first seen wins).
// The rest are grouped by every facet except version and data_node; in each
// group only records at the maximum version survive, and they collapse into a
// single LogicalDataset whose facets come from the first survivor and whose ID
// list holds every survivor's id in encounter order. Groups are returned in
// the order they were first encountered.
func Reconcile(sources ...[]types.DatasetRecord) ([]types.LogicalDataset, error) {
	var all []types.DatasetRecord
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, r := range src {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			all = append(all, r)
		}
	}
	if len(all) == 0 {
		return nil, ErrEmptyResult
	}

	var order []string
	groups := make(map[string][]types.DatasetRecord)
	for _, r := range all {
		key := r.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	datasets := make([]types.LogicalDataset, 0, len(order))
	for _, key := range order {
		if ds, ok := collapse(groups[key]); ok {
			datasets = append(datasets, ds)
		}
	}
	if len(datasets) == 0 {
		return nil, ErrEmptyResult
	}
	return datasets, nil
}

// collapse keeps the records at the group's maximum version and merges them.
func collapse(group []types.DatasetRecord) (types.LogicalDataset, bool) {
	if len(group) == 0 {
		return types.LogicalDataset{}, false
	}
	latest := group[0].Version
	for _, r := range group[1:] {
		if CompareVersions(r.Version, latest) > 0 {
			latest = r.Version
		}
	}

	var ds types.LogicalDataset
	for _, r := range group {
		if CompareVersions(r.Version, latest) != 0 {
			continue
		}
		if len(ds.ID) == 0 {
			ds = types.LogicalDataset{
				MipEra:        r.MipEra,
				ActivityID:    r.ActivityID,
				InstitutionID: r.InstitutionID,
				SourceID:      r.SourceID,
				ExperimentID:  r.ExperimentID,
				MemberID:      r.MemberID,
				TableID:       r.TableID,
				VariableID:    r.VariableID,
				GridLabel:     r.GridLabel,
				Version:       CanonicalVersion(r.Version),
			}
		}
		ds.ID = append(ds.ID, r.ID)
	}
	return ds, true
}

// CanonicalVersion strips the conventional "v" prefix from a version token.
func CanonicalVersion(v string) string {
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') {
		return v[1:]
	}
	return v
}

// CompareVersions orders two version tokens and returns -1, 0 or +1.
//
// Tokens are compared after CanonicalVersion. All-digit tokens sort before
// any other token and compare numerically among themselves (so "9" < "10").
// Other tokens compare as opaque strings. ESGF versions are YYYYMMDD dates,
// which always take the numeric path.
func CompareVersions(a, b string) int {
	a, b = CanonicalVersion(a), CanonicalVersion(b)
	da, db := isDigits(a), isDigits(b)
	switch {
	case da && !db:
		return -1
	case !da && db:
		return 1
	case da && db:
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
