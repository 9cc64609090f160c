// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the esgf-harvest pipeline:
// parsed catalog records, reconciled logical datasets, per-file metadata,
// download tasks, and stage configuration.
package types

import "strings"

// DatasetRecord is one index source's catalog id, split into its facets.
// Facet values never contain the '.' or '|' separators.
type DatasetRecord struct {
	MipEra        string `json:"mip_era" yaml:"mip_era"`
	ActivityID    string `json:"activity_id" yaml:"activity_id"`
	InstitutionID string `json:"institution_id" yaml:"institution_id"`
	SourceID      string `json:"source_id" yaml:"source_id"`
	ExperimentID  string `json:"experiment_id" yaml:"experiment_id"`
	MemberID      string `json:"member_id" yaml:"member_id"`
	TableID       string `json:"table_id" yaml:"table_id"`
	VariableID    string `json:"variable_id" yaml:"variable_id"`
	GridLabel     string `json:"grid_label" yaml:"grid_label"`

	// Version is the version token exactly as it appears in the id (e.g. "v20190726").
	Version string `json:"version" yaml:"version"`

	// DataNode is the hosting node that follows the '|' separator.
	DataNode string `json:"data_node" yaml:"data_node"`

	// ID is the raw catalog id the record was parsed from.
	ID string `json:"id" yaml:"id"`
}

// GroupKey identifies the logical dataset a record belongs to: every facet
// except version and data_node.
func (r DatasetRecord) GroupKey() string {
	return strings.Join([]string{
		r.MipEra, r.ActivityID, r.InstitutionID, r.SourceID, r.ExperimentID,
		r.MemberID, r.TableID, r.VariableID, r.GridLabel,
	}, ".")
}

// LogicalDataset is the reconciled view of every catalog entry that shares
// all facets except version and hosting node. Only the newest version survives.
type LogicalDataset struct {
	MipEra        string `json:"mip_era" yaml:"mip_era"`
	ActivityID    string `json:"activity_id" yaml:"activity_id"`
	InstitutionID string `json:"institution_id" yaml:"institution_id"`
	SourceID      string `json:"source_id" yaml:"source_id"`
	ExperimentID  string `json:"experiment_id" yaml:"experiment_id"`
	MemberID      string `json:"member_id" yaml:"member_id"`
	TableID       string `json:"table_id" yaml:"table_id"`
	VariableID    string `json:"variable_id" yaml:"variable_id"`
	GridLabel     string `json:"grid_label" yaml:"grid_label"`

	// Version is the canonical version token, without the leading "v"
	// (e.g. "20200101").
	Version string `json:"version" yaml:"version"`

	// ID lists the catalog ids that map to this dataset, in encounter order.
	ID []string `json:"id" yaml:"id"`
}

// Key returns the dataset's facet path without the version, which is unique
// within a reconciled table.
func (d LogicalDataset) Key() string {
	return strings.Join([]string{
		d.MipEra, d.ActivityID, d.InstitutionID, d.SourceID, d.ExperimentID,
		d.MemberID, d.TableID, d.VariableID, d.GridLabel,
	}, ".")
}
