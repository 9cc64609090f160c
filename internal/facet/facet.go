// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package facet tokenizes catalog identifiers into facet records.
//
// An identifier is an ordered list of facet values joined by '.', followed by
// '|' and the hosting data node:
//
//	CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|esgf-data.ucar.edu
//
// The data node may itself contain dots; no other facet may.
package facet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

const (
	// Sep delimits facet values.
	Sep = '.'
	// NodeSep delimits the data node from the rest of the identifier.
	NodeSep = '|'
)

// ErrNoMatch reports that an identifier does not follow the grammar.
var ErrNoMatch = errors.New("identifier does not match facet grammar")

// ParseError describes why an identifier was rejected.
type ParseError struct {
	ID     string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrNoMatch.Error(), e.ID, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrNoMatch }

// Grammar is a versioned, ordered facet list. The last facet of Facets is
// the version; NodeFacet follows the '|' separator.
type Grammar struct {
	Name      string
	Facets    []string
	NodeFacet string
}

// CMIP6 is the dataset identifier grammar used by ESGF CMIP6 indices.
var CMIP6 = Grammar{
	Name: "cmip6/1",
	Facets: []string{
		"mip_era",
		"activity_id",
		"institution_id",
		"source_id",
		"experiment_id",
		"member_id",
		"table_id",
		"variable_id",
		"grid_label",
		"version",
	},
	NodeFacet: "data_node",
}

// Columns returns the facet names in order, including the node facet.
func (g Grammar) Columns() []string {
	cols := make([]string, 0, len(g.Facets)+1)
	cols = append(cols, g.Facets...)
	return append(cols, g.NodeFacet)
}

// Tokenize splits id into one value per column. It returns a *ParseError
// wrapping ErrNoMatch when the identifier has the wrong shape.
func (g Grammar) Tokenize(id string) ([]string, error) {
	head, node, ok := strings.Cut(id, string(NodeSep))
	if !ok {
		return nil, &ParseError{ID: id, Reason: "missing data node separator"}
	}
	if strings.ContainsRune(node, NodeSep) {
		return nil, &ParseError{ID: id, Reason: "more than one data node separator"}
	}
	if node == "" {
		return nil, &ParseError{ID: id, Reason: "empty " + g.NodeFacet}
	}

	values := strings.Split(head, string(Sep))
	if len(values) != len(g.Facets) {
		return nil, &ParseError{
			ID:     id,
			Reason: fmt.Sprintf("want %d facets, got %d", len(g.Facets), len(values)),
		}
	}
	for i, v := range values {
		if v == "" {
			return nil, &ParseError{ID: id, Reason: "empty " + g.Facets[i]}
		}
	}
	return append(values, node), nil
}

// Parse tokenizes id with the CMIP6 grammar and binds the values to a record.
func Parse(id string) (types.DatasetRecord, error) {
	return CMIP6.Parse(id)
}

// Parse tokenizes id and binds each value to its facet.
func (g Grammar) Parse(id string) (types.DatasetRecord, error) {
	values, err := g.Tokenize(id)
	if err != nil {
		return types.DatasetRecord{}, err
	}
	rec := types.DatasetRecord{ID: id}
	for i, name := range g.Columns() {
		field, ok := recordFields[name]
		if !ok {
			return types.DatasetRecord{}, fmt.Errorf("grammar %s: unknown facet %q", g.Name, name)
		}
		*field(&rec) = values[i]
	}
	return rec, nil
}

// Join reassembles rec into an identifier. For any record produced by Parse,
// Join returns the original identifier.
func (g Grammar) Join(rec types.DatasetRecord) string {
	var b strings.Builder
	for i, name := range g.Facets {
		if i > 0 {
			b.WriteByte(Sep)
		}
		b.WriteString(*recordFields[name](&rec))
	}
	b.WriteByte(NodeSep)
	b.WriteString(*recordFields[g.NodeFacet](&rec))
	return b.String()
}

// Join reassembles rec with the CMIP6 grammar.
func Join(rec types.DatasetRecord) string {
	return CMIP6.Join(rec)
}

// ParseAll parses every id, skipping the ones that do not match. The rejected
// identifiers are returned as errors so the caller can report them.
func ParseAll(ids []string) ([]types.DatasetRecord, []error) {
	records := make([]types.DatasetRecord, 0, len(ids))
	var rejected []error
	for _, id := range ids {
		rec, err := Parse(id)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

// DatasetVersion returns the trailing dot-delimited component of the part of
// id before its '|' separator, e.g. "v20190308".
func DatasetVersion(id string) string {
	head, _, _ := strings.Cut(id, string(NodeSep))
	if i := strings.LastIndexByte(head, Sep); i >= 0 {
		return head[i+1:]
	}
	return head
}

var recordFields = map[string]func(*types.DatasetRecord) *string{
	"mip_era":        func(r *types.DatasetRecord) *string { return &r.MipEra },
	"activity_id":    func(r *types.DatasetRecord) *string { return &r.ActivityID },
	"institution_id": func(r *types.DatasetRecord) *string { return &r.InstitutionID },
	"source_id":      func(r *types.DatasetRecord) *string { return &r.SourceID },
	"experiment_id":  func(r *types.DatasetRecord) *string { return &r.ExperimentID },
	"member_id":      func(r *types.DatasetRecord) *string { return &r.MemberID },
	"table_id":       func(r *types.DatasetRecord) *string { return &r.TableID },
	"variable_id":    func(r *types.DatasetRecord) *string { return &r.VariableID },
	"grid_label":     func(r *types.DatasetRecord) *string { return &r.GridLabel },
	"version":        func(r *types.DatasetRecord) *string { return &r.Version },
	"data_node":      func(r *types.DatasetRecord) *string { return &r.DataNode },
}
