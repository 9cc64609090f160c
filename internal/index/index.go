// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index queries ESGF catalog-index services and fans queries out
// across redundant sources, isolating the failure of any one source.
package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// ErrNoResults reports a query that matched nothing at one source.
var ErrNoResults = errors.New("search returned no results")

// Index is one catalog-index service.
type Index interface {
	Name() string

	// Search returns the raw catalog ids of the datasets matching q.
	Search(ctx context.Context, q Query) ([]string, error)

	// FileInfo returns the files of the given datasets.
	FileInfo(ctx context.Context, datasetIDs []string) ([]types.FileEntry, error)
}

// Query holds the facet constraints of a dataset search.
type Query struct {
	// Facets maps a facet name to accepted values.
	Facets map[string][]string

	// Project defaults to "CMIP6".
	Project string

	// AllVersions disables the index-side latest=true filter.
	AllVersions bool
}

// IsEmpty reports whether the query has no facet constraints.
func (q Query) IsEmpty() bool {
	return len(q.Facets) == 0
}

func (q Query) project() string {
	if q.Project == "" {
		return "CMIP6"
	}
	return q.Project
}

// sortedKeys returns the facet names in a stable order for request building.
func (q Query) sortedKeys() []string {
	keys := make([]string, 0, len(q.Facets))
	for k := range q.Facets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseFacets turns "name=v1,v2" arguments into facet constraints. Repeated
// names accumulate values.
func ParseFacets(args []string) (map[string][]string, error) {
	facets := make(map[string][]string)
	for _, a := range args {
		name, vals, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || vals == "" {
			return nil, fmt.Errorf("invalid facet %q: want name=value[,value...]", a)
		}
		for _, v := range strings.Split(vals, ",") {
			if v = strings.TrimSpace(v); v != "" {
				facets[name] = append(facets[name], v)
			}
		}
	}
	return facets, nil
}

// APIError reports a non-200 response from an index service.
type APIError struct {
	Index      string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Index, e.StatusCode)
}

// Open builds an Index from an endpoint string: "solr:<host>" or
// "globus:<index id or alias>".
func Open(endpoint string, client *http.Client, cfg types.IndexConfig) (Index, error) {
	kind, target, ok := strings.Cut(endpoint, ":")
	if !ok || target == "" {
		return nil, fmt.Errorf("invalid index endpoint %q: want solr:<host> or globus:<index>", endpoint)
	}
	switch kind {
	case "solr":
		return NewSolrIndex(client, target, cfg), nil
	case "globus":
		return NewGlobusIndex(client, target, cfg), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q in %q", kind, endpoint)
	}
}
