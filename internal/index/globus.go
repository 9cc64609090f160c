// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/esgf-harvest/internal/httputil"
	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// globusSearchBase is the Globus Search index endpoint. Declared as a var so
// tests can substitute an httptest server.
var globusSearchBase = "https://search.api.globus.org/v1/index/"

// GlobusIndexAliases maps short names to Globus Search index ids.
var GlobusIndexAliases = map[string]string{
	"anl-dev": "d927e2d9-ccdb-48e4-b05d-adbc3d97bbc5",
}

const globusPageSize = 1000

// GlobusIndex queries an ESGF index hosted on Globus Search. It only serves
// CMIP6 records.
type GlobusIndex struct {
	client     *http.Client
	indexID    string
	name       string
	userAgent  string
	maxRetries int
	pageSize   int

	// Token is an optional Globus bearer token.
	Token string
}

// NewGlobusIndex returns a client for an index id or alias.
func NewGlobusIndex(client *http.Client, index string, cfg types.IndexConfig) *GlobusIndex {
	id := index
	if alias, ok := GlobusIndexAliases[index]; ok {
		id = alias
	}
	pageSize := cfg.Limit
	if pageSize <= 0 || pageSize > globusPageSize {
		pageSize = globusPageSize
	}
	return &GlobusIndex{
		client:     client,
		indexID:    id,
		name:       "globus:" + index,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		pageSize:   pageSize,
	}
}

// Name returns the index identifier.
func (g *GlobusIndex) Name() string { return g.name }

type globusFilter struct {
	Type      string   `json:"type"`
	FieldName string   `json:"field_name"`
	Values    []string `json:"values"`
}

type globusQuery struct {
	Q       string         `json:"q"`
	Filters []globusFilter `json:"filters"`
	Facets  []any          `json:"facets"`
	Sort    []any          `json:"sort"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

type globusResponse struct {
	Total int `json:"total"`
	Gmeta []struct {
		Subject string `json:"subject"`
		Entries []struct {
			EntryID string   `json:"entry_id"`
			Content document `json:"content"`
		} `json:"entries"`
	} `json:"gmeta"`
}

// Search returns the ids of matching datasets.
func (g *GlobusIndex) Search(ctx context.Context, q Query) ([]string, error) {
	if p := q.project(); p != "CMIP6" {
		return nil, fmt.Errorf("%s only indexes CMIP6, not %q", g.name, p)
	}
	filters := []globusFilter{
		{Type: "match_any", FieldName: "type", Values: []string{"Dataset"}},
	}
	if !q.AllVersions {
		// The index stores booleans as Python-style strings.
		filters = append(filters, globusFilter{Type: "match_any", FieldName: "latest", Values: []string{"True"}})
	}
	for _, k := range q.sortedKeys() {
		filters = append(filters, globusFilter{Type: "match_any", FieldName: k, Values: q.Facets[k]})
	}

	res, err := g.collect(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNoResults
	}
	ids := make([]string, 0, len(res))
	for _, r := range res {
		ids = append(ids, r.subject)
	}
	return ids, nil
}

// FileInfo returns the files of the given datasets.
func (g *GlobusIndex) FileInfo(ctx context.Context, datasetIDs []string) ([]types.FileEntry, error) {
	if len(datasetIDs) == 0 {
		return nil, nil
	}
	filters := []globusFilter{
		{Type: "match_any", FieldName: "dataset_id", Values: datasetIDs},
	}
	res, err := g.collect(ctx, filters)
	if err != nil {
		return nil, err
	}
	var entries []types.FileEntry
	for _, r := range res {
		if r.entryID != "file" {
			continue
		}
		e, err := fileEntry(r.content, splitGlobusURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", g.name, r.subject, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type globusHit struct {
	subject string
	entryID string
	content document
}

// collect pages through every hit matching filters.
func (g *GlobusIndex) collect(ctx context.Context, filters []globusFilter) ([]globusHit, error) {
	log := logging.FromContext(ctx)
	var hits []globusHit
	for offset := 0; ; {
		body := globusQuery{
			Filters: filters,
			Facets:  []any{},
			Sort:    []any{},
			Limit:   g.pageSize,
			Offset:  offset,
		}
		page, err := g.post(ctx, body)
		if err != nil {
			return nil, err
		}
		for _, gm := range page.Gmeta {
			if len(gm.Entries) != 1 {
				log.Warn().Str("index", g.name).Str("subject", gm.Subject).Int("entries", len(gm.Entries)).Msg("skipping record with unexpected entry count")
				continue
			}
			hits = append(hits, globusHit{subject: gm.Subject, entryID: gm.Entries[0].EntryID, content: gm.Entries[0].Content})
		}
		offset += len(page.Gmeta)
		log.Debug().Str("index", g.name).Int("received", offset).Int("total", page.Total).Msg("globus page")
		if len(page.Gmeta) == 0 || offset >= page.Total {
			return hits, nil
		}
	}
}

func (g *GlobusIndex) post(ctx context.Context, q globusQuery) (*globusResponse, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, globusSearchBase+g.indexID+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", g.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Index: g.name, StatusCode: resp.StatusCode}
	}

	var gr globusResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", g.name, err)
	}
	return &gr, nil
}
