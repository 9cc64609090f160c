// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/esgf-harvest/internal/httputil"
	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// solrSearchPath is appended to the node host. Declared as a var so tests
// can point it elsewhere.
var solrSearchPath = "/esg-search/search"

const defaultPageSize = 1000

// SolrIndex queries an ESGF esg-search node.
type SolrIndex struct {
	client     *http.Client
	base       string
	name       string
	distrib    bool
	pageSize   int
	userAgent  string
	maxRetries int
}

// NewSolrIndex returns a client for node, which is a host name
// ("esgf-node.llnl.gov") or a full base URL.
func NewSolrIndex(client *http.Client, node string, cfg types.IndexConfig) *SolrIndex {
	base := node
	if !strings.HasPrefix(node, "http://") && !strings.HasPrefix(node, "https://") {
		base = "https://" + node
	}
	pageSize := cfg.Limit
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &SolrIndex{
		client:     client,
		base:       strings.TrimSuffix(base, "/") + solrSearchPath,
		name:       "solr:" + node,
		distrib:    cfg.Distrib,
		pageSize:   pageSize,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// Name returns the index identifier.
func (s *SolrIndex) Name() string { return s.name }

type solrResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Docs     []document `json:"docs"`
	} `json:"response"`
}

// Search returns the ids of matching datasets. Only the latest versions are
// requested unless q.AllVersions is set.
func (s *SolrIndex) Search(ctx context.Context, q Query) ([]string, error) {
	params := s.params("Dataset")
	params.Set("project", q.project())
	params.Set("latest", strconv.FormatBool(!q.AllVersions))
	params.Set("fields", "id")
	for _, k := range q.sortedKeys() {
		for _, v := range q.Facets[k] {
			params.Add(k, v)
		}
	}

	docs, err := s.collect(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoResults
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if id := d.first("id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FileInfo returns the files of the given datasets.
func (s *SolrIndex) FileInfo(ctx context.Context, datasetIDs []string) ([]types.FileEntry, error) {
	if len(datasetIDs) == 0 {
		return nil, nil
	}
	params := s.params("File")
	for _, id := range datasetIDs {
		params.Add("dataset_id", id)
	}

	docs, err := s.collect(ctx, params)
	if err != nil {
		return nil, err
	}
	entries := make([]types.FileEntry, 0, len(docs))
	for _, d := range docs {
		e, err := fileEntry(d, splitSolrURL)
		if err != nil {
			return nil, fmt.Errorf("%s: file %s: %w", s.name, d.first("title"), err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *SolrIndex) params(docType string) url.Values {
	return url.Values{
		"type":    {docType},
		"format":  {"application/solr+json"},
		"distrib": {strconv.FormatBool(s.distrib)},
	}
}

// collect pages through every document matching params.
func (s *SolrIndex) collect(ctx context.Context, params url.Values) ([]document, error) {
	log := logging.FromContext(ctx)
	var docs []document
	for offset := 0; ; {
		params.Set("limit", strconv.Itoa(s.pageSize))
		params.Set("offset", strconv.Itoa(offset))

		page, err := s.get(ctx, params)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page.Response.Docs...)
		offset += len(page.Response.Docs)
		log.Debug().Str("index", s.name).Int("received", offset).Int("found", page.Response.NumFound).Msg("solr page")
		if len(page.Response.Docs) == 0 || offset >= page.Response.NumFound {
			return docs, nil
		}
	}
}

func (s *SolrIndex) get(ctx context.Context, params url.Values) (*solrResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Index: s.name, StatusCode: resp.StatusCode}
	}

	var sr solrResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", s.name, err)
	}
	return &sr, nil
}
