// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

const (
	idA = "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|esgf-data.ucar.edu"
	idB = "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|esgf-data1.llnl.gov"
)

const solrFileDoc = `{
  "id": "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308.tas_Amon.nc|esgf-data.ucar.edu",
  "dataset_id": "` + idA + `",
  "title": "tas_Amon_CESM2_historical_r1i1p1f1_gn_185001-201412.nc",
  "checksum": ["6e1b9a"],
  "checksum_type": ["SHA256"],
  "size": 243243,
  "version": "1",
  "mip_era": ["CMIP6"],
  "activity_drs": ["CMIP"],
  "source_id": ["CESM2"],
  "directory_format_template_": ["%(root)s/%(mip_era)s/%(activity_drs)s/%(source_id)s/%(version)s"],
  "url": [
    "https://esgf-data.ucar.edu/thredds/fileServer/tas.nc|application/netcdf|HTTPServer",
    "https://esgf-data.ucar.edu/thredds/dodsC/tas.nc.html|application/opendap-html|OPENDAP",
    "malformed"
  ]
}`

func testIndexConfig() types.IndexConfig {
	return types.IndexConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "esgf-harvest-test/0.1"},
		Distrib:    true,
		Limit:      2,
		MaxRetries: 1,
	}
}

func TestSolrSearchPaging(t *testing.T) {
	ids := []string{idA, idB, "garbage"}
	var pages int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		q := r.URL.Query()
		assert.Equal(t, "/esg-search/search", r.URL.Path)
		assert.Equal(t, "Dataset", q.Get("type"))
		assert.Equal(t, "true", q.Get("latest"))
		assert.Equal(t, "true", q.Get("distrib"))
		assert.Equal(t, "CMIP6", q.Get("project"))
		assert.Equal(t, []string{"historical", "ssp585"}, q["experiment_id"])
		assert.Equal(t, "esgf-harvest-test/0.1", r.Header.Get("User-Agent"))

		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		end := min(offset+limit, len(ids))
		fmt.Fprintf(w, `{"response":{"numFound":%d,"docs":[`, len(ids))
		for i, id := range ids[offset:end] {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%q}`, id)
		}
		fmt.Fprint(w, `]}}`)
	}))
	defer ts.Close()

	s := NewSolrIndex(ts.Client(), ts.URL, testIndexConfig())
	got, err := s.Search(context.Background(), Query{Facets: map[string][]string{"experiment_id": {"historical", "ssp585"}}})
	require.NoError(t, err)
	assert.Equal(t, ids, got)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "solr:"+ts.URL, s.Name())
}

func TestSolrSearchNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"response":{"numFound":0,"docs":[]}}`)
	}))
	defer ts.Close()

	_, err := NewSolrIndex(ts.Client(), ts.URL, testIndexConfig()).Search(context.Background(), Query{Facets: map[string][]string{"a": {"b"}}})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSolrHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewSolrIndex(ts.Client(), ts.URL, testIndexConfig()).Search(context.Background(), Query{Facets: map[string][]string{"a": {"b"}}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestSolrFileInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "File", q.Get("type"))
		assert.Equal(t, []string{idA, idB}, q["dataset_id"])
		fmt.Fprintf(w, `{"response":{"numFound":1,"docs":[%s]}}`, solrFileDoc)
	}))
	defer ts.Close()

	entries, err := NewSolrIndex(ts.Client(), ts.URL, testIndexConfig()).FileInfo(context.Background(), []string{idA, idB})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, idA, e.DatasetID)
	assert.Equal(t, "tas_Amon_CESM2_historical_r1i1p1f1_gn_185001-201412.nc", e.Title)
	assert.Equal(t, "6e1b9a", e.Checksum)
	assert.Equal(t, "SHA256", e.ChecksumType)
	assert.Equal(t, int64(243243), e.Size)
	assert.Equal(t, "%(root)s/%(mip_era)s/%(activity_drs)s/%(source_id)s/%(version)s", e.Template)
	assert.Equal(t, []string{"https://esgf-data.ucar.edu/thredds/fileServer/tas.nc"}, e.URLs["HTTPServer"])
	assert.Len(t, e.URLs["OPENDAP"], 1)
	assert.Equal(t, []string{"CMIP"}, e.Fields["activity_drs"])
	assert.Equal(t, []string{"1"}, e.Fields["version"])
}

func TestSolrFileInfoNoIDs(t *testing.T) {
	entries, err := NewSolrIndex(http.DefaultClient, "example.invalid", testIndexConfig()).FileInfo(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
