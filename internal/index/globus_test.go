// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overrideGlobusBase points the Globus client at tsURL and returns a restore func.
func overrideGlobusBase(tsURL string) func() {
	orig := globusSearchBase
	globusSearchBase = tsURL + "/v1/index/"
	return func() { globusSearchBase = orig }
}

func TestGlobusSearch(t *testing.T) {
	var got globusQuery
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/index/"+GlobusIndexAliases["anl-dev"]+"/search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprintf(w, `{"total":2,"gmeta":[
			{"subject":%q,"entries":[{"entry_id":null,"content":{}}]},
			{"subject":%q,"entries":[{"entry_id":null,"content":{}}]}
		]}`, idA, idB)
	}))
	defer ts.Close()
	defer overrideGlobusBase(ts.URL)()

	g := NewGlobusIndex(ts.Client(), "anl-dev", testIndexConfig())
	g.Token = "tok"
	ids, err := g.Search(context.Background(), Query{Facets: map[string][]string{"variable_id": {"tas"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{idA, idB}, ids)

	require.Len(t, got.Filters, 3)
	assert.Equal(t, globusFilter{Type: "match_any", FieldName: "type", Values: []string{"Dataset"}}, got.Filters[0])
	assert.Equal(t, globusFilter{Type: "match_any", FieldName: "latest", Values: []string{"True"}}, got.Filters[1])
	assert.Equal(t, globusFilter{Type: "match_any", FieldName: "variable_id", Values: []string{"tas"}}, got.Filters[2])
}

func TestGlobusSearchRejectsOtherProjects(t *testing.T) {
	g := NewGlobusIndex(http.DefaultClient, "anl-dev", testIndexConfig())
	_, err := g.Search(context.Background(), Query{Project: "CMIP5", Facets: map[string][]string{"a": {"b"}}})
	assert.ErrorContains(t, err, "only indexes CMIP6")
}

func TestGlobusFileInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q globusQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "dataset_id", q.Filters[0].FieldName)
		fmt.Fprintf(w, `{"total":2,"gmeta":[
			{"subject":"file-1","entries":[{"entry_id":"file","content":{
				"dataset_id":%q,
				"title":"tas.nc",
				"checksum":["abc"],
				"checksum_type":["MD5"],
				"size":12,
				"version":["20190308"],
				"source_id":["CESM2"],
				"directory_format_template_":["%%(root)s/%%(source_id)s/%%(version)s"],
				"url":["https://node/tas.nc|HTTPServer","globus:abc/tas.nc|Globus"]
			}}]},
			{"subject":%q,"entries":[{"entry_id":null,"content":{}}]}
		]}`, idA, idA)
	}))
	defer ts.Close()
	defer overrideGlobusBase(ts.URL)()

	entries, err := NewGlobusIndex(ts.Client(), "some-uuid", testIndexConfig()).FileInfo(context.Background(), []string{idA})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "abc", e.Checksum)
	assert.Equal(t, "MD5", e.ChecksumType)
	assert.Equal(t, int64(12), e.Size)
	assert.Equal(t, []string{"https://node/tas.nc"}, e.URLs["HTTPServer"])
	assert.Equal(t, []string{"globus:abc/tas.nc"}, e.URLs["Globus"])
}
