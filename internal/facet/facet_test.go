// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package facet

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleID = "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|esgf-data.ucar.edu"

func TestParse(t *testing.T) {
	rec, err := Parse(sampleID)
	require.NoError(t, err)

	assert.Equal(t, "CMIP6", rec.MipEra)
	assert.Equal(t, "CMIP", rec.ActivityID)
	assert.Equal(t, "NCAR", rec.InstitutionID)
	assert.Equal(t, "CESM2", rec.SourceID)
	assert.Equal(t, "historical", rec.ExperimentID)
	assert.Equal(t, "r1i1p1f1", rec.MemberID)
	assert.Equal(t, "Amon", rec.TableID)
	assert.Equal(t, "tas", rec.VariableID)
	assert.Equal(t, "gn", rec.GridLabel)
	assert.Equal(t, "v20190308", rec.Version)
	assert.Equal(t, "esgf-data.ucar.edu", rec.DataNode)
	assert.Equal(t, sampleID, rec.ID)
}

func TestParseNoMatch(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"no node separator", "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308"},
		{"two node separators", sampleID + "|other"},
		{"empty node", "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|"},
		{"too few facets", "CMIP6.X.Y.v20190726|nodeA"},
		{"too many facets", "CMIP6.CMIP.NCAR.CESM2.extra.historical.r1i1p1f1.Amon.tas.gn.v20190308|node"},
		{"empty facet", "CMIP6.CMIP..CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|node"},
		{"pipe in head", "CMIP6|CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.id)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoMatch))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.id, pe.ID)
		})
	}
}

func TestJoinRoundTrip(t *testing.T) {
	// Synthetic identifiers built from the grammar with varied facet contents.
	alphabet := []string{"a", "B-1", "x_y", "r10i1p1f2", "v1", "20200101", "é", "with space"}
	for n := 0; n < 50; n++ {
		parts := make([]string, len(CMIP6.Facets))
		for i := range parts {
			parts[i] = alphabet[(n+i*3)%len(alphabet)] + fmt.Sprint(i)
		}
		node := fmt.Sprintf("node%d.example.org", n)
		id := strings.Join(parts, ".") + "|" + node

		rec, err := Parse(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, Join(rec))
	}
}

func TestParseAll(t *testing.T) {
	ids := []string{sampleID, "garbage", strings.Replace(sampleID, "tas", "pr", 1)}
	records, rejected := ParseAll(ids)

	require.Len(t, records, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "tas", records[0].VariableID)
	assert.Equal(t, "pr", records[1].VariableID)
	assert.ErrorIs(t, rejected[0], ErrNoMatch)
}

func TestGrammarUnknownFacet(t *testing.T) {
	g := Grammar{Name: "test", Facets: []string{"mip_era", "bogus"}, NodeFacet: "data_node"}
	_, err := g.Parse("CMIP6.x|node")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoMatch))
}

func TestDatasetVersion(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{sampleID, "v20190308"},
		{"CMIP6.A.B.v1|node.with.dots", "v1"},
		{"noversion", "noversion"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DatasetVersion(tt.id), tt.id)
	}
}
