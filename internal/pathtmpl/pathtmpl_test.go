// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pathtmpl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cmip6Template = "%(root)s/%(mip_era)s/%(activity_drs)s/%(institution_id)s/%(source_id)s/%(experiment_id)s/%(member_id)s/%(table_id)s/%(variable_id)s/%(grid_label)s/%(version)s"

const datasetID = "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|esgf-data.ucar.edu"

func bindings() map[string][]string {
	return map[string][]string{
		"mip_era":        {"CMIP6"},
		"activity_drs":   {"CMIP"},
		"institution_id": {"NCAR"},
		"source_id":      {"CESM2"},
		"experiment_id":  {"historical"},
		"member_id":      {"r1i1p1f1"},
		"table_id":       {"Amon"},
		"variable_id":    {"tas"},
		"grid_label":     {"gn"},
		"version":        {"2"},
	}
}

func TestRender(t *testing.T) {
	got, err := Render(cmip6Template, bindings(), datasetID, "tas_Amon_CESM2_historical_r1i1p1f1_gn_185001-201412.nc")
	require.NoError(t, err)
	assert.Equal(t,
		"CMIP6/CMIP/NCAR/CESM2/historical/r1i1p1f1/Amon/tas/gn/v20190308/tas_Amon_CESM2_historical_r1i1p1f1_gn_185001-201412.nc",
		got)
}

func TestRenderVersionFromDatasetID(t *testing.T) {
	b := bindings()
	delete(b, "version")
	got, err := Render("%(root)s/%(source_id)s/%(version)s", b, datasetID, "f.nc")
	require.NoError(t, err)
	assert.Equal(t, "CESM2/v20190308/f.nc", got)
}

func TestRenderMissingPlaceholder(t *testing.T) {
	b := bindings()
	delete(b, "grid_label")
	_, err := Render(cmip6Template, b, datasetID, "f.nc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPlaceholder)

	var te *TemplateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "grid_label", te.Placeholder)
}

func TestRenderEmptyBinding(t *testing.T) {
	b := bindings()
	b["grid_label"] = []string{}
	_, err := Render(cmip6Template, b, datasetID, "f.nc")
	assert.ErrorIs(t, err, ErrMissingPlaceholder)
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name  string
		tmpl  string
		b     map[string][]string
		title string
	}{
		{"unterminated", "%(root)s/%(source_id", bindings(), "f.nc"},
		{"empty title", cmip6Template, bindings(), ""},
		{"slash in value", "%(source_id)s", map[string][]string{"source_id": {"a/b"}}, "f.nc"},
		{"dotdot value", "%(source_id)s", map[string][]string{"source_id": {".."}}, "f.nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.tmpl, tt.b, datasetID, tt.title)
			var te *TemplateError
			assert.True(t, errors.As(err, &te))
		})
	}
}

func TestExpandWithoutRoot(t *testing.T) {
	got, err := Expand("data/%(a)s-%(b)s/x", func(name string) (string, bool) {
		return map[string]string{"a": "1", "b": "2"}[name], true
	})
	require.NoError(t, err)
	assert.Equal(t, "data/1-2/x", got)
}
