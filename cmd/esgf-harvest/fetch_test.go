package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/esgf-harvest/internal/catalog"
	"github.com/pdiddy/esgf-harvest/internal/index"
	"github.com/pdiddy/esgf-harvest/internal/retrieve"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

const testID = "CMIP6.CMIP.NCAR.CESM2.historical.r1i1p1f1.Amon.tas.gn.v20190308|esgf-data.ucar.edu"

// stubIndex answers file queries with fixed entries or a fixed error.
type stubIndex struct {
	name    string
	entries []types.FileEntry
	err     error
}

func (s *stubIndex) Name() string { return s.name }

func (s *stubIndex) Search(context.Context, index.Query) ([]string, error) { return nil, s.err }

func (s *stubIndex) FileInfo(context.Context, []string) ([]types.FileEntry, error) {
	return s.entries, s.err
}

func testDataset() types.LogicalDataset {
	return types.LogicalDataset{
		MipEra: "CMIP6", ActivityID: "CMIP", InstitutionID: "NCAR", SourceID: "CESM2",
		ExperimentID: "historical", MemberID: "r1i1p1f1", TableID: "Amon",
		VariableID: "tas", GridLabel: "gn", Version: "20190308", ID: []string{testID},
	}
}

func testEntry() types.FileEntry {
	return types.FileEntry{
		DatasetID:    testID,
		Template:     "%(root)s/%(source_id)s/%(version)s",
		Title:        "tas.nc",
		Checksum:     "abc",
		ChecksumType: "SHA256",
		URLs:         map[string][]string{types.ProtocolHTTP: {"https://a/tas.nc"}},
		Fields:       map[string][]string{"source_id": {"CESM2"}},
	}
}

func testLedger(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.NewStore(types.CatalogConfig{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SaveDatasets(context.Background(), []types.LogicalDataset{testDataset()}))
	return store
}

func TestDatasetFilesRecordsMergedFiles(t *testing.T) {
	ctx := context.Background()
	store := testLedger(t)
	d := testDataset()

	files, err := datasetFiles(ctx, []index.Index{&stubIndex{name: "a", entries: []types.FileEntry{testEntry()}}}, store, d)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "CESM2/v20190308/tas.nc", files[0].Path)

	recorded, err := store.FilesFor(ctx, d.Key())
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, files[0].Path, recorded[0].Path)
}

func TestDatasetFilesFallsBackToLedger(t *testing.T) {
	ctx := context.Background()
	store := testLedger(t)
	d := testDataset()

	_, err := datasetFiles(ctx, []index.Index{&stubIndex{name: "a", entries: []types.FileEntry{testEntry()}}}, store, d)
	require.NoError(t, err)

	down := []index.Index{
		&stubIndex{name: "a", err: errors.New("connection refused")},
		&stubIndex{name: "b", err: errors.New("HTTP 503")},
	}
	files, err := datasetFiles(ctx, down, store, d)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, []string{"https://a/tas.nc"}, files[0].Mirrors(types.ProtocolHTTP))
}

func TestDatasetFilesNoFallbackWhenAnIndexAnswered(t *testing.T) {
	ctx := context.Background()
	store := testLedger(t)
	d := testDataset()

	_, err := datasetFiles(ctx, []index.Index{&stubIndex{name: "a", entries: []types.FileEntry{testEntry()}}}, store, d)
	require.NoError(t, err)

	mixed := []index.Index{
		&stubIndex{name: "a", err: errors.New("connection refused")},
		&stubIndex{name: "b"},
	}
	files, err := datasetFiles(ctx, mixed, store, d)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPrintStatus(t *testing.T) {
	ctx := context.Background()
	store := testLedger(t)

	require.NoError(t, store.RecordOutcome(ctx, retrieve.Outcome{
		Key: "a", Path: "CESM2/v20190308/tas.nc", State: types.TaskVerified, URL: "https://a/tas.nc",
	}))
	require.NoError(t, store.RecordOutcome(ctx, retrieve.Outcome{
		Key: "b", Path: "CESM2/v20190308/pr.nc", State: types.TaskFailed, Err: errors.New("all mirrors exhausted"),
	}))

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	var buf bytes.Buffer
	require.NoError(t, printStatus(cmd, store, false, &buf))
	out := buf.String()
	assert.Contains(t, out, "CESM2")
	assert.Contains(t, out, "verified   CESM2/v20190308/tas.nc <- https://a/tas.nc")
	assert.Contains(t, out, "failed     CESM2/v20190308/pr.nc (all mirrors exhausted)")
	assert.Contains(t, out, "Downloads: 1 verified, 0 local, 1 failed (total: 2)")

	buf.Reset()
	require.NoError(t, printStatus(cmd, store, true, &buf))
	assert.NotContains(t, buf.String(), "tas.nc <-")
	assert.Contains(t, buf.String(), "pr.nc (all mirrors exhausted)")
}
