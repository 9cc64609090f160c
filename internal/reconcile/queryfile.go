// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// DatasetFile is the on-disk form of a reconciled search. A later fetch can
// load it without querying the indices again.
type DatasetFile struct {
	Query    QueryParams            `yaml:"query"`
	Datasets []types.LogicalDataset `yaml:"datasets"`
	Summary  Summary                `yaml:"summary"`
}

// QueryParams stores the search facets and the sources that answered.
type QueryParams struct {
	Facets  map[string][]string `yaml:"facets,omitempty"`
	Sources []string            `yaml:"sources,omitempty"`
}

// Summary stores result statistics and a timestamp.
type Summary struct {
	Total         int       `yaml:"total"`
	Rejected      int       `yaml:"rejected_ids"`
	BackendErrors []string  `yaml:"backend_errors,omitempty"`
	Timestamp     time.Time `yaml:"timestamp"`
}

// WriteDatasetFile saves a reconciled table to path.
func WriteDatasetFile(path string, q QueryParams, datasets []types.LogicalDataset, rejected int, backendErrors []string) error {
	df := DatasetFile{
		Query:    q,
		Datasets: datasets,
		Summary: Summary{
			Total:         len(datasets),
			Rejected:      rejected,
			BackendErrors: backendErrors,
			Timestamp:     time.Now().UTC(),
		},
	}
	data, err := yaml.Marshal(&df)
	if err != nil {
		return fmt.Errorf("marshaling dataset file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadDatasetFile loads a dataset file written by WriteDatasetFile.
func ReadDatasetFile(path string) (*DatasetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset file: %w", err)
	}
	var df DatasetFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parsing dataset file: %w", err)
	}
	if len(df.Datasets) == 0 {
		return nil, fmt.Errorf("dataset file %s: %w", path, ErrEmptyResult)
	}
	return &df, nil
}
