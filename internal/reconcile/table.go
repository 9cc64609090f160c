// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// Columns lists the reconciled table's columns: every facet except data_node,
// followed by the id list.
var Columns = []string{
	"mip_era", "activity_id", "institution_id", "source_id", "experiment_id",
	"member_id", "table_id", "variable_id", "grid_label", "version", "id",
}

// FormatTable writes datasets as a human-readable table to w.
func FormatTable(datasets []types.LogicalDataset, w io.Writer) {
	if len(datasets) == 0 {
		fmt.Fprintln(w, "No datasets found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-16s  %-20s  %-14s  %-10s  %-8s  %-5s  %-9s  %s\n",
		"#", "Source", "Experiment", "Member", "Table", "Variable", "Grid", "Version", "Nodes")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, d := range datasets {
		fmt.Fprintf(w, "%-4d  %-16s  %-20s  %-14s  %-10s  %-8s  %-5s  %-9s  %d\n",
			i+1, truncate(d.SourceID, 16), truncate(d.ExperimentID, 20), truncate(d.MemberID, 14),
			d.TableID, d.VariableID, d.GridLabel, d.Version, len(d.ID))
	}
	fmt.Fprintf(w, "\n%d datasets\n", len(datasets))
}

// FormatJSON writes datasets as indented JSON to w.
func FormatJSON(datasets []types.LogicalDataset, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(datasets)
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
