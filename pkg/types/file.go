// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ProtocolHTTP is the transport protocol name ESGF uses for plain HTTP mirrors.
const ProtocolHTTP = "HTTPServer"

// FileEntry is one index source's description of a file, before merging.
// It carries the raw fields needed to render the file's relative path.
type FileEntry struct {
	// DatasetID is the owning catalog id, including the "|data_node" suffix.
	DatasetID string `json:"dataset_id" yaml:"dataset_id"`

	// Template is the directory format template, e.g.
	// "%(root)s/%(mip_era)s/%(activity_drs)s/…/%(version)s".
	Template string `json:"directory_format_template" yaml:"directory_format_template"`

	// Title is the bare filename.
	Title string `json:"title" yaml:"title"`

	Checksum     string `json:"checksum" yaml:"checksum"`
	ChecksumType string `json:"checksum_type" yaml:"checksum_type"`
	Size         int64  `json:"size" yaml:"size"`

	// URLs maps a transport protocol name (e.g. "HTTPServer") to mirror URLs.
	URLs map[string][]string `json:"urls" yaml:"urls"`

	// Fields holds the placeholder bindings the source returned. Each value
	// conventionally holds a single element.
	Fields map[string][]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// FileRecord is the merged, per-path description of a physical file.
// Path is the merge key.
type FileRecord struct {
	Checksum     string              `json:"checksum" yaml:"checksum"`
	ChecksumType string              `json:"checksum_type" yaml:"checksum_type"`
	Size         int64               `json:"size" yaml:"size"`
	Path         string              `json:"path" yaml:"path"`
	URLs         map[string][]string `json:"urls" yaml:"urls"`
}

// Mirrors returns the mirror URLs registered for protocol.
func (f FileRecord) Mirrors(protocol string) []string {
	return f.URLs[protocol]
}

// TaskState is a step of a download task's lifecycle.
type TaskState string

const (
	TaskPending     TaskState = "pending"
	TaskLocalHit    TaskState = "local_hit"
	TaskDownloading TaskState = "downloading"
	TaskVerified    TaskState = "verified"
	TaskFailed      TaskState = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskLocalHit, TaskVerified, TaskFailed:
		return true
	default:
		return false
	}
}

// DownloadTask describes a single file retrieval. It is consumed once.
type DownloadTask struct {
	// Key is the caller's request key, reported back with the outcome.
	Key string `json:"key" yaml:"key"`

	// Path is the destination path relative to the cache or data root.
	Path string `json:"path" yaml:"path"`

	// URLs are the mirrors to try, in order.
	URLs []string `json:"urls" yaml:"urls"`

	Checksum     string `json:"checksum" yaml:"checksum"`
	ChecksumType string `json:"checksum_type" yaml:"checksum_type"`
	Size         int64  `json:"size" yaml:"size"`
}
