// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filemeta

import "github.com/pdiddy/esgf-harvest/pkg/types"

// Kind says how a field combines across sources.
type Kind int

const (
	// Scalar fields keep the first source's value.
	Scalar Kind = iota
	// MirrorList fields concatenate every source's values.
	MirrorList
)

func (k Kind) String() string {
	if k == MirrorList {
		return "mirror-list"
	}
	return "scalar"
}

// Field is one attribute of a FileRecord and the rule for merging it.
type Field struct {
	Name string
	Kind Kind

	// merge folds src into dst.
	merge func(dst, src *types.FileRecord)
}

// Schema lists every merged attribute of a FileRecord.
var Schema = []Field{
	{Name: "checksum", Kind: Scalar, merge: func(dst, src *types.FileRecord) { dst.Checksum = src.Checksum }},
	{Name: "checksum_type", Kind: Scalar, merge: func(dst, src *types.FileRecord) { dst.ChecksumType = src.ChecksumType }},
	{Name: "size", Kind: Scalar, merge: func(dst, src *types.FileRecord) { dst.Size = src.Size }},
	{Name: "path", Kind: Scalar, merge: func(dst, src *types.FileRecord) { dst.Path = src.Path }},
	{Name: "urls", Kind: MirrorList, merge: mergeURLs},
}

// apply folds src into dst. Scalar fields are only written when seeding.
func apply(dst, src *types.FileRecord, seed bool) {
	for _, f := range Schema {
		if f.Kind == Scalar && !seed {
			continue
		}
		f.merge(dst, src)
	}
}

func mergeURLs(dst, src *types.FileRecord) {
	if dst.URLs == nil {
		dst.URLs = make(map[string][]string, len(src.URLs))
	}
	for proto, urls := range src.URLs {
		dst.URLs[proto] = append(dst.URLs[proto], urls...)
	}
}
