// Package persistence implements segmented data layout, the
// catalog/manifest/HEAD trio, atomic commit, and rebalance from spec.md
// §4.11-§4.12.
package persistence

// Catalog is the collection descriptor, "{name}.catalog.json" (spec.md §3).
type Catalog struct {
	Dim                  uint32 `json:"dim"`
	Metric               string `json:"metric"`
	Strategy             string `json:"strategy"`
	Count                uint32 `json:"count"`
	SegmentLayoutVersion int    `json:"segmentLayoutVersion"`
}

// SegmentRef is one manifest entry describing a committed segment.
type SegmentRef struct {
	Name      string `json:"name" yaml:"name"`
	TargetKey string `json:"targetKey" yaml:"targetKey"`
	Size      int64  `json:"bytes" yaml:"bytes"`
	Checksum  uint64 `json:"checksum" yaml:"checksum"`
	Rows      uint32 `json:"rows" yaml:"rows"`
	Epoch     uint64 `json:"epoch" yaml:"epoch"`
	CommitTs  int64  `json:"commitTs" yaml:"commitTs"`
}

// Manifest is "{name}.manifest.json" (spec.md §3, §6 on-disk formats).
type Manifest struct {
	Version  int          `json:"version" yaml:"version"`
	Epoch    uint64       `json:"epoch" yaml:"epoch"`
	CommitTs int64        `json:"commitTs" yaml:"commitTs"`
	Dim      uint32       `json:"dim" yaml:"dim"`
	Metric   string       `json:"metric" yaml:"metric"`
	Strategy string       `json:"strategy" yaml:"strategy"`
	Segments []SegmentRef `json:"segments" yaml:"segments"`
}

// Head is "{name}.head.json", written last in the save procedure.
type Head struct {
	Manifest string `json:"manifest"`
	Epoch    uint64 `json:"epoch"`
	CommitTs int64  `json:"commitTs"`
}

const ManifestVersion = 1
