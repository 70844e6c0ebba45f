package persistence

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

func (m Manifest) JSON() ([]byte, error) { return json.Marshal(m) }

func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest

	err := json.Unmarshal(data, &m)

	return m, err
}

// YAML renders the manifest as human-readable YAML, for operators
// inspecting a collection on disk without a custom tool (a supplemented
// feature not named by spec.md §3/§6, which only specify the JSON wire
// format).
func (m Manifest) YAML() ([]byte, error) { return yaml.Marshal(m) }

func (c Catalog) JSON() ([]byte, error) { return json.Marshal(c) }

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog

	err := json.Unmarshal(data, &c)

	return c, err
}

func (h Head) JSON() ([]byte, error) { return json.Marshal(h) }

func ParseHead(data []byte) (Head, error) {
	var h Head

	err := json.Unmarshal(data, &h)

	return h, err
}
