package rsync

import (
	"encoding/json"
	"os"

	"github.com/msolo/jsonc"
)

// ManifestFile is one entry of a synced project's last-known state.
type ManifestFile struct {
	Filename     string `json:"filename"`
	Hash         string `json:"hash"`
	LastModified string `json:"lastModified,omitempty"`
}

// Manifest is the local JSON snapshot of the last successful rsync (spec
// §3 "Manifest"). Its absence signals a bootstrap sync.
type Manifest struct {
	ScriptID  string         `json:"scriptId"`
	Direction string         `json:"direction"`
	Files     []ManifestFile `json:"files"`
	CommitSha string         `json:"commitSha,omitempty"`
}

const ManifestName = ".rsync-manifest.json"

// ReadManifest loads the manifest at path, using the JSONC decoder (the
// config/manifest format across this module tolerates trailing comments,
// matching `git-preflight`'s config idiom) so a hand-edited manifest with
// an explanatory comment doesn't fail to parse. Returns (nil, nil) if the
// file doesn't exist — that's the bootstrap signal, not an error.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var m Manifest
	dec := jsonc.NewDecoder(f)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteManifest writes m to path as plain indented JSON.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// indexByFilename builds a name->hash lookup for diffing.
func indexByFilename(files []ManifestFile) map[string]string {
	idx := make(map[string]string, len(files))
	for _, f := range files {
		idx[f.Filename] = f.Hash
	}
	return idx
}
