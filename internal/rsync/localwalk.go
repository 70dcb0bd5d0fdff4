package rsync

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/msolo/mcp-gas/internal/hashutil"
	"github.com/msolo/mcp-gas/internal/pathfilter"
	"github.com/msolo/mcp-gas/internal/remote"
)

// walkLocal lists the working tree at dir, filtered per spec §4.5 step 1
// (excludes breadcrumbs, dev dirs, local-config files, plus caller patterns)
// and without the root .gitkeep placeholder, keyed by Remote-style name with
// its kind and content hash.
func walkLocal(dir string, extraExcludePatterns []string) (map[string]localEntry, error) {
	out := make(map[string]localEntry)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if pathfilter.IsBreadcrumb(rel) || pathfilter.Classify(rel) == pathfilter.DevDir {
				return filepath.SkipDir
			}
			return nil
		}
		if pathfilter.ExcludeForRsync(rel, extraExcludePatterns) {
			return nil
		}
		if rel == ".gitkeep" {
			// placeholder committed by gitapi's WorkDir.Init, not a project file
			return nil
		}
		name, kind := splitLocalName(rel)
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		out[name] = localEntry{Name: name, Kind: kind, Hash: hashutil.Hash(data)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readLocalFile reads the raw bytes of the on-disk file for a local entry.
func readLocalFile(dir string, e localEntry) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, e.Name+e.Kind.Extension()))
}

// splitLocalName maps an on-disk relative path to the Remote's (name, kind)
// pair, mirroring internal/gitops.SplitPath without creating a dependency
// between the two packages.
func splitLocalName(rel string) (string, remote.FileKind) {
	switch {
	case strings.HasSuffix(rel, ".gs"):
		return strings.TrimSuffix(rel, ".gs"), remote.KindServerScript
	case strings.HasSuffix(rel, ".html"):
		return strings.TrimSuffix(rel, ".html"), remote.KindMarkup
	case strings.HasSuffix(rel, ".json"):
		return strings.TrimSuffix(rel, ".json"), remote.KindManifest
	default:
		return rel, remote.KindServerScript
	}
}
