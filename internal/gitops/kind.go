package gitops

import (
	"strings"

	"github.com/msolo/mcp-gas/internal/remote"
)

// SplitPath maps a caller-supplied local-style path (e.g. "Utils.gs",
// "Index.html", "appsscript.json") to the Remote's (name, kind) pair: the
// Remote has no extensions, only kind tags (spec §3, §6 "Files are
// transmitted by kind tag, not extension").
func SplitPath(p string) (name string, kind remote.FileKind) {
	switch {
	case strings.HasSuffix(p, ".gs"):
		return strings.TrimSuffix(p, ".gs"), remote.KindServerScript
	case strings.HasSuffix(p, ".html"):
		return strings.TrimSuffix(p, ".html"), remote.KindMarkup
	case strings.HasSuffix(p, ".json"):
		return strings.TrimSuffix(p, ".json"), remote.KindManifest
	default:
		return p, remote.KindServerScript
	}
}
