package gitops

import (
	"github.com/msolo/mcp-gas/internal/pathfilter"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/wrapper"
)

// WrapForStore produces the bytes that should actually be sent to the
// Remote for (kind, name, userText): wrapped form for wrap-eligible
// ServerScript files (preserving any module options already present on the
// existing Remote content), the raw text otherwise. Shared with
// internal/rsync's push path, which needs the identical wrap-fresh/
// unwrap-preserve behavior for files that never passed through this
// package's write/edit strategies.
func WrapForStore(kind remote.FileKind, name string, userText string, existing *remote.File) string {
	eligible := wrapper.IsWrapEligible(name, kind == remote.KindServerScript, pathfilter.IsBreadcrumb(name))
	if !eligible {
		return userText
	}
	var opts *wrapper.Options
	if existing != nil {
		_, opts = wrapper.Unwrap(existing.Source)
	}
	return wrapper.Wrap(userText, name, opts)
}

// localPath returns the on-disk filename for a Remote file: name plus its
// kind-derived extension (spec §3).
func localPath(kind remote.FileKind, name string) string {
	return name + kind.Extension()
}
